package openai

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/nachoal/agency-chat/llm"
)

// Preset describes an OpenAI-compatible endpoint
type Preset struct {
	BaseURL      string
	APIKeyEnv    string
	DefaultModel string
	// Local servers accept any key
	Local bool
}

// Presets are the chat-completions gateways the engine can stream from
var Presets = map[string]Preset{
	"openai":     {BaseURL: defaultBaseURL, APIKeyEnv: "OPENAI_API_KEY", DefaultModel: defaultModel},
	"deepseek":   {BaseURL: "https://api.deepseek.com", APIKeyEnv: "DEEPSEEK_API_KEY", DefaultModel: "deepseek-chat"},
	"groq":       {BaseURL: "https://api.groq.com/openai/v1", APIKeyEnv: "GROQ_API_KEY", DefaultModel: "llama-3.1-8b-instant"},
	"moonshot":   {BaseURL: "https://api.moonshot.ai/v1", APIKeyEnv: "MOONSHOT_API_KEY", DefaultModel: "moonshot-v1-8k"},
	"perplexity": {BaseURL: "https://api.perplexity.ai", APIKeyEnv: "PERPLEXITY_API_KEY", DefaultModel: "sonar"},
	"lmstudio":   {BaseURL: "http://localhost:1234/v1", APIKeyEnv: "LM_STUDIO_API_KEY", DefaultModel: "local-model", Local: true},
	"ollama":     {BaseURL: "http://localhost:11434/v1", APIKeyEnv: "OLLAMA_API_KEY", DefaultModel: "llama3.1", Local: true},
}

// PresetNames returns the known provider names, sorted
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewForProvider creates a client for a named preset. Options override the
// preset's base URL, key and model.
func NewForProvider(name string, opts ...llm.ClientOption) (*Client, error) {
	preset, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	base := []llm.ClientOption{
		llm.WithBaseURL(preset.BaseURL),
		llm.WithModel(preset.DefaultModel),
	}
	if key := os.Getenv(preset.APIKeyEnv); key != "" {
		base = append(base, llm.WithAPIKey(key))
	} else if preset.Local {
		base = append(base, llm.WithAPIKey("local"))
	}

	return NewClient(append(base, opts...)...)
}
