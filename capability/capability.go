// Package capability answers read-only questions about what a model can do.
package capability

import (
	"sort"
	"strings"
	"sync"
)

// DefaultHistoryLength is used for models the table does not know
const DefaultHistoryLength = 20

// Lookup is the model capability reference data consumed by the chat engine.
// Implementations must be safe for concurrent use.
type Lookup interface {
	OptimalHistoryLength(modelID string) int
	IsImageGenerationModel(modelID string) bool
	IsReasoningModel(modelID string) bool
}

// Capability describes a single model
type Capability struct {
	HistoryLength   int  `json:"history_length" mapstructure:"history_length"`
	ImageGeneration bool `json:"image_generation" mapstructure:"image_generation"`
	Reasoning       bool `json:"reasoning" mapstructure:"reasoning"`
}

// DefaultCapabilities holds known models. Keys ending in "*" match by prefix.
var DefaultCapabilities = map[string]Capability{
	"gpt-4o":             {HistoryLength: 80},
	"gpt-4o-mini":        {HistoryLength: 50},
	"gpt-4.1":            {HistoryLength: 100},
	"gpt-4.1-mini":       {HistoryLength: 80},
	"gpt-3.5-turbo":      {HistoryLength: 20},
	"o1*":                {HistoryLength: 50, Reasoning: true},
	"o3*":                {HistoryLength: 80, Reasoning: true},
	"o4-mini":            {HistoryLength: 80, Reasoning: true},
	"deepseek-reasoner":  {HistoryLength: 40, Reasoning: true},
	"deepseek-chat":      {HistoryLength: 40},
	"claude-3-5-sonnet*": {HistoryLength: 100},
	"claude-3-haiku*":    {HistoryLength: 50},
	"gemini-1.5-pro*":    {HistoryLength: 100},
	"gemini-2.0-flash*":  {HistoryLength: 80},
	"llama-3.1-8b*":      {HistoryLength: 20},
	"dall-e-3":           {HistoryLength: 0, ImageGeneration: true},
	"gpt-image-1":        {HistoryLength: 0, ImageGeneration: true},
	"flux*":              {HistoryLength: 0, ImageGeneration: true},
	"stable-diffusion*":  {HistoryLength: 0, ImageGeneration: true},
}

// Static is a table-driven Lookup
type Static struct {
	mu       sync.RWMutex
	exact    map[string]Capability
	prefixes []prefixEntry
	fallback Capability
}

type prefixEntry struct {
	prefix string
	cap    Capability
}

// NewStatic builds a lookup from the given table; a nil table uses DefaultCapabilities
func NewStatic(table map[string]Capability) *Static {
	if table == nil {
		table = DefaultCapabilities
	}
	s := &Static{
		exact:    make(map[string]Capability),
		fallback: Capability{HistoryLength: DefaultHistoryLength},
	}
	for id, c := range table {
		s.set(id, c)
	}
	return s
}

// With registers or overrides a model entry and returns the lookup for chaining
func (s *Static) With(modelID string, c Capability) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(modelID, c)
	return s
}

func (s *Static) set(modelID string, c Capability) {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if strings.HasSuffix(id, "*") {
		p := strings.TrimSuffix(id, "*")
		for i := range s.prefixes {
			if s.prefixes[i].prefix == p {
				s.prefixes[i].cap = c
				return
			}
		}
		s.prefixes = append(s.prefixes, prefixEntry{prefix: p, cap: c})
		// Longest prefix first so the most specific family wins.
		sort.SliceStable(s.prefixes, func(i, j int) bool {
			return len(s.prefixes[i].prefix) > len(s.prefixes[j].prefix)
		})
		return
	}
	s.exact[id] = c
}

// Get returns the capability for a model and whether it was known
func (s *Static) Get(modelID string) (Capability, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := strings.ToLower(strings.TrimSpace(modelID))
	if c, ok := s.exact[id]; ok {
		return c, true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(id, p.prefix) {
			return p.cap, true
		}
	}
	return s.fallback, false
}

// Models returns the known model ids, sorted; prefix families end in "*"
func (s *Static) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.exact)+len(s.prefixes))
	for id := range s.exact {
		ids = append(ids, id)
	}
	for _, p := range s.prefixes {
		ids = append(ids, p.prefix+"*")
	}
	sort.Strings(ids)
	return ids
}

// OptimalHistoryLength implements Lookup
func (s *Static) OptimalHistoryLength(modelID string) int {
	c, _ := s.Get(modelID)
	return c.HistoryLength
}

// IsImageGenerationModel implements Lookup
func (s *Static) IsImageGenerationModel(modelID string) bool {
	c, _ := s.Get(modelID)
	return c.ImageGeneration
}

// IsReasoningModel implements Lookup
func (s *Static) IsReasoningModel(modelID string) bool {
	c, _ := s.Get(modelID)
	return c.Reasoning
}
