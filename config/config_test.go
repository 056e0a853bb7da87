package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
default_model: gpt-4o
owner_id: ana
store:
  type: redis
  redis_ttl: 48h
image:
  width: 512
  providers:
    - name: dalle
      type: openai
      model: dall-e-3
    - name: flux
      type: http
      base_url: http://localhost:8000/generate
capabilities:
  my-model:
    history_length: 55
    reasoning: true
`

func TestManager_Defaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Config()
	if cfg.DefaultModel != "gpt-4o-mini" {
		t.Errorf("default model = %q", cfg.DefaultModel)
	}
	if cfg.Store.Type != "file" {
		t.Errorf("store type = %q", cfg.Store.Type)
	}
	if cfg.Store.RedisTTL != 30*24*time.Hour {
		t.Errorf("redis ttl = %v", cfg.Store.RedisTTL)
	}
	if cfg.Image.Width != 1024 || cfg.Image.Steps != 30 {
		t.Errorf("image defaults = %+v", cfg.Image)
	}
}

func TestManager_LoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Config()

	if cfg.DefaultModel != "gpt-4o" || cfg.OwnerID != "ana" {
		t.Errorf("unexpected top level: %+v", cfg)
	}
	if cfg.Store.Type != "redis" || cfg.Store.RedisTTL != 48*time.Hour {
		t.Errorf("unexpected store: %+v", cfg.Store)
	}
	if cfg.Image.Width != 512 || cfg.Image.Height != 1024 {
		t.Errorf("unexpected image size: %+v", cfg.Image)
	}
	if len(cfg.Image.Providers) != 2 || cfg.Image.Providers[1].BaseURL != "http://localhost:8000/generate" {
		t.Errorf("unexpected providers: %+v", cfg.Image.Providers)
	}

	caps := cfg.CapabilityTable()
	if got := caps.OptimalHistoryLength("my-model"); got != 55 {
		t.Errorf("override history length = %d", got)
	}
	if !caps.IsReasoningModel("my-model") {
		t.Error("override should be a reasoning model")
	}
	if got := caps.OptimalHistoryLength("gpt-4o"); got != 80 {
		t.Errorf("built-in entry lost: %d", got)
	}
}

func TestManager_EnvOverrides(t *testing.T) {
	t.Setenv("AGENCY_CHAT_STORE_TYPE", "postgres")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if got := m.Config().Store.Type; got != "postgres" {
		t.Errorf("store type = %q", got)
	}
	if got := m.Config().LLM.APIKey; got != "sk-test" {
		t.Errorf("api key = %q", got)
	}
}

func TestManager_SetDefaultsPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.SetDefaults("o3-mini"); err != nil {
		t.Fatalf("SetDefaults: %v", err)
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.GetDefaultModel(); got != "o3-mini" {
		t.Errorf("default model after reload = %q", got)
	}
}
