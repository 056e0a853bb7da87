package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nachoal/agency-chat/capability"
)

// EnvPrefix is prepended to every environment override, e.g. AGENCY_CHAT_STORE_TYPE
const EnvPrefix = "AGENCY_CHAT"

// Config represents the application configuration
type Config struct {
	DefaultModel string `mapstructure:"default_model"`
	OwnerID      string `mapstructure:"owner_id"`

	LLM      LLMConfig      `mapstructure:"llm"`
	Image    ImageConfig    `mapstructure:"image"`
	Store    StoreConfig    `mapstructure:"store"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Log      LogConfig      `mapstructure:"log"`

	// Capabilities override or extend the built-in model table
	Capabilities map[string]capability.Capability `mapstructure:"capabilities"`
}

// LLMConfig selects the chat completions endpoint
type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ImageConfig holds image generation defaults and providers in preference order
type ImageConfig struct {
	Width     int                   `mapstructure:"width"`
	Height    int                   `mapstructure:"height"`
	Strength  float64               `mapstructure:"strength"`
	Steps     int                   `mapstructure:"steps"`
	Providers []ImageProviderConfig `mapstructure:"providers"`
}

// ImageProviderConfig describes one image backend. Type is "openai" or "http".
type ImageProviderConfig struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// StoreConfig selects the conversation store
type StoreConfig struct {
	Type        string        `mapstructure:"type"`
	Dir         string        `mapstructure:"dir"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisTTL    time.Duration `mapstructure:"redis_ttl"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	Table       string        `mapstructure:"table"`
}

// SupabaseConfig is shared by the store, the workspace repository and feedback
type SupabaseConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager handles configuration persistence
type Manager struct {
	configPath string
	v          *viper.Viper
	config     *Config
}

// DefaultPath returns ~/.agency-chat/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".agency-chat", "config.yaml"), nil
}

// NewManager loads configuration from path, or the default path when empty.
// A missing file is not an error.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Provider-native key names keep working
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("supabase.url", EnvPrefix+"_SUPABASE_URL", "SUPABASE_URL")
	_ = v.BindEnv("supabase.key", EnvPrefix+"_SUPABASE_KEY", "SUPABASE_KEY")

	m := &Manager{
		configPath: path,
		v:          v,
		config:     &Config{},
	}

	if err := m.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return m, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_model", "gpt-4o-mini")
	v.SetDefault("owner_id", "")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("image.width", 1024)
	v.SetDefault("image.height", 1024)
	v.SetDefault("image.strength", 0.7)
	v.SetDefault("image.steps", 30)
	v.SetDefault("store.type", "file")
	v.SetDefault("store.dir", "")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_ttl", 30*24*time.Hour)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.table", "")
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from disk and the environment
func (m *Manager) Load() error {
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	cfg := &Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	m.config = cfg
	return nil
}

// Config returns the loaded configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Path returns the config file location
func (m *Manager) Path() string {
	return m.configPath
}

// GetDefaultModel returns the default model
func (m *Manager) GetDefaultModel() string {
	return m.config.DefaultModel
}

// SetDefaults updates the default model and writes the file
func (m *Manager) SetDefaults(model string) error {
	m.v.Set("default_model", model)
	m.config.DefaultModel = model
	return m.Save()
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := m.v.WriteConfigAs(m.configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// CapabilityTable merges configured overrides into the built-in table
func (c *Config) CapabilityTable() *capability.Static {
	table := capability.NewStatic(nil)
	for model, cp := range c.Capabilities {
		table.With(model, cp)
	}
	return table
}
