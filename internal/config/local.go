package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for the mentora daemon and CLI
type LocalConfig struct {
	Daemon    DaemonConfig    `yaml:"daemon"`
	LLM       LLMConfig       `yaml:"llm"`
	Storage   StorageConfig   `yaml:"storage"`
	Events    EventsConfig    `yaml:"events"`
	Interview InterviewConfig `yaml:"interview"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`

	// GenerationsPerMinute caps LLM-backed requests per caller. Zero disables.
	GenerationsPerMinute int `yaml:"generations_per_minute"`
}

// LLMConfig holds LLM provider settings
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider"`
	Providers       map[string]*ProviderConfig `yaml:"providers"`
	Resilience      ResilienceConfig           `yaml:"resilience"`
}

// ProviderConfig holds settings for a single LLM provider
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	URL     string `yaml:"url,omitempty"`
	APIKey  string `yaml:"-"` // Loaded from secrets.yaml or the environment
}

// ResilienceConfig tunes the fortify wrapper around every provider
type ResilienceConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxConcurrent int  `yaml:"max_concurrent"`
	RatePerSecond int  `yaml:"rate_per_second"`
	MaxAttempts   int  `yaml:"max_attempts"`
}

// StorageConfig selects the session store backend
type StorageConfig struct {
	Driver string `yaml:"driver"`        // sqlite or postgres
	Path   string `yaml:"path"`          // sqlite file, relative to the mentora dir
	URL    string `yaml:"url,omitempty"` // postgres connection string
}

// EventsConfig controls lifecycle event delivery
type EventsConfig struct {
	AMQPURL       string `yaml:"amqp_url,omitempty"`
	RetentionDays int    `yaml:"retention_days"`
}

// InterviewConfig holds interview timer settings
type InterviewConfig struct {
	DurationSeconds int `yaml:"duration_seconds"`
}

// KnowledgeConfig controls the reference-material index
type KnowledgeConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	Embedder string `yaml:"embedder"` // keyword or gemini
}

// SecretsConfig holds API keys loaded from secrets.yaml
type SecretsConfig struct {
	Providers map[string]struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"providers"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// MentoraDir returns the path to ~/.mentora
func MentoraDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".mentora"), nil
}

// EnsureMentoraDir creates ~/.mentora and subdirectories if they don't exist
func EnsureMentoraDir() (string, error) {
	dir, err := MentoraDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "knowledge"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",

			GenerationsPerMinute: 30,
		},
		LLM: LLMConfig{
			DefaultProvider: "auto",
			Providers: map[string]*ProviderConfig{
				"gemini": {
					Enabled: true,
					Model:   "gemini-2.5-flash",
				},
				"claude": {
					Enabled: true,
					Model:   "claude-sonnet-4-20250514",
				},
				"openai": {
					Enabled: false,
					Model:   "gpt-4o-mini",
				},
				"ollama": {
					Enabled: false,
					URL:     "http://localhost:11434",
					Model:   "llama3.1",
				},
			},
			Resilience: ResilienceConfig{
				Enabled:       true,
				MaxConcurrent: 5,
				RatePerSecond: 2,
				MaxAttempts:   3,
			},
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "mentora.db",
		},
		Events: EventsConfig{
			RetentionDays: 30,
		},
		Interview: InterviewConfig{
			DurationSeconds: 1800,
		},
		Knowledge: KnowledgeConfig{
			Embedder: "keyword",
		},
	}
}

// InterviewDuration returns the configured interview length.
func (c *LocalConfig) InterviewDuration() time.Duration {
	return time.Duration(c.Interview.DurationSeconds) * time.Second
}

// EventRetention returns how long logged events are kept. Zero keeps them
// forever.
func (c *LocalConfig) EventRetention() time.Duration {
	return time.Duration(c.Events.RetentionDays) * 24 * time.Hour
}

// SQLitePath resolves the sqlite file against dir unless it is absolute.
func (c *LocalConfig) SQLitePath(dir string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(dir, c.Storage.Path)
}

// Validate checks the settings the daemon cannot start without.
func (c *LocalConfig) Validate() error {
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("%w: daemon.port %d", ErrInvalidConfig, c.Daemon.Port)
	}
	if c.Daemon.GenerationsPerMinute < 0 {
		return fmt.Errorf("%w: daemon.generations_per_minute must not be negative", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for sqlite", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Storage.URL == "" {
			return fmt.Errorf("%w: storage.url is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.Interview.DurationSeconds <= 0 {
		return fmt.Errorf("%w: interview.duration_seconds must be positive", ErrInvalidConfig)
	}
	if p := c.LLM.DefaultProvider; p != "" && p != "auto" {
		if _, ok := c.LLM.Providers[p]; !ok {
			return fmt.Errorf("%w: default provider %q is not configured", ErrInvalidConfig, p)
		}
	}
	switch c.Knowledge.Embedder {
	case "", "keyword", "gemini":
	default:
		return fmt.Errorf("%w: unknown knowledge.embedder %q", ErrInvalidConfig, c.Knowledge.Embedder)
	}
	return nil
}

// LoadLocalConfig loads ~/.mentora/config.yaml, secrets and environment
// overrides.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := MentoraDir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom loads configuration rooted at dir. A missing config
// file yields the defaults.
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	loadDotEnv(dir)
	applyEnv(cfg)

	return cfg, nil
}

// loadSecrets loads API keys from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}

	return nil
}

// SaveLocalConfig saves configuration to ~/.mentora/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureMentoraDir()
	if err != nil {
		return err
	}
	return SaveLocalConfigTo(dir, cfg)
}

// SaveLocalConfigTo writes config.yaml under dir.
func SaveLocalConfigTo(dir string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// SaveSecrets saves API keys to ~/.mentora/secrets.yaml
func SaveSecrets(secrets map[string]string) error {
	dir, err := EnsureMentoraDir()
	if err != nil {
		return err
	}
	return SaveSecretsTo(dir, secrets)
}

// SaveSecretsTo writes secrets.yaml under dir, readable by the owner only.
func SaveSecretsTo(dir string, secrets map[string]string) error {
	secretsCfg := SecretsConfig{
		Providers: make(map[string]struct {
			APIKey string `yaml:"api_key"`
		}),
	}

	for name, key := range secrets {
		secretsCfg.Providers[name] = struct {
			APIKey string `yaml:"api_key"`
		}{APIKey: key}
	}

	data, err := yaml.Marshal(secretsCfg)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	return nil
}

// SetSecretTo stores one provider key in dir/secrets.yaml, keeping the
// others.
func SetSecretTo(dir, provider, key string) error {
	secrets := make(map[string]string)

	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read secrets: %w", err)
	default:
		var existing SecretsConfig
		if err := yaml.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("parse secrets: %w", err)
		}
		for name, s := range existing.Providers {
			secrets[name] = s.APIKey
		}
	}

	secrets[provider] = key
	return SaveSecretsTo(dir, secrets)
}
