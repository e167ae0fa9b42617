// Package config loads mentora settings from ~/.mentora, an optional .env
// file and the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// providerKeyEnv maps provider names to the environment variable carrying
// their API key.
var providerKeyEnv = map[string]string{
	"gemini": "GEMINI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
	"openai": "OPENAI_API_KEY",
}

// loadDotEnv reads .env from the working directory and from dir. Variables
// already set in the environment win.
func loadDotEnv(dir string) {
	for _, path := range []string{".env", filepath.Join(dir, ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("failed to load env file", "path", path, "error", err)
		}
	}
}

// applyEnv overlays environment variables on cfg.
func applyEnv(cfg *LocalConfig) {
	for name, key := range providerKeyEnv {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		p, ok := cfg.LLM.Providers[name]
		if !ok {
			p = &ProviderConfig{}
			cfg.LLM.Providers[name] = p
		}
		p.APIKey = v
		p.Enabled = true
	}

	if url := getEnv("MENTORA_DATABASE_URL", ""); url != "" {
		cfg.Storage.Driver = DriverPostgres
		cfg.Storage.URL = url
	}
	cfg.Events.AMQPURL = getEnv("MENTORA_AMQP_URL", cfg.Events.AMQPURL)
	cfg.LLM.DefaultProvider = getEnv("MENTORA_LLM_PROVIDER", cfg.LLM.DefaultProvider)
	cfg.Daemon.Port = getEnvInt("MENTORA_PORT", cfg.Daemon.Port)
	cfg.Daemon.LogLevel = getEnv("MENTORA_LOG_LEVEL", cfg.Daemon.LogLevel)
	cfg.Interview.DurationSeconds = getEnvInt("MENTORA_INTERVIEW_SECONDS", cfg.Interview.DurationSeconds)
	cfg.LLM.Resilience.Enabled = getEnvBool("MENTORA_LLM_RESILIENCE", cfg.LLM.Resilience.Enabled)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
