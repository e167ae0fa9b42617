package app

import (
	"context"
	"log/slog"
	"sort"

	"github.com/felixgeelhaar/mentora/internal/config"
	"github.com/felixgeelhaar/mentora/internal/llm"
)

// providerOrder fixes registration order so "auto" picks deterministically.
var providerOrder = []string{"gemini", "claude", "openai", "ollama"}

// NewRegistry registers every enabled provider that has what it needs to
// run. Providers missing a key are skipped, not fatal.
func NewRegistry(ctx context.Context, cfg config.LLMConfig) (*llm.Registry, error) {
	registry := llm.NewRegistry()

	for _, name := range orderedProviders(cfg.Providers) {
		pc := cfg.Providers[name]
		if !pc.Enabled {
			continue
		}

		provider, err := newProvider(ctx, name, pc)
		if err != nil {
			slog.Debug("skipping LLM provider", "name", name, "error", err)
			continue
		}
		if provider == nil {
			slog.Warn("unknown LLM provider in config", "name", name)
			continue
		}

		if cfg.Resilience.Enabled {
			rc := llm.DefaultResilientConfig()
			rc.MaxConcurrent = cfg.Resilience.MaxConcurrent
			rc.RatePerSecond = cfg.Resilience.RatePerSecond
			rc.MaxAttempts = cfg.Resilience.MaxAttempts
			provider = llm.NewResilientProvider(provider, rc)
		}

		registry.Register(name, provider)
		slog.Info("registered LLM provider", "name", name, "model", pc.Model)
	}

	if cfg.DefaultProvider != "" {
		if err := registry.SetDefault(cfg.DefaultProvider); err != nil {
			slog.Warn("default provider unavailable, falling back to auto",
				"provider", cfg.DefaultProvider, "error", err)
		}
	}
	return registry, nil
}

func newProvider(ctx context.Context, name string, pc *config.ProviderConfig) (llm.Provider, error) {
	switch name {
	case "gemini":
		return llm.NewGeminiProvider(ctx, llm.GeminiConfig{APIKey: pc.APIKey, Model: pc.Model})
	case "claude":
		return llm.NewClaudeProvider(llm.ClaudeConfig{APIKey: pc.APIKey, BaseURL: pc.URL, Model: pc.Model})
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{APIKey: pc.APIKey, BaseURL: pc.URL, Model: pc.Model})
	case "ollama":
		return llm.NewOllamaProvider(llm.OllamaConfig{BaseURL: pc.URL, Model: pc.Model}), nil
	}
	return nil, nil
}

// orderedProviders lists known providers first, then any others by name.
func orderedProviders(providers map[string]*config.ProviderConfig) []string {
	var names []string
	seen := make(map[string]bool)
	for _, name := range providerOrder {
		if _, ok := providers[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range providers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
