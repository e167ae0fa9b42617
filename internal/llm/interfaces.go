package llm

// LLMRegistry is the registry surface used by the daemon and the CLI
type LLMRegistry interface {
	// List returns all registered provider names
	List() []string

	// Default returns the default provider
	Default() (Provider, error)

	// Get retrieves a provider by name
	Get(name string) (Provider, error)

	// DefaultName returns the configured default, possibly "auto"
	DefaultName() string
}

// Ensure Registry implements LLMRegistry
var _ LLMRegistry = (*Registry)(nil)

// Ensure every provider implements Provider
var (
	_ Provider = (*GeminiProvider)(nil)
	_ Provider = (*ClaudeProvider)(nil)
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*OllamaProvider)(nil)
	_ Provider = (*ResilientProvider)(nil)
)
