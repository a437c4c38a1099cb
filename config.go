package engram

import (
	"fmt"
	"time"
)

// EmbedderConfig selects and parameterizes the embedding backend. Provider
// is one of "local" (default), "ollama", "openai".
type EmbedderConfig struct {
	Provider string
	Model    string
	APIKey   string
	URL      string
}

// LLMConfig selects and parameterizes the optional summarization backend.
// Provider is one of "" (disabled), "local", "anthropic", "openai".
type LLMConfig struct {
	Provider  string
	Model     string
	APIKey    string
	URL       string
	MaxTokens int
}

// AutoRememberConfig governs Store.Process's classifier-driven capture.
// Process uses MinImportance and DefaultTags; it does not read Enabled or
// Heuristic, and classifies every turn it is given.
type AutoRememberConfig struct {
	Enabled      bool
	Heuristic    bool
	MinImportance float64
	DefaultTags  []string
}

// AutoConsolidateConfig governs the consolidation cadence and thresholds.
type AutoConsolidateConfig struct {
	Enabled          bool
	EveryNWrites     int
	Interval         time.Duration
	MinClusterSize   int
	ClusterThreshold float64
	HotDays          float64
	WarmDays         float64
	ColdDays         float64
}

// Config is the full construction-time configuration surface.
type Config struct {
	File string

	Embedder EmbedderConfig
	LLM      LLMConfig

	AutoRemember    AutoRememberConfig
	AutoConsolidate AutoConsolidateConfig

	DeduplicateThreshold float64
	MaxMemories          int
	Debug                bool
}

// DefaultConfig returns the configuration defaults from spec §6's
// configuration surface table. File is left empty; callers must set it.
func DefaultConfig() Config {
	return Config{
		Embedder: EmbedderConfig{Provider: "local", Model: "MiniLM"},
		AutoRemember: AutoRememberConfig{
			Enabled:       true,
			Heuristic:     true,
			MinImportance: 0.3,
			DefaultTags:   nil,
		},
		AutoConsolidate: AutoConsolidateConfig{
			Enabled:          true,
			EveryNWrites:     100,
			Interval:         6 * time.Hour,
			MinClusterSize:   3,
			ClusterThreshold: 0.78,
			HotDays:          7,
			WarmDays:         30,
			ColdDays:         365,
		},
		DeduplicateThreshold: 0.92,
		MaxMemories:          10000,
		Debug:                false,
	}
}

// WithAutoRememberEnabled is the convenience override for the spec's
// boolean-or-struct union: passing a bare bool sets AutoRemember.Enabled
// while every other field keeps its current value (DefaultConfig's values
// when c came from DefaultConfig). Store.Process does not read Enabled.
func (c Config) WithAutoRememberEnabled(enabled bool) Config {
	c.AutoRemember.Enabled = enabled
	return c
}

// WithAutoConsolidateEnabled is the AutoConsolidate analog of
// WithAutoRememberEnabled.
func (c Config) WithAutoConsolidateEnabled(enabled bool) Config {
	c.AutoConsolidate.Enabled = enabled
	return c
}

// Validate raises ErrConfigError for an unknown provider tag or a missing
// required API key, per spec §7. Called once at construction.
func (c Config) Validate() error {
	if c.File == "" {
		return fmt.Errorf("%w: file path is required", ErrConfigError)
	}
	switch c.Embedder.Provider {
	case "local", "":
	case "ollama":
		if c.Embedder.URL == "" {
			return fmt.Errorf("%w: embedder.url required for provider %q", ErrConfigError, c.Embedder.Provider)
		}
	case "openai":
		if c.Embedder.APIKey == "" {
			return fmt.Errorf("%w: embedder.apiKey required for provider %q", ErrConfigError, c.Embedder.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown embedder provider %q", ErrConfigError, c.Embedder.Provider)
	}

	switch c.LLM.Provider {
	case "", "local":
	case "anthropic":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("%w: llm.apiKey required for provider %q", ErrConfigError, c.LLM.Provider)
		}
	case "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("%w: llm.apiKey required for provider %q", ErrConfigError, c.LLM.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrConfigError, c.LLM.Provider)
	}

	if c.MaxMemories <= 0 {
		return fmt.Errorf("%w: maxMemories must be positive", ErrConfigError)
	}
	if c.DeduplicateThreshold <= 0 || c.DeduplicateThreshold > 1 {
		return fmt.Errorf("%w: deduplicateThreshold must be in (0,1]", ErrConfigError)
	}
	return nil
}
