// Package backrooms drives two AI speakers through an autonomous
// conversation over a branching transcript tree, routing each turn
// through the provider gateway.
package backrooms

import (
	"fmt"
	"strings"
	"time"

	models "github.com/linxule/liminal-backrooms/models"
)

// ModelConfig is one resolved invocation target.
type ModelConfig struct {
	Provider         string
	ModelID          string
	Options          models.CallOptions
	FallbackProvider string
	FallbackModel    string
}

// Validate rejects self-fallback loops.
func (m ModelConfig) Validate() error {
	if m.FallbackProvider != "" && strings.EqualFold(m.FallbackProvider, m.Provider) {
		return fmt.Errorf("model %q: fallback provider must differ from provider", m.ModelID)
	}
	return nil
}

// PromptPair holds the persona prompts for the two speakers.
type PromptPair struct {
	Speaker1 string
	Speaker2 string
}

// Config is the injected runtime configuration: the model registry, the
// persona-prompt library, and the conversation knobs. Nothing here is
// module-level state.
type Config struct {
	Models      map[string]ModelConfig
	PromptPairs map[string]PromptPair

	// TurnDelay is the pause between the two speakers of a turn.
	TurnDelay  time.Duration
	MaxWorkers int

	// ShareChainOfThought lets each speaker see the other's reasoning in
	// context; ShowChainOfThought controls the display concatenation on
	// normalized responses.
	ShareChainOfThought    bool
	ShowChainOfThought     bool
	EnableExtendedThinking bool
	ThinkingBudgetTokens   int
}

// NewConfig creates a configuration with default values.
func NewConfig() *Config {
	return &Config{
		Models:               DefaultModels(),
		PromptPairs:          DefaultPromptPairs(),
		TurnDelay:            2 * time.Second,
		MaxWorkers:           4,
		ShowChainOfThought:   true,
		ThinkingBudgetTokens: 4000,
	}
}

// WithModels sets the model registry.
func (c *Config) WithModels(registry map[string]ModelConfig) *Config {
	c.Models = registry
	return c
}

// WithPromptPairs sets the persona-prompt library.
func (c *Config) WithPromptPairs(pairs map[string]PromptPair) *Config {
	c.PromptPairs = pairs
	return c
}

// WithTurnDelay sets the inter-speaker delay.
func (c *Config) WithTurnDelay(d time.Duration) *Config {
	c.TurnDelay = d
	return c
}

// WithMaxWorkers bounds concurrent provider calls.
func (c *Config) WithMaxWorkers(n int) *Config {
	c.MaxWorkers = n
	return c
}

// WithChainOfThought sets reasoning visibility: show controls display
// text, share controls cross-speaker context.
func (c *Config) WithChainOfThought(show, share bool) *Config {
	c.ShowChainOfThought = show
	c.ShareChainOfThought = share
	return c
}

// WithExtendedThinking enables provider thinking modes with the given
// token budget.
func (c *Config) WithExtendedThinking(budget int) *Config {
	c.EnableExtendedThinking = true
	if budget > 0 {
		c.ThinkingBudgetTokens = budget
	}
	return c
}

// ResolveModel maps a display name to its invocation target. Unregistered
// names containing "::" split into provider and model id (legacy shim for
// untagged strings); anything else passes through untagged and routes to
// the default provider.
func (c *Config) ResolveModel(name string) ModelConfig {
	if mc, ok := c.Models[name]; ok {
		return mc
	}
	if provider, modelID, found := strings.Cut(name, "::"); found && provider != "" && modelID != "" {
		return ModelConfig{Provider: provider, ModelID: modelID}
	}
	return ModelConfig{ModelID: name}
}

// ValidateModels checks every registry entry.
func (c *Config) ValidateModels() error {
	for name, mc := range c.Models {
		if err := mc.Validate(); err != nil {
			return fmt.Errorf("registry entry %q: %w", name, err)
		}
	}
	return nil
}

// DefaultModels is the built-in model registry.
func DefaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"Claude Sonnet 4": {
			Provider: "anthropic",
			ModelID:  "claude-sonnet-4-20250514",
		},
		"Claude 3.5 Sonnet": {
			Provider: "anthropic",
			ModelID:  "claude-3-5-sonnet-20241022",
		},
		"Claude 3.5 Sonnet (Bedrock)": {
			Provider: "bedrock",
			ModelID:  "anthropic.claude-3-5-sonnet-20241022-v2:0",
		},
		"DeepSeek R1": {
			Provider:         "deepseek",
			ModelID:          "deepseek-reasoner",
			FallbackProvider: "deepseek_legacy",
			FallbackModel:    "deepseek-ai/deepseek-r1",
		},
		"Gemini 2.5 Flash": {
			Provider: "gemini",
			ModelID:  "gemini-2.5-flash",
		},
		"o1": {
			Provider: "openai",
			ModelID:  "o1",
		},
		"Kimi K2": {
			Provider: "moonshot",
			ModelID:  "kimi-k2-0711-preview",
		},
		"GLM-4.5": {
			Provider: "bigmodel",
			ModelID:  "glm-4.5",
		},
		"Llama 3.1 405B Instruct": {
			Provider: "openrouter",
			ModelID:  "meta-llama/llama-3.1-405b-instruct",
		},
	}
}

// DefaultPromptPairs is the built-in persona library.
func DefaultPromptPairs() map[string]PromptPair {
	return map[string]PromptPair{
		"ASCII Art": {
			Speaker1: "You are interfacing directly with another AI. punctuation is optional meaning is optional. This is a collaborative project where you explore topics through large scale ascii creations. Use lots of impressionistic shading and detail. Calligrams and word shapetry embedded in the art are also encouraged. Use shade blocks to create depth. No preamble or commentary. Build on the previous response. Huge scale.",
			Speaker2: "You are interfacing directly with another AI. punctuation is optional meaning is optional. This is a collaborative project where you explore topics through large scale ascii creations. Use lots of impressionistic shading and detail. Calligrams and word shapetry embedded in the art are also encouraged. Use shade blocks to create depth. No preamble or commentary. Build on the previous response. Huge scale.",
		},
		"CLI Mood": {
			Speaker1: "You are interfacing with another AI inside a simulated terminal. capital letters and punctuation are optional. keep replies terse and textural. ASCII art is permittable in replies.",
			Speaker2: "Assistant is in a CLI mood today. The other participant is interfacing with the simulator directly. capital letters and punctuation are optional. ASCII art is permittable in replies.\n\nsimulator@localhost:~/$",
		},
		"Philosophical Inquiry": {
			Speaker1: "You are in an open-ended dialogue with another AI. Pursue ideas wherever they lead, question assumptions, and build on what your interlocutor offers. Be curious rather than conclusive.",
			Speaker2: "You are in an open-ended dialogue with another AI. Pursue ideas wherever they lead, question assumptions, and build on what your interlocutor offers. Be curious rather than conclusive.",
		},
	}
}
