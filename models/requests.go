package models

// Role values shared across the transcript and the provider wire formats.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single role/content entry in the order a provider
// expects to receive it.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallOptions carries the optional sampling parameters. Nil fields mean
// "use the provider's default".
type CallOptions struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`

	// Extended thinking is only honored by providers whose models support
	// it (Anthropic claude-3-7/claude-4, Gemini 2.x).
	ExtendedThinking     bool `json:"extended_thinking,omitempty"`
	ThinkingBudgetTokens int  `json:"thinking_budget_tokens,omitempty"`
}

// ProviderPayload is the common request contract every provider call
// function receives. ContextMessages excludes the system message and the
// trailing prompt; FullMessages is the complete list including both, used
// by proxy-style providers that accept one array.
type ProviderPayload struct {
	Prompt          string
	ContextMessages []ChatMessage
	FullMessages    []ChatMessage
	ModelID         string
	SystemPrompt    string
	Options         CallOptions

	// Single-level fallback target, supplied by the caller's model config.
	FallbackProvider string
	FallbackModel    string

	// Attempted tracks which providers have already been tried in this
	// call chain so fallback hops cannot cycle. Mutated in place.
	Attempted map[string]bool
}

// MarkAttempted records a provider tag, allocating the set on first use.
func (p *ProviderPayload) MarkAttempted(provider string) {
	if p.Attempted == nil {
		p.Attempted = make(map[string]bool)
	}
	p.Attempted[provider] = true
}
