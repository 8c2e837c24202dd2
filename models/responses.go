package models

import "strings"

// ProviderReply is the structured result of a provider call before
// normalization. Content may still contain inline <think> blocks; the
// normalizer strips them and merges ReasoningBlocks in.
type ProviderReply struct {
	Role            string   `json:"role,omitempty"` // defaults to assistant
	Content         string   `json:"content"`
	ReasoningBlocks []string `json:"reasoning_blocks,omitempty"`
}

// ResponseEnvelope is the normalized gateway output. A system role signals
// an unrecovered error; Content is never empty when the provider produced
// any text at all.
type ResponseEnvelope struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`
	Display   string `json:"display,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

// IsError reports whether the envelope carries the error convention the
// fallback check looks for: system role with an "error"-prefixed content.
func (e ResponseEnvelope) IsError() bool {
	return e.Role == RoleSystem && strings.HasPrefix(strings.ToLower(strings.TrimSpace(e.Content)), "error")
}
