package conversation

import (
	"strings"

	"github.com/linxule/liminal-backrooms/models"
)

// Message kinds. Branch indicators mark where a branch diverged and never
// participate in role-to-provider translation.
const (
	KindNormal          = "normal"
	KindBranchIndicator = "branch_indicator"
)

// Branch kinds.
const (
	BranchMain       = "main"
	BranchRabbithole = "rabbithole"
	BranchFork       = "fork"
)

// Message is one turn's content in a branch transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// RawContent holds the final answer text when Content was replaced by
	// the chain-of-thought display concatenation.
	RawContent string `json:"raw_content,omitempty"`
	Reasoning  string `json:"reasoning,omitempty"`

	// Speaker identifies which AI produced the message ("AI-1"/"AI-2").
	// Empty for human and system messages.
	Speaker   string `json:"speaker,omitempty"`
	ModelName string `json:"model_name,omitempty"`

	// Hidden messages are excluded from rendering but still included in
	// provider context.
	Hidden bool   `json:"hidden,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// IsIndicator reports whether the message is a branch divergence marker.
func (m Message) IsIndicator() bool {
	return m.Kind == KindBranchIndicator
}

// AssistantRepliesSinceIndicator counts assistant messages that occur after
// the most recent branch indicator. With no indicator present it counts all
// assistant messages, which is what the one-shot prompt policy wants for
// freshly seeded branches.
func AssistantRepliesSinceIndicator(transcript []Message) int {
	last := -1
	for i, msg := range transcript {
		if msg.IsIndicator() {
			last = i
		}
	}
	count := 0
	for i, msg := range transcript {
		if i > last && msg.Role == models.RoleAssistant {
			count++
		}
	}
	return count
}

// Visible filters out hidden messages for rendering and export.
func Visible(transcript []Message) []Message {
	out := make([]Message, 0, len(transcript))
	for _, msg := range transcript {
		if !msg.Hidden {
			out = append(out, msg)
		}
	}
	return out
}

// IsConnectingPlaceholder matches the hidden "connecting" placeholder the
// GUI inserts while a provider call is in flight.
func IsConnectingPlaceholder(m Message) bool {
	return m.Hidden && strings.Contains(strings.ToLower(m.Content), "connect")
}
