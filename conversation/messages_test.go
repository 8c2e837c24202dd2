package conversation

import (
	"testing"

	"github.com/linxule/liminal-backrooms/models"
)

func TestAssistantRepliesSinceIndicator(t *testing.T) {
	transcript := []Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi there", Speaker: "AI-1"},
		{Role: models.RoleSystem, Content: `Rabbitholing down: "hi"`, Kind: KindBranchIndicator},
		{Role: models.RoleAssistant, Content: "first reply after", Speaker: "AI-1"},
		{Role: models.RoleAssistant, Content: "second reply after", Speaker: "AI-2"},
	}
	if got := AssistantRepliesSinceIndicator(transcript); got != 2 {
		t.Errorf("expected 2 replies after indicator, got %d", got)
	}
}

func TestAssistantRepliesSinceIndicator_NoIndicator(t *testing.T) {
	transcript := []Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi there", Speaker: "AI-1"},
		{Role: models.RoleAssistant, Content: "still here", Speaker: "AI-2"},
	}
	if got := AssistantRepliesSinceIndicator(transcript); got != 2 {
		t.Errorf("expected all assistant messages counted, got %d", got)
	}
}

func TestVisible(t *testing.T) {
	transcript := []Message{
		{Role: models.RoleUser, Content: "seed"},
		{Role: models.RoleUser, Content: "...", Hidden: true},
		{Role: models.RoleAssistant, Content: "reply", Speaker: "AI-1"},
	}
	visible := Visible(transcript)
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible messages, got %d", len(visible))
	}
	for _, msg := range visible {
		if msg.Hidden {
			t.Errorf("hidden message leaked into visible set: %q", msg.Content)
		}
	}
}

func TestIsConnectingPlaceholder(t *testing.T) {
	cases := []struct {
		msg  Message
		want bool
	}{
		{Message{Role: models.RoleUser, Content: "Connecting...", Hidden: true}, true},
		{Message{Role: models.RoleUser, Content: "connecting", Hidden: true}, true},
		{Message{Role: models.RoleUser, Content: "Connecting...", Hidden: false}, false},
		{Message{Role: models.RoleUser, Content: "hello", Hidden: true}, false},
	}
	for _, tc := range cases {
		if got := IsConnectingPlaceholder(tc.msg); got != tc.want {
			t.Errorf("IsConnectingPlaceholder(%q, hidden=%v) = %v, want %v",
				tc.msg.Content, tc.msg.Hidden, got, tc.want)
		}
	}
}
