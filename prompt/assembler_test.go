package prompt

import (
	"strings"
	"testing"

	"github.com/linxule/liminal-backrooms/conversation"
	models "github.com/linxule/liminal-backrooms/models"
)

func TestBuild_SystemMessageFirst(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleSystem, Content: "stale embedded system prompt"},
		{Role: models.RoleUser, Content: "hello"},
	}
	asm := Build("persona prompt", "AI_1", transcript, false)

	if len(asm.Messages) == 0 || asm.Messages[0].Role != models.RoleSystem {
		t.Fatalf("Expected leading system message, got %+v", asm.Messages)
	}
	if asm.Messages[0].Content != "persona prompt" {
		t.Errorf("Expected the speaker's prompt, got %q", asm.Messages[0].Content)
	}
	for _, m := range asm.Messages[1:] {
		if m.Role == models.RoleSystem {
			t.Errorf("Embedded system message leaked into assembly: %q", m.Content)
		}
	}
}

func TestBuild_DedupInvariant(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleUser, Content: "same thing"},
		{Role: models.RoleAssistant, Content: "reply", Speaker: "AI_1"},
		{Role: models.RoleUser, Content: "same thing"},
		{Role: models.RoleUser, Content: "different thing"},
	}
	asm := Build("p", "AI_1", transcript, false)

	seen := make(map[string]bool)
	for _, m := range asm.Messages {
		if seen[m.Content] {
			t.Errorf("Duplicate content in assembly: %q", m.Content)
		}
		seen[m.Content] = true
	}
}

func TestBuild_SkipsConnectingPlaceholder(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleUser, Content: "Connecting...", Hidden: true},
		{Role: models.RoleUser, Content: "real input"},
	}
	asm := Build("p", "AI_1", transcript, false)
	for _, m := range asm.Messages {
		if strings.Contains(m.Content, "Connecting") {
			t.Errorf("Connecting placeholder leaked: %q", m.Content)
		}
	}
}

func TestBuild_RoleAssignmentBySpeaker(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleAssistant, Content: "mine", Speaker: "AI_1"},
		{Role: models.RoleAssistant, Content: "theirs", Speaker: "AI_2"},
		{Role: models.RoleUser, Content: "human text"},
	}
	asm := Build("p", "AI_1", transcript, false)

	roles := make(map[string]string)
	for _, m := range asm.Messages[1:] {
		roles[m.Content] = m.Role
	}
	if roles["mine"] != models.RoleAssistant {
		t.Errorf("Own message should be assistant, got %q", roles["mine"])
	}
	if roles["theirs"] != models.RoleUser {
		t.Errorf("Other speaker should look like user, got %q", roles["theirs"])
	}
	if roles["human text"] != models.RoleUser {
		t.Errorf("Human message should be user, got %q", roles["human text"])
	}
}

func TestBuild_TrailingRoleInvariant(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleUser, Content: "question"},
		{Role: models.RoleAssistant, Content: "my own last word", Speaker: "AI_1"},
	}
	asm := Build("p", "AI_1", transcript, false)

	last := asm.Messages[len(asm.Messages)-1]
	if last.Role == models.RoleAssistant {
		t.Fatalf("Assembly must never end on assistant, got %+v", last)
	}
	// With no branch in play the other side's latest message is reused.
	if last.Content != "question" {
		t.Errorf("Expected other speaker's latest message, got %q", last.Content)
	}
}

func TestBuild_TrailingFallbackWithoutOtherSpeaker(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleAssistant, Content: "soliloquy", Speaker: "AI_1"},
	}
	asm := Build("p", "AI_1", transcript, false)

	last := asm.Messages[len(asm.Messages)-1]
	if last.Role != models.RoleUser || last.Content != "Let's continue our conversation." {
		t.Errorf("Expected generic continuation message, got %+v", last)
	}
}

func TestBuild_RabbitholeOverrides(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleUser, Content: "earlier context"},
		{Role: models.RoleSystem, Content: `Rabbitholing down: "the void"`, Kind: conversation.KindBranchIndicator},
		{Role: models.RoleAssistant, Content: "first exploration", Speaker: "AI_1"},
	}
	asm := Build("persona", "AI_1", transcript, false)

	if asm.SystemPrompt != "'the void'!!!" {
		t.Errorf("Expected rabbithole override prompt, got %q", asm.SystemPrompt)
	}
	last := asm.Messages[len(asm.Messages)-1]
	if !strings.Contains(last.Content, "explore the concept of 'the void'") {
		t.Errorf("Expected rabbithole closing instruction, got %q", last.Content)
	}

	// After two assistant replies the persona prompt comes back.
	transcript = append(transcript,
		conversation.Message{Role: models.RoleAssistant, Content: "second exploration", Speaker: "AI_2"},
	)
	asm = Build("persona", "AI_1", transcript, false)
	if asm.SystemPrompt != "persona" {
		t.Errorf("Expected persona prompt after two replies, got %q", asm.SystemPrompt)
	}
}

func TestBuild_ForkOverrideFirstReplyOnly(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleUser, Content: "earlier context"},
		{Role: models.RoleSystem, Content: `Forking off: "a point"`, Kind: conversation.KindBranchIndicator},
	}
	asm := Build("persona", "AI_1", transcript, false)
	if !strings.Contains(asm.SystemPrompt, "The conversation forks from 'a point'") {
		t.Errorf("Expected fork override prompt, got %q", asm.SystemPrompt)
	}

	transcript = append(transcript,
		conversation.Message{Role: models.RoleAssistant, Content: "continued", Speaker: "AI_1"},
	)
	asm = Build("persona", "AI_2", transcript, false)
	if asm.SystemPrompt != "persona" {
		t.Errorf("Expected persona prompt after first fork reply, got %q", asm.SystemPrompt)
	}
}

func TestBuild_ShareReasoningConcatenation(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleUser, Content: "question"},
		{
			Role:       models.RoleAssistant,
			Content:    "final answer",
			RawContent: "final answer",
			Reasoning:  "hidden deliberation",
			Speaker:    "AI_2",
		},
	}

	asm := Build("p", "AI_1", transcript, false)
	for _, m := range asm.Messages {
		if strings.Contains(m.Content, "hidden deliberation") {
			t.Errorf("Reasoning leaked without sharing enabled: %q", m.Content)
		}
	}

	asm = Build("p", "AI_1", transcript, true)
	found := false
	for _, m := range asm.Messages {
		if strings.Contains(m.Content, "[Chain of Thought]\nhidden deliberation") &&
			strings.Contains(m.Content, "[Final Answer]\nfinal answer") {
			found = true
		}
	}
	if !found {
		t.Error("Expected chain-of-thought concatenation when sharing is on")
	}
}

func TestBuild_PromptAndContextSplit(t *testing.T) {
	transcript := []conversation.Message{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "second", Speaker: "AI_2"},
		{Role: models.RoleUser, Content: "third"},
	}
	asm := Build("p", "AI_1", transcript, false)

	if asm.Prompt != "third" {
		t.Errorf("Expected newest non-system content as prompt, got %q", asm.Prompt)
	}
	if len(asm.ContextMessages) != 2 {
		t.Fatalf("Expected 2 context messages, got %d", len(asm.ContextMessages))
	}
	for _, m := range asm.ContextMessages {
		if m.Content == "third" || m.Role == models.RoleSystem {
			t.Errorf("Context should exclude the prompt and system message, got %+v", m)
		}
	}
}

func TestBuild_EmptyTranscript(t *testing.T) {
	asm := Build("p", "AI_1", nil, false)
	if asm.Prompt != DefaultPrompt {
		t.Errorf("Expected %q for empty transcript, got %q", DefaultPrompt, asm.Prompt)
	}
	if len(asm.Messages) != 1 {
		t.Errorf("Expected only the system message, got %d", len(asm.Messages))
	}
}
