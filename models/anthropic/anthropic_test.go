package anthropic

import (
	"testing"

	models "github.com/linxule/liminal-backrooms/models"
)

func TestMergeConsecutiveMessages(t *testing.T) {
	msgs := []Msg{
		{Role: "user", Content: "a"},
		{Role: "user", Content: "b"},
		{Role: "assistant", Content: "c"},
		{Role: "assistant", Content: "d"},
		{Role: "user", Content: "e"},
	}
	merged := mergeConsecutiveMessages(msgs)
	if len(merged) != 3 {
		t.Fatalf("Expected 3 merged messages, got %d", len(merged))
	}
	if merged[0].Content != "a\nb" {
		t.Errorf("Expected merged user content, got %q", merged[0].Content)
	}
	if merged[1].Content != "c\nd" {
		t.Errorf("Expected merged assistant content, got %q", merged[1].Content)
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Role == merged[i-1].Role {
			t.Errorf("Roles not alternating at %d: %q", i, merged[i].Role)
		}
	}
}

func TestSupportsExtendedThinking(t *testing.T) {
	if !SupportsExtendedThinking("claude-3-7-sonnet-20250219") {
		t.Error("claude-3-7 should support thinking")
	}
	if !SupportsExtendedThinking("CLAUDE-4-OPUS") {
		t.Error("model id check should be case-insensitive")
	}
	if SupportsExtendedThinking("claude-3-5-sonnet-20241022") {
		t.Error("claude-3-5 should not enable thinking")
	}
}

func TestBuildRequest(t *testing.T) {
	maxTokens := 512
	payload := models.ProviderPayload{
		Prompt: "latest question",
		ContextMessages: []models.ChatMessage{
			{Role: "user", Content: "earlier"},
			{Role: "assistant", Content: "reply"},
			{Role: "user", Content: "earlier"}, // duplicate, dropped
		},
		ModelID:      "claude-3-7-sonnet-20250219",
		SystemPrompt: "persona",
		Options: models.CallOptions{
			MaxTokens:            &maxTokens,
			ExtendedThinking:     true,
			ThinkingBudgetTokens: 2000,
		},
	}

	req := (&Client{}).buildRequest(payload)

	if req.System != "persona" || req.MaxTokens != 512 {
		t.Errorf("Unexpected request fields: %+v", req)
	}
	if req.Thinking == nil || req.Thinking.BudgetTokens != 2000 {
		t.Errorf("Expected thinking config, got %+v", req.Thinking)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || last.Content != "latest question" {
		t.Errorf("Prompt must be the final user message, got %+v", last)
	}
	for i := 1; i < len(req.Messages); i++ {
		if req.Messages[i].Role == req.Messages[i-1].Role {
			t.Errorf("Roles not alternating at %d", i)
		}
	}
	for _, m := range req.Messages {
		if m.Content == "earlier\nearlier" {
			t.Error("Duplicate context message survived")
		}
	}
}
