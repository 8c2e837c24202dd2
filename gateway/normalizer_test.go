package gateway

import (
	"errors"
	"strings"
	"testing"

	models "github.com/linxule/liminal-backrooms/models"
)

func TestNormalize_ThinkTagRoundTrip(t *testing.T) {
	n := &Normalizer{}

	env := n.Normalize("<think>plan</think>final text")
	if env.Content != "final text" {
		t.Errorf("Expected content %q, got %q", "final text", env.Content)
	}
	if env.Reasoning != "plan" {
		t.Errorf("Expected reasoning %q, got %q", "plan", env.Reasoning)
	}

	// Re-normalizing the stripped content must be a no-op.
	again := n.Normalize(env.Content)
	if again.Content != env.Content || again.Reasoning != "" {
		t.Errorf("Normalize not idempotent: %+v", again)
	}
}

func TestNormalize_MismatchedTagsLeftInPlace(t *testing.T) {
	n := &Normalizer{}
	env := n.Normalize("<think>plan</thinking>text")
	if env.Reasoning != "" {
		t.Errorf("Mismatched tags must not extract reasoning, got %q", env.Reasoning)
	}
	if !strings.Contains(env.Content, "<think>") {
		t.Errorf("Mismatched tags should be preserved, got %q", env.Content)
	}
}

func TestNormalize_ErrorString(t *testing.T) {
	n := &Normalizer{}
	env := n.Normalize("Error calling Claude API: boom")
	if env.Role != models.RoleSystem {
		t.Errorf("Expected system role, got %q", env.Role)
	}
	if !env.IsError() {
		t.Error("Expected error envelope")
	}
}

func TestNormalize_GoError(t *testing.T) {
	n := &Normalizer{}
	env := n.Normalize(errors.New("connection refused"))
	if !env.IsError() {
		t.Errorf("Expected error envelope, got %+v", env)
	}
	if !strings.Contains(env.Content, "connection refused") {
		t.Errorf("Error text lost: %q", env.Content)
	}
}

func TestNormalize_NilAndEmpty(t *testing.T) {
	n := &Normalizer{}

	if env := n.Normalize(nil); !env.IsError() {
		t.Errorf("nil must normalize to an error envelope, got %+v", env)
	}
	if env := n.Normalize(models.ProviderReply{}); !env.IsError() {
		t.Errorf("empty reply must normalize to an error envelope, got %+v", env)
	}
}

func TestNormalize_ReasoningBlocksMergedAndDeduped(t *testing.T) {
	n := &Normalizer{}
	env := n.Normalize(models.ProviderReply{
		Content:         "<thinking>shared block</thinking>answer",
		ReasoningBlocks: []string{"shared block", "provider-only block"},
	})
	if env.Content != "answer" {
		t.Errorf("Expected %q, got %q", "answer", env.Content)
	}
	want := "shared block\nprovider-only block"
	if env.Reasoning != want {
		t.Errorf("Expected merged reasoning %q, got %q", want, env.Reasoning)
	}
}

func TestNormalize_SynthesizesFinalAnswer(t *testing.T) {
	n := &Normalizer{}

	env := n.Normalize(models.ProviderReply{
		ReasoningBlocks: []string{"step one\nstep two\nFinal answer: forty-two"},
	})
	if env.Content != "forty-two" {
		t.Errorf("Expected synthesized answer %q, got %q", "forty-two", env.Content)
	}

	env = n.Normalize(models.ProviderReply{
		ReasoningBlocks: []string{"step one\nthe last line stands"},
	})
	if env.Content != "the last line stands" {
		t.Errorf("Expected last non-empty line, got %q", env.Content)
	}
}

func TestNormalize_DisplayOnlyWhenEnabled(t *testing.T) {
	reply := models.ProviderReply{Content: "<think>plan</think>final"}

	off := (&Normalizer{}).Normalize(reply)
	if off.Display != "" {
		t.Errorf("Display must be empty when chain-of-thought is off, got %q", off.Display)
	}

	on := (&Normalizer{ShowChainOfThought: true}).Normalize(reply)
	want := "[Chain of Thought]\nplan\n\n[Final Answer]\nfinal"
	if on.Display != want {
		t.Errorf("Expected display %q, got %q", want, on.Display)
	}
}
