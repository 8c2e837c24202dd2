package conversation

import (
	"errors"
	"strings"
	"testing"

	models "github.com/linxule/liminal-backrooms/models"
)

func seedTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree()
	msgs := []Message{
		{Role: models.RoleUser, Content: "tell me about the sky"},
		{Role: models.RoleAssistant, Content: "the sky is blue and vast", Speaker: "AI_1"},
		{Role: models.RoleAssistant, Content: "and full of weather", Speaker: "AI_2"},
	}
	for _, m := range msgs {
		if err := tree.Append(MainBranchID, m); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	return tree
}

func TestCreateFork_TruncatesAtAnchor(t *testing.T) {
	tree := seedTree(t)

	id, err := tree.CreateFork(MainBranchID, "is blue")
	if err != nil {
		t.Fatalf("CreateFork failed: %v", err)
	}

	transcript, err := tree.Transcript(id)
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}

	var anchored *Message
	for i := range transcript {
		if strings.Contains(transcript[i].Content, "is blue") && !transcript[i].IsIndicator() {
			anchored = &transcript[i]
		}
		if transcript[i].Content == "and full of weather" {
			t.Errorf("fork kept a message that occurred after the anchor")
		}
	}
	if anchored == nil {
		t.Fatal("fork transcript lost the anchored message")
	}
	if !strings.HasSuffix(anchored.Content, "is blue") {
		t.Errorf("Expected anchored message to end at the anchor, got %q", anchored.Content)
	}

	last := transcript[len(transcript)-1]
	if !last.IsIndicator() {
		t.Errorf("Expected trailing branch indicator, got %+v", last)
	}
}

func TestCreateFork_AnchorNotFoundCopiesFullContext(t *testing.T) {
	tree := seedTree(t)

	id, err := tree.CreateFork(MainBranchID, "spans multiple messages somehow")
	if err != nil {
		t.Fatalf("CreateFork failed: %v", err)
	}

	parent, _ := tree.Transcript(MainBranchID)
	forked, _ := tree.Transcript(id)
	// full copy plus the indicator
	if len(forked) != len(parent)+1 {
		t.Errorf("Expected %d messages, got %d", len(parent)+1, len(forked))
	}
}

func TestCreateRabbithole_InheritsFullTranscript(t *testing.T) {
	tree := seedTree(t)

	id, err := tree.CreateRabbithole(MainBranchID, "the sky")
	if err != nil {
		t.Fatalf("CreateRabbithole failed: %v", err)
	}

	parent, _ := tree.Transcript(MainBranchID)
	child, _ := tree.Transcript(id)
	if len(child) < len(parent) {
		t.Fatalf("Expected child transcript at least %d messages, got %d", len(parent), len(child))
	}
	for i, m := range parent {
		if child[i] != m {
			t.Errorf("Message %d modified by rabbithole copy: %+v != %+v", i, child[i], m)
		}
	}

	branch, _ := tree.Branch(id)
	if branch.Kind != BranchRabbithole {
		t.Errorf("Expected kind %q, got %q", BranchRabbithole, branch.Kind)
	}
	if branch.AnchorText != "the sky" {
		t.Errorf("Expected anchor %q, got %q", "the sky", branch.AnchorText)
	}
}

func TestCreateRabbithole_DropsPriorIndicators(t *testing.T) {
	tree := seedTree(t)
	first, err := tree.CreateRabbithole(MainBranchID, "the sky")
	if err != nil {
		t.Fatalf("CreateRabbithole failed: %v", err)
	}
	second, err := tree.CreateRabbithole(first, "weather")
	if err != nil {
		t.Fatalf("nested CreateRabbithole failed: %v", err)
	}

	transcript, _ := tree.Transcript(second)
	indicators := 0
	for _, m := range transcript {
		if m.IsIndicator() {
			indicators++
		}
	}
	if indicators != 1 {
		t.Errorf("Expected exactly 1 indicator in nested branch, got %d", indicators)
	}
}

func TestUnknownBranch(t *testing.T) {
	tree := NewTree()

	if err := tree.Append("missing", Message{Role: models.RoleUser, Content: "x"}); !errors.Is(err, ErrUnknownBranch) {
		t.Errorf("Expected ErrUnknownBranch from Append, got %v", err)
	}
	if _, err := tree.CreateFork("missing", "anchor"); !errors.Is(err, ErrUnknownBranch) {
		t.Errorf("Expected ErrUnknownBranch from CreateFork, got %v", err)
	}
	if _, err := tree.Transcript("missing"); !errors.Is(err, ErrUnknownBranch) {
		t.Errorf("Expected ErrUnknownBranch from Transcript, got %v", err)
	}
}

func TestBranchIDsAreUnique(t *testing.T) {
	tree := seedTree(t)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := tree.CreateRabbithole(MainBranchID, "the sky")
		if err != nil {
			t.Fatalf("CreateRabbithole failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate branch id %q", id)
		}
		seen[id] = true
	}
}

func TestTrimDuplicateTail(t *testing.T) {
	tree := NewTree()
	tree.Append(MainBranchID, Message{Role: models.RoleUser, Content: "once"})
	tree.Append(MainBranchID, Message{Role: models.RoleUser, Content: "twice"})
	tree.Append(MainBranchID, Message{Role: models.RoleUser, Content: "twice"})

	if !tree.TrimDuplicateTail(MainBranchID) {
		t.Fatal("Expected duplicate tail to be trimmed")
	}
	transcript, _ := tree.Transcript(MainBranchID)
	if len(transcript) != 2 {
		t.Errorf("Expected 2 messages after trim, got %d", len(transcript))
	}
	if tree.TrimDuplicateTail(MainBranchID) {
		t.Error("Second trim should be a no-op")
	}
}
