package conversation

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linxule/liminal-backrooms/models"
)

// MainBranchID is the root branch every tree starts with.
const MainBranchID = "main"

// ErrUnknownBranch is returned for operations referencing a branch ID not
// present in the tree. Fatal to that operation only.
var ErrUnknownBranch = errors.New("unknown branch id")

// Branch is one conversation thread.
type Branch struct {
	ID         string    `json:"id"`
	ParentID   string    `json:"parent_id"`
	Kind       string    `json:"kind"`
	AnchorText string    `json:"anchor_text,omitempty"`
	Transcript []Message `json:"transcript"`
	TurnCount  int       `json:"turn_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Tree holds every branch of a session. Branches are never deleted, only
// hidden from the active view by the caller.
type Tree struct {
	mu       sync.RWMutex
	branches map[string]*Branch
}

// NewTree creates a tree with an empty main branch.
func NewTree() *Tree {
	t := &Tree{branches: make(map[string]*Branch)}
	t.branches[MainBranchID] = &Branch{
		ID:        MainBranchID,
		ParentID:  "",
		Kind:      BranchMain,
		CreatedAt: time.Now(),
	}
	return t
}

// CreateRabbithole copies the parent's full transcript (minus prior branch
// indicators), appends a new indicator naming the anchor text, and stores
// the result as a rabbithole branch.
func (t *Tree) CreateRabbithole(parentID, anchorText string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.branches[parentID]
	if !ok {
		return "", fmt.Errorf("create rabbithole from %q: %w", parentID, ErrUnknownBranch)
	}

	transcript := make([]Message, 0, len(parent.Transcript)+1)
	for _, msg := range parent.Transcript {
		if msg.IsIndicator() {
			continue
		}
		transcript = append(transcript, msg)
	}
	transcript = append(transcript, Message{
		Role:    models.RoleSystem,
		Content: fmt.Sprintf("Rabbitholing down: %q", anchorText),
		Kind:    KindBranchIndicator,
	})

	branch := &Branch{
		ID:         BranchRabbithole + "_" + uuid.NewString(),
		ParentID:   parentID,
		Kind:       BranchRabbithole,
		AnchorText: anchorText,
		Transcript: transcript,
		CreatedAt:  time.Now(),
	}
	t.branches[branch.ID] = branch
	return branch.ID, nil
}

// CreateFork copies the parent's transcript up to and including the first
// message containing anchorText, truncating that message to end exactly at
// the anchor. System messages (other than indicators) are always kept. When
// the anchor does not occur in any single message (a selection spanning
// messages), the fork degrades to a full-context copy with a warning.
func (t *Tree) CreateFork(parentID, anchorText string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.branches[parentID]
	if !ok {
		return "", fmt.Errorf("create fork from %q: %w", parentID, ErrUnknownBranch)
	}

	anchorIdx := -1
	for i, msg := range parent.Transcript {
		if msg.IsIndicator() {
			continue
		}
		if (msg.Role == models.RoleUser || msg.Role == models.RoleAssistant) && strings.Contains(msg.Content, anchorText) {
			anchorIdx = i
			break
		}
	}

	var transcript []Message
	if anchorIdx < 0 {
		log.Printf("Warning: fork anchor text not found in any single message, copying full context")
		for _, msg := range parent.Transcript {
			if msg.IsIndicator() {
				continue
			}
			transcript = append(transcript, msg)
		}
	} else {
		for i, msg := range parent.Transcript {
			if msg.IsIndicator() {
				continue
			}
			if msg.Role == models.RoleSystem {
				transcript = append(transcript, msg)
				continue
			}
			if i > anchorIdx {
				continue
			}
			if i == anchorIdx {
				pos := strings.Index(msg.Content, anchorText)
				truncated := msg
				truncated.Content = msg.Content[:pos+len(anchorText)]
				transcript = append(transcript, truncated)
				continue
			}
			transcript = append(transcript, msg)
		}
	}
	transcript = append(transcript, Message{
		Role:    models.RoleSystem,
		Content: fmt.Sprintf("Forking off: %q", anchorText),
		Kind:    KindBranchIndicator,
	})

	branch := &Branch{
		ID:         BranchFork + "_" + uuid.NewString(),
		ParentID:   parentID,
		Kind:       BranchFork,
		AnchorText: anchorText,
		Transcript: transcript,
		CreatedAt:  time.Now(),
	}
	t.branches[branch.ID] = branch
	return branch.ID, nil
}

// Append adds a message to a branch transcript.
func (t *Tree) Append(branchID string, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	branch, ok := t.branches[branchID]
	if !ok {
		return fmt.Errorf("append to %q: %w", branchID, ErrUnknownBranch)
	}
	branch.Transcript = append(branch.Transcript, msg)
	return nil
}

// Branch returns a snapshot of one branch, transcript copied.
func (t *Tree) Branch(branchID string) (Branch, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	branch, ok := t.branches[branchID]
	if !ok {
		return Branch{}, fmt.Errorf("lookup %q: %w", branchID, ErrUnknownBranch)
	}
	snapshot := *branch
	snapshot.Transcript = append([]Message(nil), branch.Transcript...)
	return snapshot, nil
}

// Transcript returns a copy of a branch's transcript.
func (t *Tree) Transcript(branchID string) ([]Message, error) {
	branch, err := t.Branch(branchID)
	if err != nil {
		return nil, err
	}
	return branch.Transcript, nil
}

// Branches lists snapshot copies of every branch, creation order not
// guaranteed.
func (t *Tree) Branches() []Branch {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Branch, 0, len(t.branches))
	for _, branch := range t.branches {
		snapshot := *branch
		snapshot.Transcript = append([]Message(nil), branch.Transcript...)
		out = append(out, snapshot)
	}
	return out
}

// TurnCount reads a branch's completed turn-pair count.
func (t *Tree) TurnCount(branchID string) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	branch, ok := t.branches[branchID]
	if !ok {
		return 0, fmt.Errorf("turn count of %q: %w", branchID, ErrUnknownBranch)
	}
	return branch.TurnCount, nil
}

// SetTurnCount overwrites a branch's turn-pair count.
func (t *Tree) SetTurnCount(branchID string, n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	branch, ok := t.branches[branchID]
	if !ok {
		return fmt.Errorf("set turn count of %q: %w", branchID, ErrUnknownBranch)
	}
	branch.TurnCount = n
	return nil
}

// IncrementTurnCount bumps a branch's turn-pair count and returns the new
// value.
func (t *Tree) IncrementTurnCount(branchID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	branch, ok := t.branches[branchID]
	if !ok {
		return 0, fmt.Errorf("increment turn count of %q: %w", branchID, ErrUnknownBranch)
	}
	branch.TurnCount++
	return branch.TurnCount, nil
}

// TrimDuplicateTail drops the newest message when the last two entries have
// identical content. Branch resumes occasionally double-append the seed.
func (t *Tree) TrimDuplicateTail(branchID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	branch, ok := t.branches[branchID]
	if !ok {
		return false
	}
	n := len(branch.Transcript)
	if n < 2 {
		return false
	}
	if branch.Transcript[n-1].Content != branch.Transcript[n-2].Content {
		return false
	}
	branch.Transcript = branch.Transcript[:n-1]
	log.Printf("Removed duplicate tail message from branch %s", branchID)
	return true
}
