package backrooms

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linxule/liminal-backrooms/conversation"
	"github.com/linxule/liminal-backrooms/gateway"
	models "github.com/linxule/liminal-backrooms/models"
	"github.com/linxule/liminal-backrooms/prompt"
)

// State is the scheduler's position in one branch's turn loop.
type State string

const (
	StateIdle         State = "idle"
	StateSpeaker1Turn State = "speaker1_turn"
	StateSpeaker2Turn State = "speaker2_turn"
	StateTurnComplete State = "turn_complete"
	StatePaused       State = "paused"
)

// PausedMarker is appended when the iteration limit is reached; running
// the branch again resumes from it.
const PausedMarker = "Paused - click continue to resume."

var ErrBranchBusy = errors.New("branch already has a turn sequence in flight")

// Speaker identifies one side of the conversation.
type Speaker struct {
	Name         string // speaker tag stored on produced messages
	Model        string // display name resolved through the config registry
	SystemPrompt string
}

// RunRequest starts or resumes the turn loop on a branch.
type RunRequest struct {
	BranchID string // empty means main
	Seed     string // optional user text; empty continues the conversation
	// MaxIterations bounds completed speaker pairs before pausing.
	MaxIterations int
}

// Scheduler alternates two speakers over a branch transcript. It is the
// sole writer of transcript state: provider calls run on the worker pool
// and their envelopes come back over a channel before being appended.
type Scheduler struct {
	cfg  *Config
	gw   *gateway.Gateway
	tree *conversation.Tree
	bus  *EventBus
	pool *workerPool

	mu     sync.Mutex
	busy   map[string]bool
	states map[string]State
}

func NewScheduler(cfg *Config, gw *gateway.Gateway, tree *conversation.Tree, bus *EventBus) *Scheduler {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Scheduler{
		cfg:    cfg,
		gw:     gw,
		tree:   tree,
		bus:    bus,
		pool:   newWorkerPool(cfg.MaxWorkers),
		busy:   make(map[string]bool),
		states: make(map[string]State),
	}
}

// Tree exposes the transcript store for read access.
func (s *Scheduler) Tree() *conversation.Tree {
	return s.tree
}

// State reports where the branch's loop currently is.
func (s *Scheduler) State(branchID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[branchID]; ok {
		return st
	}
	return StateIdle
}

func (s *Scheduler) setState(branchID string, st State) {
	s.mu.Lock()
	s.states[branchID] = st
	s.mu.Unlock()
}

// CreateRabbithole branches with full context and announces the branch.
func (s *Scheduler) CreateRabbithole(parentID, anchorText string) (string, error) {
	id, err := s.tree.CreateRabbithole(parentID, anchorText)
	if err != nil {
		return "", err
	}
	s.bus.emit(Event{
		Type:     EventBranchCreated,
		BranchID: id,
		Kind:     conversation.BranchRabbithole,
		Anchor:   anchorText,
		ParentID: parentID,
	})
	return id, nil
}

// CreateFork branches at the anchor text and announces the branch.
func (s *Scheduler) CreateFork(parentID, anchorText string) (string, error) {
	id, err := s.tree.CreateFork(parentID, anchorText)
	if err != nil {
		return "", err
	}
	s.bus.emit(Event{
		Type:     EventBranchCreated,
		BranchID: id,
		Kind:     conversation.BranchFork,
		Anchor:   anchorText,
		ParentID: parentID,
	})
	return id, nil
}

// Run drives the turn loop until the iteration limit pauses it. It blocks
// the caller; a branch with a loop already in flight rejects the request.
// Resuming a paused branch resets its turn count and continues from the
// stored transcript (for forks, that transcript is already the truncated
// anchor context).
func (s *Scheduler) Run(req RunRequest, speaker1, speaker2 Speaker) error {
	branchID := req.BranchID
	if branchID == "" {
		branchID = conversation.MainBranchID
	}
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	if _, err := s.tree.Branch(branchID); err != nil {
		return err
	}

	s.mu.Lock()
	if s.busy[branchID] {
		s.mu.Unlock()
		return fmt.Errorf("branch %s: %w", branchID, ErrBranchBusy)
	}
	s.busy[branchID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.busy, branchID)
		s.mu.Unlock()
	}()

	s.tree.TrimDuplicateTail(branchID)

	if count, err := s.tree.TurnCount(branchID); err == nil && count >= maxIterations {
		s.tree.SetTurnCount(branchID, 0)
	}

	if err := s.seed(branchID, req.Seed); err != nil {
		return err
	}

	for {
		count, err := s.tree.TurnCount(branchID)
		if err != nil {
			return err
		}
		if count >= maxIterations {
			s.setState(branchID, StatePaused)
			s.tree.Append(branchID, conversation.Message{
				Role:    models.RoleSystem,
				Content: PausedMarker,
			})
			s.bus.emit(Event{Type: EventIterationExhausted, BranchID: branchID})
			return nil
		}

		// A failed call still advances the loop; the error lives in the
		// transcript as a visible system message.
		s.setState(branchID, StateSpeaker1Turn)
		s.takeTurn(branchID, speaker1)
		time.Sleep(s.cfg.TurnDelay)

		s.setState(branchID, StateSpeaker2Turn)
		s.takeTurn(branchID, speaker2)

		s.setState(branchID, StateTurnComplete)
		if _, err := s.tree.IncrementTurnCount(branchID); err != nil {
			return err
		}
		time.Sleep(s.cfg.TurnDelay)
	}
}

// seed prepares the transcript for the first turn: explicit seed text
// becomes a visible user message; a branch whose transcript still ends on
// its indicator gets the branch-appropriate opener instead.
func (s *Scheduler) seed(branchID, seed string) error {
	if seed != "" {
		return s.tree.Append(branchID, conversation.Message{
			Role:    models.RoleUser,
			Content: seed,
		})
	}

	transcript, err := s.tree.Transcript(branchID)
	if err != nil {
		return err
	}
	if len(transcript) == 0 || !transcript[len(transcript)-1].IsIndicator() {
		return nil
	}

	branch, err := s.tree.Branch(branchID)
	if err != nil {
		return err
	}
	switch branch.Kind {
	case conversation.BranchRabbithole:
		return s.tree.Append(branchID, conversation.Message{
			Role:    models.RoleUser,
			Content: branch.AnchorText,
		})
	case conversation.BranchFork:
		return s.tree.Append(branchID, conversation.Message{
			Role:    models.RoleUser,
			Content: "...",
			Hidden:  true,
		})
	}
	return nil
}

func (s *Scheduler) takeTurn(branchID string, sp Speaker) {
	transcript, err := s.tree.Transcript(branchID)
	if err != nil {
		s.bus.emit(Event{Type: EventTurnErrored, BranchID: branchID, Speaker: sp.Name, Message: err.Error()})
		return
	}

	asm := prompt.Build(sp.SystemPrompt, sp.Name, transcript, s.cfg.ShareChainOfThought)
	mc := s.cfg.ResolveModel(sp.Model)

	opts := mc.Options
	if s.cfg.EnableExtendedThinking {
		opts.ExtendedThinking = true
		opts.ThinkingBudgetTokens = s.cfg.ThinkingBudgetTokens
	}

	payload := &models.ProviderPayload{
		Prompt:           asm.Prompt,
		ContextMessages:  asm.ContextMessages,
		FullMessages:     asm.Messages,
		ModelID:          mc.ModelID,
		SystemPrompt:     asm.SystemPrompt,
		Options:          opts,
		FallbackProvider: mc.FallbackProvider,
		FallbackModel:    mc.FallbackModel,
	}

	s.bus.emit(Event{Type: EventTurnStarted, BranchID: branchID, Speaker: sp.Name, Model: sp.Model})

	envCh := make(chan models.ResponseEnvelope, 1)
	s.pool.submit(func() {
		envCh <- s.gw.Invoke(mc.Provider, payload)
	})
	env := <-envCh

	if env.IsError() {
		s.bus.emit(Event{Type: EventTurnErrored, BranchID: branchID, Speaker: sp.Name, Message: env.Content})
		s.tree.Append(branchID, conversation.Message{
			Role:      models.RoleSystem,
			Content:   env.Content,
			Speaker:   sp.Name,
			ModelName: sp.Model,
		})
		return
	}

	content := env.Content
	if s.cfg.ShareChainOfThought && env.Display != "" {
		content = env.Display
	}
	s.tree.Append(branchID, conversation.Message{
		Role:       models.RoleAssistant,
		Content:    content,
		RawContent: env.Content,
		Reasoning:  env.Reasoning,
		Speaker:    sp.Name,
		ModelName:  sp.Model,
	})
	s.bus.emit(Event{Type: EventTurnFinished, BranchID: branchID, Speaker: sp.Name, Model: sp.Model, Envelope: &env})
}
