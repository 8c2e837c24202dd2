package backrooms

import (
	"log"

	models "github.com/linxule/liminal-backrooms/models"
)

// EventType tags collaborator notifications.
type EventType string

const (
	EventTurnStarted        EventType = "turn_started"
	EventTurnFinished       EventType = "turn_finished"
	EventTurnErrored        EventType = "turn_errored"
	EventBranchCreated      EventType = "branch_created"
	EventIterationExhausted EventType = "iteration_exhausted"
)

// Event is a notification to the rendering layer. Events carry no write
// access to transcript state.
type Event struct {
	Type     EventType                `json:"type"`
	BranchID string                   `json:"branch_id,omitempty"`
	Speaker  string                   `json:"speaker,omitempty"`
	Model    string                   `json:"model,omitempty"`
	Kind     string                   `json:"kind,omitempty"`
	Anchor   string                   `json:"anchor,omitempty"`
	ParentID string                   `json:"parent_id,omitempty"`
	Message  string                   `json:"message,omitempty"`
	Envelope *models.ResponseEnvelope `json:"envelope,omitempty"`
}

// EventBus fans scheduler notifications out to one consumer channel.
// Emission never blocks a turn: when the consumer lags, events are
// dropped with a warning.
type EventBus struct {
	ch chan Event
}

func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventBus{ch: make(chan Event, buffer)}
}

// Events is the consumer side.
func (b *EventBus) Events() <-chan Event {
	return b.ch
}

func (b *EventBus) emit(ev Event) {
	if b == nil {
		return
	}
	select {
	case b.ch <- ev:
	default:
		log.Printf("Warning: dropping %s event, consumer not keeping up", ev.Type)
	}
}
