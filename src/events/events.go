// Package events carries post-commit notifications about card, bill,
// purchase and payment changes.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names an event; it doubles as the AMQP routing key
type Type string

const (
	CardCreated       Type = "card.created"
	CardUpdated       Type = "card.updated"
	CardDeleted       Type = "card.deleted"
	LimitRecalculated Type = "card.limit_recalculated"
	BillCreated       Type = "bill.created"
	BillDeleted       Type = "bill.deleted"
	BillStatusChanged Type = "bill.status_changed"
	BillFeesAssessed  Type = "bill.fees_assessed"
	PurchaseCreated   Type = "purchase.created"
	PurchaseUpdated   Type = "purchase.updated"
	PurchaseDeleted   Type = "purchase.deleted"
	PaymentCreated    Type = "payment.created"
	PaymentDeleted    Type = "payment.deleted"
)

// Event is a single notification
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	CardID     uuid.UUID       `json:"card_id"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New builds an event. A payload that fails to marshal is dropped.
func New(t Type, cardID, entityID uuid.UUID, payload any, at time.Time) Event {
	e := Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: at,
		CardID:     cardID,
		EntityID:   entityID,
	}
	if payload != nil {
		if body, err := json.Marshal(payload); err == nil {
			e.Payload = body
		}
	}
	return e
}

// Publisher delivers events after the originating transaction committed
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
func (NopPublisher) Close() error                            { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Publish calls return err without recording
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, events...)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// Reset drops everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
