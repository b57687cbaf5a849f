// Package events carries assessment events beyond the in-process
// dispatcher: a JSON envelope shared by the SSE stream and RabbitMQ, a
// forwarder that republishes bus events to a queue, and a consumer for it.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

// Bus is the in-process publish/subscribe channel
type Bus = domain.EventDispatcher

// NewBus creates an empty bus
func NewBus() *Bus {
	return domain.NewEventDispatcher()
}

// Envelope is the wire form of an event
type Envelope struct {
	ID         uuid.UUID         `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Problem    domain.ProblemKey `json:"problem"`
	Payload    json.RawMessage   `json:"payload"`
}

// NewEnvelope wraps an event with its JSON payload
func NewEnvelope(e domain.Event) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s event: %w", e.EventType(), err)
	}
	return Envelope{
		ID:         e.EventID(),
		Type:       e.EventType(),
		OccurredAt: e.OccurredAt(),
		Problem:    e.ProblemKey(),
		Payload:    payload,
	}, nil
}

// Matches reports whether the envelope belongs to key. A zero key matches
// every event.
func (e Envelope) Matches(key domain.ProblemKey) bool {
	return key == (domain.ProblemKey{}) || e.Problem == key
}
