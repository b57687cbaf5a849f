package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event types
const (
	EventKeyChanged          = "key_changed"
	EventStateChanged        = "state_changed"
	EventRunCompleted        = "run_completed"
	EventCustomRunCompleted  = "custom_run_completed"
	EventSubmissionCompleted = "submission_completed"
	EventCooldownTick        = "cooldown_tick"
	EventCooldownFinished    = "cooldown_finished"
)

// Event represents something that happened in an assessment session
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// ProblemKey returns the problem the event belongs to; zero for
	// storage-level events
	ProblemKey() ProblemKey
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Problem   ProblemKey `json:"problem"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType string, key ProblemKey) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Problem:   key,
	}
}

func (e BaseEvent) EventID() uuid.UUID     { return e.ID }
func (e BaseEvent) EventType() string      { return e.Type }
func (e BaseEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e BaseEvent) ProblemKey() ProblemKey { return e.Problem }

// KeyChangedEvent is published whenever durable client storage is written.
type KeyChangedEvent struct {
	BaseEvent
	Key     string `json:"key"`
	Deleted bool   `json:"deleted,omitempty"`
}

// NewKeyChangedEvent creates a KeyChangedEvent
func NewKeyChangedEvent(key string, deleted bool) KeyChangedEvent {
	return KeyChangedEvent{
		BaseEvent: NewBaseEvent(EventKeyChanged, ProblemKey{}),
		Key:       key,
		Deleted:   deleted,
	}
}

// StateChangedEvent records an orchestrator state transition
type StateChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// NewStateChangedEvent creates a StateChangedEvent
func NewStateChangedEvent(key ProblemKey, from, to string) StateChangedEvent {
	return StateChangedEvent{
		BaseEvent: NewBaseEvent(EventStateChanged, key),
		From:      from,
		To:        to,
	}
}

// RunCompletedEvent is published when a test-case run finishes
type RunCompletedEvent struct {
	BaseEvent
	Language  string `json:"language"`
	Total     int    `json:"total"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	AllPassed bool   `json:"all_passed"`
	Error     string `json:"error,omitempty"`
}

// NewRunCompletedEvent creates a RunCompletedEvent
func NewRunCompletedEvent(key ProblemKey, language string, total, passed, failed int, allPassed bool, errMsg string) RunCompletedEvent {
	return RunCompletedEvent{
		BaseEvent: NewBaseEvent(EventRunCompleted, key),
		Language:  language,
		Total:     total,
		Passed:    passed,
		Failed:    failed,
		AllPassed: allPassed,
		Error:     errMsg,
	}
}

// CustomRunCompletedEvent is published when a custom-input run finishes
type CustomRunCompletedEvent struct {
	BaseEvent
	Language string `json:"language"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// NewCustomRunCompletedEvent creates a CustomRunCompletedEvent
func NewCustomRunCompletedEvent(key ProblemKey, language, status, errMsg string) CustomRunCompletedEvent {
	return CustomRunCompletedEvent{
		BaseEvent: NewBaseEvent(EventCustomRunCompleted, key),
		Language:  language,
		Status:    status,
		Error:     errMsg,
	}
}

// SubmissionCompletedEvent is published when a submit attempt finishes
type SubmissionCompletedEvent struct {
	BaseEvent
	Language      string `json:"language"`
	Status        string `json:"status"`
	Total         int    `json:"total"`
	Passed        int    `json:"passed"`
	Failed        int    `json:"failed"`
	FullyAccepted bool   `json:"fully_accepted"`
	Error         string `json:"error,omitempty"`
}

// NewSubmissionCompletedEvent creates a SubmissionCompletedEvent
func NewSubmissionCompletedEvent(key ProblemKey, language string, result SubmitResult, errMsg string) SubmissionCompletedEvent {
	return SubmissionCompletedEvent{
		BaseEvent:     NewBaseEvent(EventSubmissionCompleted, key),
		Language:      language,
		Status:        result.Status,
		Total:         result.TotalTestCases,
		Passed:        result.PassedCount,
		Failed:        result.FailedCount,
		FullyAccepted: errMsg == "" && result.FullyAccepted(),
		Error:         errMsg,
	}
}

// CooldownTickEvent is published once per second while a cooldown runs
type CooldownTickEvent struct {
	BaseEvent
	RemainingSeconds int `json:"remaining_seconds"`
}

// NewCooldownTickEvent creates a CooldownTickEvent
func NewCooldownTickEvent(key ProblemKey, remaining int) CooldownTickEvent {
	return CooldownTickEvent{
		BaseEvent:        NewBaseEvent(EventCooldownTick, key),
		RemainingSeconds: remaining,
	}
}

// CooldownFinishedEvent is published when a cooldown reaches zero
type CooldownFinishedEvent struct {
	BaseEvent
}

// NewCooldownFinishedEvent creates a CooldownFinishedEvent
func NewCooldownFinishedEvent(key ProblemKey) CooldownFinishedEvent {
	return CooldownFinishedEvent{BaseEvent: NewBaseEvent(EventCooldownFinished, key)}
}

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventPublisher is the write side of the dispatcher
type EventPublisher interface {
	Publish(event Event)
}

// EventDispatcher fans events out to channel subscribers
type EventDispatcher struct {
	mu       sync.RWMutex
	nextID   int
	channels map[int]chan Event
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		channels: make(map[int]chan Event),
	}
}

// SubscribeChan returns a buffered channel receiving every event and a
// cancel func that closes it. Events are dropped for a full channel.
func (d *EventDispatcher) SubscribeChan(buffer int) (<-chan Event, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	ch := make(chan Event, buffer)
	d.channels[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.channels, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking
func (d *EventDispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, ch := range d.channels {
		select {
		case ch <- event:
		default:
		}
	}
}
