// Package events provides the activity log of the pet server: an
// append-only record of actions, sleep toggles, chat turns and saves.
package events

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType defines the category of a pet event.
type EventType string

const (
	EventTypeActionApplied  EventType = "ACTION_APPLIED"
	EventTypeActionRejected EventType = "ACTION_REJECTED"
	EventTypeSleepToggled   EventType = "SLEEP_TOGGLED"
	EventTypeChatTurn       EventType = "CHAT_TURN"
	EventTypeChatRefused    EventType = "CHAT_REFUSED"
	EventTypeSave           EventType = "SAVE"
	EventTypeSaveFailed     EventType = "SAVE_FAILED"
)

// PetEvent represents an immutable record of something that happened to a pet.
type PetEvent struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	OwnerID   string         `json:"owner_id"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent builds an event stamped with a fresh ID and the current time.
func NewEvent(eventType EventType, ownerID string, payload map[string]any) PetEvent {
	return PetEvent{
		ID:        GenerateEventID(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		OwnerID:   ownerID,
		Payload:   payload,
	}
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event PetEvent) error
}

// ErrorHandler is told about persister failures. The in-memory log keeps the
// event regardless.
type ErrorHandler func(event PetEvent, err error)

// EventLog is the in-memory append-only log of pet events, optionally
// written through to a persister.
type EventLog struct {
	mu        sync.RWMutex
	events    []PetEvent
	persister EventPersister
	onError   ErrorHandler
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister, onError ErrorHandler) *EventLog {
	return &EventLog{
		events:    make([]PetEvent, 0),
		persister: persister,
		onError:   onError,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event PetEvent) {
	el.mu.Lock()
	el.events = append(el.events, event)
	el.mu.Unlock()

	if el.persister == nil {
		return
	}
	if err := el.persister.Append(event); err != nil && el.onError != nil {
		el.onError(event, err)
	}
}

// GetByOwner returns all events recorded for a specific owner.
func (el *EventLog) GetByOwner(ownerID string) []PetEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []PetEvent
	for _, e := range el.events {
		if e.OwnerID == ownerID {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(eventType EventType) []PetEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []PetEvent
	for _, e := range el.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history in append order.
func (el *EventLog) Replay() []PetEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]PetEvent, len(el.events))
	copy(out, el.events)
	return out
}

// Len returns the number of events recorded.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// GenerateEventID creates a unique, time-sortable event identifier.
func GenerateEventID() string {
	return ulid.Make().String()
}
