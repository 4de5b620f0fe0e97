// Package storage provides the persistence layer for the pet server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
)

// StorageError wraps any failure of the persistence backend. Callers log it
// and carry on; the pet keeps running on its in-memory state.
type StorageError struct {
	Op      string
	OwnerID string
	Err     error
}

func (e *StorageError) Error() string {
	if e.OwnerID == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s for %s: %v", e.Op, e.OwnerID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SaveRepository persists the {stats, coins} record of one owner.
type SaveRepository interface {
	// Load returns the saved record, or nil when the owner has none.
	Load(ctx context.Context, ownerID string) (*pet.SaveData, error)

	// Save replaces the owner's record.
	Save(ctx context.Context, ownerID string, data pet.SaveData) error
}

// EventRecord mirrors the activity log event for persistence.
// The events package should NOT import this; it goes through EventPersister.
type EventRecord struct {
	ID        string         `json:"id" db:"id"`
	OwnerID   string         `json:"owner_id" db:"owner_id"`
	Timestamp time.Time      `json:"timestamp" db:"timestamp"`
	EventType string         `json:"event_type" db:"event_type"`
	Payload   map[string]any `json:"payload" db:"payload"`
}

// EventRepository defines the interface for activity log persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event EventRecord) error

	// ListByOwner returns the newest events of an owner, oldest first.
	// A limit <= 0 returns everything.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]EventRecord, error)
}
