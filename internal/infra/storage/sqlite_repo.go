package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
)

// ---------------------------------------------------------
// SQLiteSaveRepository
// ---------------------------------------------------------

// SQLiteSaveRepository implements SaveRepository for SQLite.
type SQLiteSaveRepository struct {
	db *sql.DB
}

func NewSQLiteSaveRepository(db *sql.DB) *SQLiteSaveRepository {
	return &SQLiteSaveRepository{db: db}
}

func (r *SQLiteSaveRepository) Load(ctx context.Context, ownerID string) (*pet.SaveData, error) {
	query := `SELECT hunger, happiness, energy, coins FROM pets WHERE owner_id = ?`
	var d pet.SaveData
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&d.Stats.Hunger, &d.Stats.Happiness, &d.Stats.Energy, &d.Coins,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &StorageError{Op: "load", OwnerID: ownerID, Err: err}
	}
	return &d, nil
}

func (r *SQLiteSaveRepository) Save(ctx context.Context, ownerID string, data pet.SaveData) error {
	query := `
		INSERT INTO pets (owner_id, hunger, happiness, energy, coins, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			hunger=excluded.hunger,
			happiness=excluded.happiness,
			energy=excluded.energy,
			coins=excluded.coins,
			updated_at=excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		ownerID, data.Stats.Hunger, data.Stats.Happiness, data.Stats.Energy, data.Coins, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &StorageError{Op: "save", OwnerID: ownerID, Err: err}
	}
	return nil
}

// ---------------------------------------------------------
// SQLiteEventRepository
// ---------------------------------------------------------

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event EventRecord) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return &StorageError{Op: "append event", OwnerID: event.OwnerID, Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	query := `
		INSERT INTO events (id, owner_id, timestamp, event_type, payload)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.OwnerID, event.Timestamp.UTC().Format(time.RFC3339Nano), event.EventType, string(payloadBytes),
	)
	if err != nil {
		return &StorageError{Op: "append event", OwnerID: event.OwnerID, Err: err}
	}
	return nil
}

func (r *SQLiteEventRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]EventRecord, error) {
	// ULIDs sort by time, so the id doubles as a stable ordering key.
	query := `SELECT id, owner_id, timestamp, event_type, payload FROM events WHERE owner_id = ? ORDER BY id DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list events", OwnerID: ownerID, Err: err}
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var e EventRecord
		var timestamp, payloadStr string
		if err := rows.Scan(&e.ID, &e.OwnerID, &timestamp, &e.EventType, &payloadStr); err != nil {
			return nil, &StorageError{Op: "list events", OwnerID: ownerID, Err: err}
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, &StorageError{Op: "list events", OwnerID: ownerID, Err: fmt.Errorf("failed to unmarshal payload: %w", err)}
		}
		records = append(records, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list events", OwnerID: ownerID, Err: err}
	}

	// Newest-first from the query; callers read history oldest first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// ---------------------------------------------------------
// EventPersister
// ---------------------------------------------------------

// EventPersister adapts an EventRepository to the activity log's
// write-through hook.
type EventPersister struct {
	repo    EventRepository
	timeout time.Duration
}

// NewEventPersister wraps repo; each write gets its own timeout.
func NewEventPersister(repo EventRepository, timeout time.Duration) *EventPersister {
	return &EventPersister{repo: repo, timeout: timeout}
}

func (p *EventPersister) Append(event events.PetEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.repo.Append(ctx, EventRecord{
		ID:        event.ID,
		OwnerID:   event.OwnerID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		Payload:   event.Payload,
	})
}
