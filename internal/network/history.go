package network

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/storage"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryHandler serves an owner's activity log.
type HistoryHandler struct {
	repo     storage.EventRepository
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewHistoryHandler reads from repo when set, else from the in-memory log.
func NewHistoryHandler(repo storage.EventRepository, el *events.EventLog, log *logger.Logger) *HistoryHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &HistoryHandler{
		repo:     repo,
		eventLog: el,
		logger:   log,
	}
}

// HistoryEvent is an event rendered for display.
type HistoryEvent struct {
	ID        string                 `json:"id"`
	Timestamp string                 `json:"timestamp"`
	Type      string                 `json:"type"`
	Summary   string                 `json:"summary"`
	Impact    string                 `json:"impact"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HistoryResponse is the API response for an owner's history.
type HistoryResponse struct {
	OwnerID     string         `json:"owner_id"`
	TotalEvents int            `json:"total_events"`
	FilteredBy  string         `json:"filtered_by,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	Events      []HistoryEvent `json:"events"`
}

// HandleHistory returns the newest events of an owner, oldest first.
// GET /api/pets/{owner}/events?type=ACTION_APPLIED&limit=N
func (hh *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("owner")

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	eventType := r.URL.Query().Get("type")

	records, err := hh.load(r, ownerID, limit, eventType)
	if err != nil {
		hh.logger.Error("Failed to load history for " + ownerID + ": " + err.Error())
		jsonError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	out := make([]HistoryEvent, 0, len(records))
	for _, rec := range records {
		out = append(out, convertToHistoryEvent(rec))
	}

	filterDesc := ""
	if eventType != "" {
		filterDesc = "type " + eventType
	}
	jsonSuccess(w, HistoryResponse{
		OwnerID:     ownerID,
		TotalEvents: len(out),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Events:      out,
	})
}

// load fetches up to limit matching records. A type filter over the store
// reads the full history first so the limit applies after filtering.
func (hh *HistoryHandler) load(r *http.Request, ownerID string, limit int, eventType string) ([]storage.EventRecord, error) {
	var all []storage.EventRecord
	if hh.repo != nil {
		fetch := limit
		if eventType != "" {
			fetch = 0
		}
		records, err := hh.repo.ListByOwner(r.Context(), ownerID, fetch)
		if err != nil {
			return nil, err
		}
		all = records
	} else if hh.eventLog != nil {
		for _, e := range hh.eventLog.GetByOwner(ownerID) {
			all = append(all, storage.EventRecord{
				ID:        e.ID,
				OwnerID:   e.OwnerID,
				Timestamp: e.Timestamp,
				EventType: string(e.Type),
				Payload:   e.Payload,
			})
		}
	}

	if eventType != "" {
		filtered := all[:0:0]
		for _, rec := range all {
			if rec.EventType == eventType {
				filtered = append(filtered, rec)
			}
		}
		all = filtered
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// RegisterRoutes sets up the history route.
func (hh *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pets/{owner}/events", hh.HandleHistory)
}

func convertToHistoryEvent(rec storage.EventRecord) HistoryEvent {
	return HistoryEvent{
		ID:        rec.ID,
		Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
		Type:      rec.EventType,
		Summary:   summarizeEvent(rec),
		Impact:    determineImpact(rec),
		Details:   rec.Payload,
	}
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(rec storage.EventRecord) string {
	switch events.EventType(rec.EventType) {
	case events.EventTypeActionApplied:
		return fmt.Sprintf("The cat got to %v.", rec.Payload["action"])
	case events.EventTypeActionRejected:
		return fmt.Sprintf("Tried to %v, but: %v.", rec.Payload["action"], rec.Payload["reason"])
	case events.EventTypeSleepToggled:
		if asleep, _ := rec.Payload["sleeping"].(bool); asleep {
			return "The cat went to sleep."
		}
		return "The cat woke up."
	case events.EventTypeChatTurn:
		return fmt.Sprintf("%v: %v", rec.Payload["speaker"], rec.Payload["text"])
	case events.EventTypeChatRefused:
		return fmt.Sprintf("Chat refused (%v).", rec.Payload["reason"])
	case events.EventTypeSave:
		return "Game saved."
	case events.EventTypeSaveFailed:
		return "Save failed."
	default:
		return "Something happened..."
	}
}

// determineImpact classifies the event impact.
func determineImpact(rec storage.EventRecord) string {
	switch events.EventType(rec.EventType) {
	case events.EventTypeActionApplied, events.EventTypeSave:
		return "POSITIVE"
	case events.EventTypeActionRejected, events.EventTypeChatRefused, events.EventTypeSaveFailed:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}
