package network

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/chat"
	"github.com/MRamiBalles/GatoVirtual/server/internal/engine"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
)

// PetAPI serves the pet over plain HTTP for clients without a socket.
type PetAPI struct {
	pets     PetService
	sessions SessionSource
	hub      *Hub
	logger   *logger.Logger
}

// NewPetAPI creates the REST handler. sessions and hub may be nil; without a
// hub, results are only returned to the caller.
func NewPetAPI(pets PetService, sessions SessionSource, hub *Hub, log *logger.Logger) *PetAPI {
	if log == nil {
		log = logger.Discard()
	}
	return &PetAPI{
		pets:     pets,
		sessions: sessions,
		hub:      hub,
		logger:   log,
	}
}

// ChatSubmitRequest is the body of POST /api/pets/{owner}/chat.
type ChatSubmitRequest struct {
	Text string `json:"text"`
}

// ChatSubmitResponse reports the outcome and the conversation so far.
type ChatSubmitResponse struct {
	Result chat.Result `json:"result"`
	Busy   bool        `json:"busy"`
	Turns  []chat.Turn `json:"turns"`
}

// HandleSnapshot returns the current pet state.
// GET /api/pets/{owner}
func (a *PetAPI) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	p, ok := a.loadPet(w, r)
	if !ok {
		return
	}
	jsonSuccess(w, p.Snapshot())
}

// HandleAction applies feed, play or sleep.
// POST /api/pets/{owner}/actions/{action}
func (a *PetAPI) HandleAction(w http.ResponseWriter, r *http.Request) {
	action := engine.Action(r.PathValue("action"))
	if action != engine.ActionFeed && action != engine.ActionPlay && action != engine.ActionSleep {
		jsonError(w, "Unknown action "+string(action), http.StatusNotFound)
		return
	}
	p, ok := a.loadPet(w, r)
	if !ok {
		return
	}

	var result engine.ActionResult
	switch action {
	case engine.ActionFeed:
		result = p.Feed()
	case engine.ActionPlay:
		result = p.Play()
	case engine.ActionSleep:
		result = p.ToggleSleep()
	}

	if a.hub != nil {
		a.hub.BroadcastToOwner(p.OwnerID(), newMessage(MsgTypeAction, result))
	}
	jsonSuccess(w, result)
}

// HandleSave writes the pet to the store now.
// POST /api/pets/{owner}/save
func (a *PetAPI) HandleSave(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("owner")
	if _, ok := a.loadPet(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), saveTimeout)
	defer cancel()
	if err := a.pets.Save(ctx, ownerID); err != nil {
		a.logger.Warn("Explicit save failed for " + ownerID + ": " + err.Error())
		jsonError(w, "Save failed, try again", http.StatusServiceUnavailable)
		return
	}
	jsonSuccess(w, map[string]interface{}{
		"saved":    true,
		"owner_id": ownerID,
		"saved_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleChatTurns returns the conversation of the owner.
// GET /api/pets/{owner}/chat
func (a *PetAPI) HandleChatTurns(w http.ResponseWriter, r *http.Request) {
	s, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	jsonSuccess(w, ChatSubmitResponse{Busy: s.Busy(), Turns: s.Turns()})
}

// HandleChatSubmit sends one message to the owner's session.
// POST /api/pets/{owner}/chat
func (a *PetAPI) HandleChatSubmit(w http.ResponseWriter, r *http.Request) {
	var req ChatSubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s, ok := a.loadSession(w, r)
	if !ok {
		return
	}

	result := s.Submit(r.Context(), SourceIdentity(r), req.Text)
	jsonSuccess(w, ChatSubmitResponse{Result: result, Busy: s.Busy(), Turns: s.Turns()})
}

// RegisterRoutes sets up the pet API routes.
func (a *PetAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pets/{owner}", a.HandleSnapshot)
	mux.HandleFunc("POST /api/pets/{owner}/actions/{action}", a.HandleAction)
	mux.HandleFunc("POST /api/pets/{owner}/save", a.HandleSave)
	if a.sessions != nil {
		mux.HandleFunc("GET /api/pets/{owner}/chat", a.HandleChatTurns)
		mux.HandleFunc("POST /api/pets/{owner}/chat", a.HandleChatSubmit)
	}
}

func (a *PetAPI) loadPet(w http.ResponseWriter, r *http.Request) (*engine.Pet, bool) {
	ownerID := r.PathValue("owner")
	p, err := a.pets.Pet(r.Context(), ownerID)
	if err != nil {
		a.logger.Error("Failed to load pet " + ownerID + ": " + err.Error())
		jsonError(w, "Failed to load pet", http.StatusInternalServerError)
		return nil, false
	}
	return p, true
}

func (a *PetAPI) loadSession(w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	ownerID := r.PathValue("owner")
	s, err := a.sessions.Session(r.Context(), ownerID)
	if err != nil {
		a.logger.Error("Failed to open chat for " + ownerID + ": " + err.Error())
		jsonError(w, "Chat unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return s, true
}
