package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/GatoVirtual/server/internal/chat"
	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/engine"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/metrics"
)

// Server frame types.
const (
	MsgTypeSnapshot = "SNAPSHOT"
	MsgTypeTurn     = "TURN"
	MsgTypeAction   = "ACTION"
	MsgTypeSave     = "SAVE"
	MsgTypeError    = "ERROR"
)

// Message is a frame pushed to clients.
type Message struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// PetService resolves and saves pets. *engine.Engine satisfies it.
type PetService interface {
	Pet(ctx context.Context, ownerID string) (*engine.Pet, error)
	Save(ctx context.Context, ownerID string) error
}

// SessionSource resolves the chat session of an owner. *chat.Registry
// satisfies it.
type SessionSource interface {
	Session(ctx context.Context, ownerID string) (*chat.Session, error)
}

type ownerFrame struct {
	ownerID string
	data    []byte
}

type clientFrame struct {
	client *Client
	data   []byte
}

// Hub maintains the active clients grouped by owner and fans frames out to
// every connection watching the same pet.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan ownerFrame
	direct     chan clientFrame
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	pets       PetService
	sessions   SessionSource
	sendBuffer int
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	metrics    *metrics.Collector
}

// NewHub initializes a new WebSocket Hub. sendBuffer sizes each client's
// outgoing queue; a client that falls that far behind is dropped.
func NewHub(pets PetService, sessions SessionSource, log *logger.Logger, sendBuffer int) *Hub {
	if sendBuffer < 1 {
		sendBuffer = 64
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan ownerFrame, 256),
		direct:     make(chan clientFrame, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		pets:       pets,
		sessions:   sessions,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  log,
		metrics: metrics.Get(),
	}
}

// WithMetrics replaces the collector used by the hub and its clients.
func (h *Hub) WithMetrics(c *metrics.Collector) *Hub {
	h.metrics = c
	return h
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.ownerID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[client.ownerID] = set
			}
			set[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("WebSocket client connected for " + client.ownerID)
		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
		case frame := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[frame.ownerID] {
				select {
				case client.send <- frame.data:
					h.metrics.RecordWSMessage(false)
				default:
					h.logger.Warn("Dropping slow WebSocket client for " + client.ownerID)
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		case frame := <-h.direct:
			h.mu.Lock()
			if h.clients[frame.client.ownerID][frame.client] {
				select {
				case frame.client.send <- frame.data:
					h.metrics.RecordWSMessage(false)
				default:
					h.removeLocked(frame.client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	set, ok := h.clients[client.ownerID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.ownerID)
	}
	close(client.send)
	h.metrics.RecordWSConnection(-1)
	h.logger.Info("WebSocket client disconnected for " + client.ownerID)
}

// ConnectedClients returns the number of open connections watching ownerID.
func (h *Hub) ConnectedClients(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[ownerID])
}

// BroadcastToOwner serializes msg and queues it for every client of ownerID.
// It returns without sending once the hub has stopped.
func (h *Hub) BroadcastToOwner(ownerID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to serialize frame for WebSocket broadcast: " + err.Error())
		return
	}
	select {
	case h.broadcast <- ownerFrame{ownerID: ownerID, data: data}:
	case <-h.done:
	}
}

// sendTo queues msg for a single client.
func (h *Hub) sendTo(client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to serialize frame for WebSocket client: " + err.Error())
		return
	}
	select {
	case h.direct <- clientFrame{client: client, data: data}:
	case <-h.done:
	}
}

// BroadcastSnapshot pushes a pet snapshot. Register it with Engine.Observe.
func (h *Hub) BroadcastSnapshot(snap pet.Snapshot) {
	h.BroadcastToOwner(snap.OwnerID, newMessage(MsgTypeSnapshot, snap))
}

// TurnPublisher returns a Session.OnTurn callback pushing turns of ownerID.
func (h *Hub) TurnPublisher(ownerID string) func(chat.Turn) {
	return func(t chat.Turn) {
		h.BroadcastToOwner(ownerID, newMessage(MsgTypeTurn, t))
	}
}

// ServeWS upgrades GET /ws?owner=<id>, sends the current snapshot and
// starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		jsonError(w, "Missing owner", http.StatusBadRequest)
		return
	}
	p, err := h.pets.Pet(r.Context(), ownerID)
	if err != nil {
		jsonError(w, "Failed to load pet", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection: " + err.Error())
		return
	}

	client := NewClient(h, conn, ownerID, SourceIdentity(r))
	if data, err := json.Marshal(newMessage(MsgTypeSnapshot, p.Snapshot())); err == nil {
		client.send <- data
	}
	if !client.Register() {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func newMessage(msgType string, payload interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
}
