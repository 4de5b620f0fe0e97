package network

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/GatoVirtual/server/internal/chat"
	"github.com/MRamiBalles/GatoVirtual/server/internal/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Time allowed for an explicit save requested by the peer.
	saveTimeout = 5 * time.Second
)

// Client frame types.
const (
	FrameFeed  = "FEED"
	FramePlay  = "PLAY"
	FrameSleep = "SLEEP"
	FrameSave  = "SAVE"
	FrameChat  = "CHAT"
)

// OwnerAction represents an incoming command from the frontend.
type OwnerAction struct {
	Type string `json:"type"`           // "FEED", "PLAY", "SLEEP", "SAVE", "CHAT"
	Text string `json:"text,omitempty"` // chat message for CHAT
}

// SaveResult is the payload of a SAVE frame.
type SaveResult struct {
	Saved bool   `json:"saved"`
	Error string `json:"error,omitempty"`
}

// Client is one WebSocket connection watching a single owner's pet.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	ownerID string
	source  string
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn, ownerID, source string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.sendBuffer),
		ownerID: ownerID,
		source:  source,
	}
}

// Register adds the client to the hub. It reports false once the hub has
// stopped.
func (c *Client) Register() bool {
	select {
	case c.hub.register <- c:
		return true
	case <-c.hub.done:
		return false
	}
}

// ReadPump pumps messages from the websocket connection to the pet.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket read error for " + c.ownerID + ": " + err.Error())
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var action OwnerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Error("Failed to parse OwnerAction from WebSocket. err: " + err.Error())
			continue
		}

		c.handleOwnerAction(action)
	}
}

func (c *Client) handleOwnerAction(action OwnerAction) {
	if action.Type == FrameChat {
		// Generation can take seconds; keep reading so pongs and a second
		// message (answered as busy) still arrive.
		go c.handleChat(action.Text)
		return
	}

	p, err := c.hub.pets.Pet(context.Background(), c.ownerID)
	if err != nil {
		c.hub.sendTo(c, newMessage(MsgTypeError, map[string]string{"error": "Failed to load pet"}))
		return
	}

	var result engine.ActionResult
	switch action.Type {
	case FrameFeed:
		result = p.Feed()
	case FramePlay:
		result = p.Play()
	case FrameSleep:
		result = p.ToggleSleep()
	case FrameSave:
		c.handleSave()
		return
	default:
		c.hub.logger.Warn("Unknown OwnerAction type: " + action.Type)
		return
	}
	c.hub.BroadcastToOwner(c.ownerID, newMessage(MsgTypeAction, result))
}

func (c *Client) handleSave() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	res := SaveResult{Saved: true}
	if err := c.hub.pets.Save(ctx, c.ownerID); err != nil {
		res = SaveResult{Saved: false, Error: err.Error()}
	}
	c.hub.sendTo(c, newMessage(MsgTypeSave, res))
}

func (c *Client) handleChat(text string) {
	if c.hub.sessions == nil {
		return
	}
	s, err := c.hub.sessions.Session(context.Background(), c.ownerID)
	if err != nil {
		c.hub.sendTo(c, newMessage(MsgTypeError, map[string]string{"error": "Chat unavailable"}))
		return
	}
	// Turns reach every client through the session's turn publisher.
	if res := s.Submit(context.Background(), c.source, text); res == chat.ResultBusy {
		c.hub.sendTo(c, newMessage(MsgTypeError, map[string]string{"error": string(res)}))
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
