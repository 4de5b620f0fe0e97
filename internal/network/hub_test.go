package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/GatoVirtual/server/internal/chat"
	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/engine"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/metrics"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type hubFixture struct {
	hub     *Hub
	engine  *engine.Engine
	metrics *metrics.Collector
	url     string
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	el := events.NewEventLog(nil, nil)
	eng := engine.NewEngine(engine.NewManualScheduler(time.Unix(0, 0)), nil, el, logger.Discard(), engine.DefaultOptions()).
		WithMetrics(metrics.New())
	gen := &fakeProvider{reply: "meow"}

	var hub *Hub
	sessions := chat.NewRegistry(func(ctx context.Context, ownerID string) (*chat.Session, error) {
		p, err := eng.Pet(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		s := chat.NewSession(ownerID, p, gen, chat.Options{Metrics: metrics.New()})
		s.OnTurn(hub.TurnPublisher(ownerID))
		return s, nil
	})

	c := metrics.New()
	hub = NewHub(eng, sessions, logger.Discard(), 16).WithMetrics(c)
	eng.Observe(hub.BroadcastSnapshot)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &hubFixture{
		hub:     hub,
		engine:  eng,
		metrics: c,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (f *hubFixture) dial(t *testing.T, owner string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url+"?owner="+owner, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first frame of type want, failing after a deadline.
func readUntil(t *testing.T, conn *websocket.Conn, want string) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if f.Type == want {
			return f
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeWSSendsInitialSnapshot(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "owner-1")

	fr := readUntil(t, conn, MsgTypeSnapshot)
	var snap pet.Snapshot
	if err := json.Unmarshal(fr.Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.OwnerID != "owner-1" || snap.Coins != pet.DefaultCoins {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	waitFor(t, func() bool { return f.hub.ConnectedClients("owner-1") == 1 })
	conn.Close()
	waitFor(t, func() bool { return f.hub.ConnectedClients("owner-1") == 0 })
}

func TestServeWSRequiresOwner(t *testing.T) {
	f := newHubFixture(t)
	_, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err == nil {
		t.Fatal("expected dial without owner to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", resp)
	}
}

func TestFeedFrameBroadcastsToOwnerClients(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "owner-1")
	b := f.dial(t, "owner-1")
	readUntil(t, a, MsgTypeSnapshot)
	readUntil(t, b, MsgTypeSnapshot)
	waitFor(t, func() bool { return f.hub.ConnectedClients("owner-1") == 2 })

	if err := a.WriteJSON(OwnerAction{Type: FrameFeed}); err != nil {
		t.Fatalf("write: %v", err)
	}

	fr := readUntil(t, b, MsgTypeAction)
	var result engine.ActionResult
	if err := json.Unmarshal(fr.Payload, &result); err != nil {
		t.Fatalf("decode action: %v", err)
	}
	if result.Action != engine.ActionFeed || !result.Applied {
		t.Errorf("expected applied feed on the other client, got %+v", result)
	}

	fr = readUntil(t, a, MsgTypeSnapshot)
	var snap pet.Snapshot
	json.Unmarshal(fr.Payload, &snap)
	if snap.Mood != pet.MoodEating {
		t.Errorf("expected eating snapshot after feed, got %+v", snap)
	}
}

func TestSaveAndChatFrames(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "owner-1")
	readUntil(t, conn, MsgTypeSnapshot)
	waitFor(t, func() bool { return f.hub.ConnectedClients("owner-1") == 1 })

	conn.WriteJSON(OwnerAction{Type: FrameSave})
	fr := readUntil(t, conn, MsgTypeSave)
	var res SaveResult
	json.Unmarshal(fr.Payload, &res)
	if !res.Saved {
		t.Errorf("expected save to succeed, got %+v", res)
	}

	conn.WriteJSON(OwnerAction{Type: FrameChat, Text: "hi cat"})
	var turn chat.Turn
	json.Unmarshal(readUntil(t, conn, MsgTypeTurn).Payload, &turn)
	if turn.Speaker != chat.SpeakerUser || turn.Text != "hi cat" {
		t.Errorf("expected user turn first, got %+v", turn)
	}
	json.Unmarshal(readUntil(t, conn, MsgTypeTurn).Payload, &turn)
	if turn.Speaker != chat.SpeakerPet || turn.Text != "meow" {
		t.Errorf("expected pet reply, got %+v", turn)
	}

	if n := atomic.LoadInt64(&f.metrics.WSMessagesIn); n != 2 {
		t.Errorf("expected 2 incoming frames counted, got %d", n)
	}
}

func TestOtherOwnersAreIsolated(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "owner-1")
	b := f.dial(t, "owner-2")
	readUntil(t, a, MsgTypeSnapshot)
	readUntil(t, b, MsgTypeSnapshot)
	waitFor(t, func() bool {
		return f.hub.ConnectedClients("owner-1") == 1 && f.hub.ConnectedClients("owner-2") == 1
	})

	a.WriteJSON(OwnerAction{Type: FrameSleep})
	readUntil(t, a, MsgTypeAction)

	b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var fr frame
	if err := b.ReadJSON(&fr); err == nil {
		t.Errorf("expected no frame for owner-2, got %s", fr.Type)
	}
}

func TestBroadcastAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, nil, nil, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	returned := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.BroadcastToOwner("owner-1", newMessage(MsgTypeSnapshot, nil))
		}
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked after the hub stopped")
	}
}
