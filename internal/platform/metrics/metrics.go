// Package metrics provides observability for the pet server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers runtime counters.
type Collector struct {
	// Simulation
	TickCount       int64
	ActionsApplied  int64
	ActionsRejected int64

	// Persistence
	SavesWritten int64
	SaveErrors   int64
	SaveLatMax   int64 // nanoseconds

	// Chat
	ChatReplies      int64
	ChatFallbacks    int64
	ChatTooHungry    int64
	ChatBusy         int64
	SpacingRejects   int64
	WindowRejects    int64
	BoundaryRequests int64

	// Generator
	LLMRequests   int64
	LLMErrors     int64
	LLMLatencySum int64

	// WebSocket
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64

	StartTime time.Time
	mu        sync.RWMutex
	lastTick  time.Time
}

var collector = New()

// New returns an empty collector. Tests use their own instead of the global.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the process-wide collector.
func Get() *Collector {
	return collector
}

// RecordTick records one decay tick.
func (c *Collector) RecordTick() {
	atomic.AddInt64(&c.TickCount, 1)
	c.mu.Lock()
	c.lastTick = time.Now()
	c.mu.Unlock()
}

// RecordAction records an action attempt.
func (c *Collector) RecordAction(applied bool) {
	if applied {
		atomic.AddInt64(&c.ActionsApplied, 1)
	} else {
		atomic.AddInt64(&c.ActionsRejected, 1)
	}
}

// RecordSave records a save attempt and its latency.
func (c *Collector) RecordSave(latency time.Duration, err error) {
	if err != nil {
		atomic.AddInt64(&c.SaveErrors, 1)
		return
	}
	atomic.AddInt64(&c.SavesWritten, 1)
	if int64(latency) > atomic.LoadInt64(&c.SaveLatMax) {
		atomic.StoreInt64(&c.SaveLatMax, int64(latency))
	}
}

// ChatOutcome names the terminal state of one chat submission.
type ChatOutcome string

const (
	ChatReplied     ChatOutcome = "replied"
	ChatFallback    ChatOutcome = "fallback"
	ChatTooHungry   ChatOutcome = "too_hungry"
	ChatBusy        ChatOutcome = "busy"
	ChatSpacing     ChatOutcome = "spacing"
	ChatWindow      ChatOutcome = "window"
	ChatBoundaryHit ChatOutcome = "boundary"
)

// RecordChat records a chat outcome.
func (c *Collector) RecordChat(outcome ChatOutcome) {
	switch outcome {
	case ChatReplied:
		atomic.AddInt64(&c.ChatReplies, 1)
	case ChatFallback:
		atomic.AddInt64(&c.ChatFallbacks, 1)
	case ChatTooHungry:
		atomic.AddInt64(&c.ChatTooHungry, 1)
	case ChatBusy:
		atomic.AddInt64(&c.ChatBusy, 1)
	case ChatSpacing:
		atomic.AddInt64(&c.SpacingRejects, 1)
	case ChatWindow:
		atomic.AddInt64(&c.WindowRejects, 1)
	case ChatBoundaryHit:
		atomic.AddInt64(&c.BoundaryRequests, 1)
	}
}

// RecordLLMCall records a generator call.
func (c *Collector) RecordLLMCall(latency time.Duration, err error) {
	atomic.AddInt64(&c.LLMRequests, 1)
	atomic.AddInt64(&c.LLMLatencySum, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.LLMErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	lastTick := c.lastTick
	c.mu.RUnlock()

	llmRequests := atomic.LoadInt64(&c.LLMRequests)
	var llmAvg float64
	if llmRequests > 0 {
		llmAvg = float64(atomic.LoadInt64(&c.LLMLatencySum)) / float64(llmRequests) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"simulation": map[string]interface{}{
			"ticks":            atomic.LoadInt64(&c.TickCount),
			"last_tick":        lastTick.Format(time.RFC3339),
			"actions_applied":  atomic.LoadInt64(&c.ActionsApplied),
			"actions_rejected": atomic.LoadInt64(&c.ActionsRejected),
		},

		"persistence": map[string]interface{}{
			"saves":           atomic.LoadInt64(&c.SavesWritten),
			"errors":          atomic.LoadInt64(&c.SaveErrors),
			"max_save_lat_ms": float64(atomic.LoadInt64(&c.SaveLatMax)) / 1e6,
		},

		"chat": map[string]interface{}{
			"replies":           atomic.LoadInt64(&c.ChatReplies),
			"fallbacks":         atomic.LoadInt64(&c.ChatFallbacks),
			"too_hungry":        atomic.LoadInt64(&c.ChatTooHungry),
			"busy":              atomic.LoadInt64(&c.ChatBusy),
			"spacing_rejects":   atomic.LoadInt64(&c.SpacingRejects),
			"window_rejects":    atomic.LoadInt64(&c.WindowRejects),
			"boundary_requests": atomic.LoadInt64(&c.BoundaryRequests),
		},

		"llm": map[string]interface{}{
			"requests":       llmRequests,
			"errors":         atomic.LoadInt64(&c.LLMErrors),
			"avg_latency_ms": llmAvg,
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter(w, "gato_ticks_total", "Total decay ticks", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP gato_actions_total Pet actions by outcome\n")
		fmt.Fprintf(w, "# TYPE gato_actions_total counter\n")
		fmt.Fprintf(w, "gato_actions_total{outcome=\"applied\"} %d\n", atomic.LoadInt64(&c.ActionsApplied))
		fmt.Fprintf(w, "gato_actions_total{outcome=\"rejected\"} %d\n\n", atomic.LoadInt64(&c.ActionsRejected))

		counter(w, "gato_saves_total", "Successful saves", atomic.LoadInt64(&c.SavesWritten))
		counter(w, "gato_save_errors_total", "Failed saves", atomic.LoadInt64(&c.SaveErrors))

		fmt.Fprintf(w, "# HELP gato_chat_total Chat submissions by outcome\n")
		fmt.Fprintf(w, "# TYPE gato_chat_total counter\n")
		fmt.Fprintf(w, "gato_chat_total{outcome=\"replied\"} %d\n", atomic.LoadInt64(&c.ChatReplies))
		fmt.Fprintf(w, "gato_chat_total{outcome=\"fallback\"} %d\n", atomic.LoadInt64(&c.ChatFallbacks))
		fmt.Fprintf(w, "gato_chat_total{outcome=\"too_hungry\"} %d\n", atomic.LoadInt64(&c.ChatTooHungry))
		fmt.Fprintf(w, "gato_chat_total{outcome=\"busy\"} %d\n", atomic.LoadInt64(&c.ChatBusy))
		fmt.Fprintf(w, "gato_chat_total{outcome=\"spacing\"} %d\n", atomic.LoadInt64(&c.SpacingRejects))
		fmt.Fprintf(w, "gato_chat_total{outcome=\"window\"} %d\n\n", atomic.LoadInt64(&c.WindowRejects))

		counter(w, "gato_llm_requests_total", "Generator requests", atomic.LoadInt64(&c.LLMRequests))
		counter(w, "gato_llm_errors_total", "Generator failures", atomic.LoadInt64(&c.LLMErrors))

		fmt.Fprintf(w, "# HELP gato_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE gato_ws_connections gauge\n")
		fmt.Fprintf(w, "gato_ws_connections %d\n", atomic.LoadInt64(&c.WSConnectionsActive))
	}
}

func counter(w http.ResponseWriter, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n\n", name, v)
}
