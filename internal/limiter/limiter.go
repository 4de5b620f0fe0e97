// Package limiter gates chat traffic: a per-source spacing guard and a
// per-session rolling message window. Both are process-local and rebuilt
// empty on restart.
package limiter

import (
	"sync"
	"time"
)

// Reason identifies which guard refused a request.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonSlowDown       Reason = "slow-down"
	ReasonWaitBeforeMore Reason = "wait-before-more"
)

// Message returns the user-facing refusal text.
func (r Reason) Message() string {
	switch r {
	case ReasonSlowDown:
		return "Easy! You're talking too fast 🐱"
	case ReasonWaitBeforeMore:
		return "Wait a little before sending more messages."
	default:
		return ""
	}
}

// Decision is the outcome of a guard check. A refusal is a value, not an error.
type Decision struct {
	Allowed bool
	Reason  Reason
}

var allow = Decision{Allowed: true}

// SpacingGuard enforces a minimum delay between two requests of the same
// source identity (e.g. a network origin).
type SpacingGuard struct {
	mu        sync.Mutex
	interval  time.Duration
	retention time.Duration
	last      map[string]time.Time
}

// NewSpacingGuard creates a guard rejecting requests closer than interval
// and forgetting sources idle for longer than retention.
func NewSpacingGuard(interval, retention time.Duration) *SpacingGuard {
	return &SpacingGuard{
		interval:  interval,
		retention: retention,
		last:      make(map[string]time.Time),
	}
}

// Check sweeps stale records, then evaluates the request of source at now.
// An accepted request becomes the source's new reference time.
func (g *SpacingGuard) Check(source string, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.allowLocked(source, now)
	if d.Allowed {
		g.last[source] = now
	}
	return d
}

// Allow is Check without recording the request. Callers that still have
// other gates to pass call Record, or Check, once all of them agree.
func (g *SpacingGuard) Allow(source string, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allowLocked(source, now)
}

// Record makes now the reference time of source.
func (g *SpacingGuard) Record(source string, now time.Time) {
	g.mu.Lock()
	g.last[source] = now
	g.mu.Unlock()
}

func (g *SpacingGuard) allowLocked(source string, now time.Time) Decision {
	g.sweepLocked(now)
	if last, ok := g.last[source]; ok && now.Sub(last) < g.interval {
		return Decision{Reason: ReasonSlowDown}
	}
	return allow
}

// Sweep deletes every record older than the retention threshold.
func (g *SpacingGuard) Sweep(now time.Time) {
	g.mu.Lock()
	g.sweepLocked(now)
	g.mu.Unlock()
}

func (g *SpacingGuard) sweepLocked(now time.Time) {
	for source, last := range g.last {
		if now.Sub(last) > g.retention {
			delete(g.last, source)
		}
	}
}

// Len returns the number of live records.
func (g *SpacingGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}

// MessageWindow enforces a quota of messages per trailing window for one
// chat session. Old entries are pruned lazily on each check.
type MessageWindow struct {
	mu     sync.Mutex
	window time.Duration
	quota  int
	sent   []time.Time
}

// NewMessageWindow creates a window allowing quota messages per window.
func NewMessageWindow(window time.Duration, quota int) *MessageWindow {
	return &MessageWindow{window: window, quota: quota}
}

// Check prunes entries outside the window, then admits now when the quota
// still has room.
func (w *MessageWindow) Check(now time.Time) Decision {
	w.mu.Lock()
	defer w.mu.Unlock()

	d := w.allowLocked(now)
	if d.Allowed {
		w.sent = append(w.sent, now)
	}
	return d
}

// Allow prunes and evaluates now without counting it.
func (w *MessageWindow) Allow(now time.Time) Decision {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allowLocked(now)
}

// Record counts a message sent at now.
func (w *MessageWindow) Record(now time.Time) {
	w.mu.Lock()
	w.sent = append(w.sent, now)
	w.mu.Unlock()
}

func (w *MessageWindow) allowLocked(now time.Time) Decision {
	w.pruneLocked(now)
	if len(w.sent) >= w.quota {
		return Decision{Reason: ReasonWaitBeforeMore}
	}
	return allow
}

func (w *MessageWindow) pruneLocked(now time.Time) {
	keep := w.sent[:0]
	for _, t := range w.sent {
		if now.Sub(t) < w.window {
			keep = append(keep, t)
		}
	}
	w.sent = keep
}

// Len returns the number of timestamps currently retained.
func (w *MessageWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}
