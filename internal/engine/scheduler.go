package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
)

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer, false if it already fired or was stopped.
	Stop() bool
}

// Scheduler drives periodic and delayed work. The engine never touches
// wall-clock timers directly so tests can advance time by hand.
type Scheduler interface {
	Every(interval time.Duration, fn func())
	After(delay time.Duration, fn func()) Timer
}

// WallScheduler runs callbacks on real time until its context is cancelled.
type WallScheduler struct {
	ctx    context.Context
	logger *logger.Logger
}

// NewWallScheduler creates a scheduler bound to ctx.
func NewWallScheduler(ctx context.Context, log *logger.Logger) *WallScheduler {
	return &WallScheduler{ctx: ctx, logger: log}
}

// Every starts one ticker goroutine per registration.
func (s *WallScheduler) Every(interval time.Duration, fn func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Info("Scheduler loop stopped by context (" + interval.String() + ")")
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// After fires fn once after delay unless stopped or the context ends first.
func (s *WallScheduler) After(delay time.Duration, fn func()) Timer {
	return time.AfterFunc(delay, func() {
		if s.ctx.Err() != nil {
			return
		}
		fn()
	})
}

// ManualScheduler fires callbacks synchronously from Advance. It is meant for
// tests and for the one-shot CLI, where nothing should run in the background.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	entries []*manualEntry
}

type manualEntry struct {
	seq      int
	due      time.Time
	interval time.Duration // zero for one-shot
	fn       func()
	stopped  bool
	owner    *ManualScheduler
}

func (e *manualEntry) Stop() bool {
	e.owner.mu.Lock()
	defer e.owner.mu.Unlock()
	if e.stopped {
		return false
	}
	e.stopped = true
	return true
}

// NewManualScheduler creates a scheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now returns the scheduler's current time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) Every(interval time.Duration, fn func()) {
	s.add(interval, interval, fn)
}

func (s *ManualScheduler) After(delay time.Duration, fn func()) Timer {
	return s.add(delay, 0, fn)
}

func (s *ManualScheduler) add(delay, interval time.Duration, fn func()) *manualEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e := &manualEntry{
		seq:      s.seq,
		due:      s.now.Add(delay),
		interval: interval,
		fn:       fn,
		owner:    s,
	}
	s.entries = append(s.entries, e)
	return e
}

// Advance moves the clock forward by d, firing every callback that comes due
// in time order. Callbacks run without the scheduler lock held and may
// register or stop other entries.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		e := s.nextDue(target)
		if e == nil {
			break
		}
		e.fn()
	}

	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

// nextDue pops the earliest live entry due at or before target and moves the
// clock to its due time. Periodic entries are rescheduled.
func (s *ManualScheduler) nextDue(target time.Time) *manualEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.entries[:0]
	for _, e := range s.entries {
		if !e.stopped {
			live = append(live, e)
		}
	}
	s.entries = live

	sort.SliceStable(s.entries, func(i, j int) bool {
		if s.entries[i].due.Equal(s.entries[j].due) {
			return s.entries[i].seq < s.entries[j].seq
		}
		return s.entries[i].due.Before(s.entries[j].due)
	})

	if len(s.entries) == 0 || s.entries[0].due.After(target) {
		return nil
	}

	e := s.entries[0]
	s.now = e.due
	if e.interval > 0 {
		e.due = e.due.Add(e.interval)
	} else {
		e.stopped = true
	}
	return e
}
