package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/rules"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/metrics"
)

// DefaultReclassifyDelay is how long a transient mood (eating, playing) stays
// on screen before the pet is classified again.
const DefaultReclassifyDelay = 2 * time.Second

// PetDeps bundles the collaborators of a Pet. Only Scheduler is required.
type PetDeps struct {
	Scheduler       Scheduler
	ReclassifyDelay time.Duration
	EventLog        *events.EventLog
	Logger          *logger.Logger
	Metrics         *metrics.Collector
}

// Pet is the single owner of one cat's mutable state. Ticks, actions and
// snapshot reads all serialize on its mutex.
type Pet struct {
	mu sync.Mutex

	ownerID  string
	stats    pet.Stats
	coins    int
	sleeping bool
	mood     pet.Mood
	status   pet.Status

	// Pending reclassification. A newer action bumps reclassGen so that a
	// timer which fires anyway finds itself stale.
	reclassGen   uint64
	reclassTimer Timer

	sched           Scheduler
	reclassifyDelay time.Duration
	eventLog        *events.EventLog
	logger          *logger.Logger
	metrics         *metrics.Collector

	observers []func(pet.Snapshot)

	// version counts state changes; notifyMu and delivered keep observers
	// seeing snapshots in version order.
	version   uint64
	notifyMu  sync.Mutex
	delivered uint64
}

// NewPet restores a pet from its save data. The pet always wakes up awake
// with a fresh classification.
func NewPet(ownerID string, data pet.SaveData, deps PetDeps) *Pet {
	if deps.Scheduler == nil {
		panic("engine: NewPet requires a scheduler")
	}
	if deps.ReclassifyDelay <= 0 {
		deps.ReclassifyDelay = DefaultReclassifyDelay
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Get()
	}

	data = data.Normalize()
	p := &Pet{
		ownerID:         ownerID,
		stats:           data.Stats,
		coins:           data.Coins,
		sched:           deps.Scheduler,
		reclassifyDelay: deps.ReclassifyDelay,
		eventLog:        deps.EventLog,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
	}
	p.reclassifyLocked()
	return p
}

// OwnerID returns the identity the pet is saved under.
func (p *Pet) OwnerID() string {
	return p.ownerID
}

// Observe registers fn to receive a snapshot after every state change.
// Observers run outside the pet lock.
func (p *Pet) Observe(fn func(pet.Snapshot)) {
	p.mu.Lock()
	p.observers = append(p.observers, fn)
	p.mu.Unlock()
}

// Tick applies one decay step. A transient mood survives the tick; it is
// replaced only by its own scheduled reclassification.
func (p *Pet) Tick() {
	p.mu.Lock()
	p.stats = rules.Tick(p.stats, p.sleeping)
	if !p.mood.IsTransient() {
		p.reclassifyLocked()
	}
	snap := p.changedLocked()
	p.mu.Unlock()

	p.metrics.RecordTick()
	p.notify(snap)
}

// Snapshot returns a copy of the current state.
func (p *Pet) Snapshot() pet.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Stats returns the current stats.
func (p *Pet) Stats() pet.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// SaveData returns the persisted subset of the state.
func (p *Pet) SaveData() pet.SaveData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pet.SaveData{Stats: p.stats, Coins: p.coins}
}

func (p *Pet) snapshotLocked() pet.Snapshot {
	return pet.Snapshot{
		OwnerID:  p.ownerID,
		Stats:    p.stats,
		Coins:    p.coins,
		Sleeping: p.sleeping,
		Mood:     p.mood,
		Status:   p.status,
		Message:  p.status.Message(),
		Version:  p.version,
	}
}

// changedLocked marks a state change and returns the new snapshot.
func (p *Pet) changedLocked() pet.Snapshot {
	p.version++
	return p.snapshotLocked()
}

func (p *Pet) reclassifyLocked() {
	p.mood, p.status = rules.Classify(p.stats, p.sleeping)
}

// scheduleReclassifyLocked replaces any pending reclassification with a new
// one due after the configured delay.
func (p *Pet) scheduleReclassifyLocked() {
	p.cancelReclassifyLocked()
	gen := p.reclassGen
	p.reclassTimer = p.sched.After(p.reclassifyDelay, func() {
		p.reclassifyIfCurrent(gen)
	})
}

func (p *Pet) cancelReclassifyLocked() {
	p.reclassGen++
	if p.reclassTimer != nil {
		p.reclassTimer.Stop()
		p.reclassTimer = nil
	}
}

func (p *Pet) reclassifyIfCurrent(gen uint64) {
	p.mu.Lock()
	if gen != p.reclassGen {
		p.mu.Unlock()
		return
	}
	p.reclassTimer = nil
	p.reclassifyLocked()
	snap := p.changedLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// notify delivers snap to the observers. A snapshot older than one already
// delivered is dropped.
func (p *Pet) notify(snap pet.Snapshot) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if snap.Version <= p.delivered {
		return
	}
	p.delivered = snap.Version

	p.mu.Lock()
	observers := make([]func(pet.Snapshot), len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func (p *Pet) record(eventType events.EventType, payload map[string]any) {
	if p.eventLog == nil {
		return
	}
	p.eventLog.Append(events.NewEvent(eventType, p.ownerID, payload))
}

func (p *Pet) String() string {
	snap := p.Snapshot()
	return fmt.Sprintf("%s [hunger=%.1f happiness=%.1f energy=%.1f coins=%d mood=%s]",
		snap.OwnerID, snap.Stats.Hunger, snap.Stats.Happiness, snap.Stats.Energy, snap.Coins, snap.Mood)
}
