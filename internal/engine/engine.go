package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/storage"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/metrics"
)

// Options holds the simulation timings.
type Options struct {
	TickInterval    time.Duration
	SaveInterval    time.Duration
	ReclassifyDelay time.Duration
	SaveTimeout     time.Duration
}

// DefaultOptions decays every 2s and autosaves every 30s.
func DefaultOptions() Options {
	return Options{
		TickInterval:    2 * time.Second,
		SaveInterval:    30 * time.Second,
		ReclassifyDelay: DefaultReclassifyDelay,
		SaveTimeout:     5 * time.Second,
	}
}

// Engine is the central orchestrator: it owns every loaded pet, drives the
// decay tick and the autosave timer, and talks to the save store.
type Engine struct {
	mu   sync.Mutex
	pets map[string]*Pet

	sched    Scheduler
	saves    storage.SaveRepository
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	opts     Options

	observers []func(pet.Snapshot)
	started   bool
}

// NewEngine wires the engine to its scheduler and save store.
func NewEngine(sched Scheduler, saves storage.SaveRepository, eventLog *events.EventLog, log *logger.Logger, opts Options) *Engine {
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DefaultOptions().SaveTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		pets:     make(map[string]*Pet),
		sched:    sched,
		saves:    saves,
		eventLog: eventLog,
		logger:   log,
		metrics:  metrics.Get(),
		opts:     opts,
	}
}

// WithMetrics swaps the collector, for tests.
func (e *Engine) WithMetrics(c *metrics.Collector) *Engine {
	e.metrics = c
	return e
}

// Start registers the decay tick and the autosave timer. Calling it twice is
// a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.logger.Info(fmt.Sprintf("Starting pet engine (tick %s, autosave %s)", e.opts.TickInterval, e.opts.SaveInterval))
	e.sched.Every(e.opts.TickInterval, e.TickAll)
	e.sched.Every(e.opts.SaveInterval, func() {
		e.SaveAll(context.Background())
	})
}

// Observe registers fn on every pet, loaded now or later.
func (e *Engine) Observe(fn func(pet.Snapshot)) {
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	pets := e.petsLocked()
	e.mu.Unlock()

	for _, p := range pets {
		p.Observe(fn)
	}
}

// Pet returns the loaded pet of ownerID, loading it from the save store on
// first use. An owner with no save starts from the defaults. A store failure
// is returned so the caller does not overwrite a save it could not read.
func (e *Engine) Pet(ctx context.Context, ownerID string) (*Pet, error) {
	e.mu.Lock()
	if p, ok := e.pets[ownerID]; ok {
		e.mu.Unlock()
		return p, nil
	}
	e.mu.Unlock()

	data := pet.NewSaveData()
	if e.saves != nil {
		saved, err := e.saves.Load(ctx, ownerID)
		if err != nil {
			e.logger.Error("Failed to load pet " + ownerID + ": " + err.Error())
			return nil, fmt.Errorf("failed to load pet: %w", err)
		}
		if saved != nil {
			data = *saved
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Another caller may have loaded it while the store was being read.
	if p, ok := e.pets[ownerID]; ok {
		return p, nil
	}
	p := NewPet(ownerID, data, PetDeps{
		Scheduler:       e.sched,
		ReclassifyDelay: e.opts.ReclassifyDelay,
		EventLog:        e.eventLog,
		Logger:          e.logger,
		Metrics:         e.metrics,
	})
	for _, fn := range e.observers {
		p.Observe(fn)
	}
	e.pets[ownerID] = p
	e.logger.Info("Pet registered with engine: " + p.String())
	return p, nil
}

// Owners returns the loaded owner IDs in sorted order.
func (e *Engine) Owners() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	owners := make([]string, 0, len(e.pets))
	for id := range e.pets {
		owners = append(owners, id)
	}
	sort.Strings(owners)
	return owners
}

// TickAll applies one decay step to every loaded pet.
func (e *Engine) TickAll() {
	e.mu.Lock()
	pets := e.petsLocked()
	e.mu.Unlock()

	for _, p := range pets {
		p.Tick()
	}
}

// Save writes the pet of ownerID to the store. The error is a
// *storage.StorageError the caller may report; it is never fatal.
func (e *Engine) Save(ctx context.Context, ownerID string) error {
	e.mu.Lock()
	p, ok := e.pets[ownerID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("pet %s is not loaded", ownerID)
	}
	return e.save(ctx, p)
}

// SaveAll saves every loaded pet, logging failures and continuing.
func (e *Engine) SaveAll(ctx context.Context) {
	e.mu.Lock()
	pets := e.petsLocked()
	e.mu.Unlock()

	for _, p := range pets {
		_ = e.save(ctx, p)
	}
}

func (e *Engine) save(ctx context.Context, p *Pet) error {
	if e.saves == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.SaveTimeout)
	defer cancel()

	data := p.SaveData()
	start := time.Now()
	err := e.saves.Save(ctx, p.OwnerID(), data)
	e.metrics.RecordSave(time.Since(start), err)

	if err != nil {
		e.logger.Error("Failed to save pet " + p.OwnerID() + ": " + err.Error())
		if e.eventLog != nil {
			e.eventLog.Append(events.NewEvent(events.EventTypeSaveFailed, p.OwnerID(), map[string]any{"error": err.Error()}))
		}
		return err
	}
	if e.eventLog != nil {
		e.eventLog.Append(events.NewEvent(events.EventTypeSave, p.OwnerID(), map[string]any{"coins": data.Coins}))
	}
	return nil
}

func (e *Engine) petsLocked() []*Pet {
	pets := make([]*Pet, 0, len(e.pets))
	for _, p := range e.pets {
		pets = append(pets, p)
	}
	return pets
}
