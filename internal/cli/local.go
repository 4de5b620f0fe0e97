package cli

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/engine"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/ai"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/storage"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/config"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
)

const eventWriteTimeout = 2 * time.Second

// local is the runtime of a one-shot command: one owner's pet loaded from
// the store, with no timers running.
type local struct {
	cfg       config.Server
	db        *sql.DB
	eventRepo *storage.SQLiteEventRepository
	eventLog  *events.EventLog
	engine    *engine.Engine
	pet       *engine.Pet
	ownerID   string
	logger    *logger.Logger
}

func openLocal(ctx context.Context) (*local, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	ownerID, err := resolveOwner()
	if err != nil {
		return nil, err
	}

	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log := logger.Discard()
	eventRepo := storage.NewSQLiteEventRepository(db)
	eventLog := events.NewEventLog(storage.NewEventPersister(eventRepo, eventWriteTimeout), nil)

	opts := engine.DefaultOptions()
	opts.ReclassifyDelay = cfg.Tuning.ReclassifyDelay
	eng := engine.NewEngine(engine.NewManualScheduler(time.Now()), storage.NewSQLiteSaveRepository(db), eventLog, log, opts)
	p, err := eng.Pet(ctx, ownerID)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &local{
		cfg:       cfg,
		db:        db,
		eventRepo: eventRepo,
		eventLog:  eventLog,
		engine:    eng,
		pet:       p,
		ownerID:   ownerID,
		logger:    log,
	}, nil
}

func (l *local) save(ctx context.Context) error {
	return l.engine.Save(ctx, l.ownerID)
}

func (l *local) Close() error {
	return l.db.Close()
}

// fail closes the database, then exits. Deferred calls do not run on exit.
func (l *local) fail(msg string, err error) {
	l.Close()
	exitErr(msg, err)
}

// newProvider builds the configured generator.
func newProvider(cfg config.Server) (ai.LLMProvider, error) {
	pc := ai.ProviderConfig{}
	switch strings.ToLower(cfg.Provider) {
	case ai.ProviderGemini:
		pc = ai.ProviderConfig{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL, Model: cfg.GeminiModel}
	case ai.ProviderOpenAI:
		pc.APIKey = cfg.OpenAIAPIKey
	case ai.ProviderAnthropic:
		pc.APIKey = cfg.AnthropicAPIKey
	}
	return ai.NewProvider(cfg.Provider, pc)
}
