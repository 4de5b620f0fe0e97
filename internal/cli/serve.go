package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/GatoVirtual/server/internal/chat"
	"github.com/MRamiBalles/GatoVirtual/server/internal/engine"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/ai"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/storage"
	"github.com/MRamiBalles/GatoVirtual/server/internal/limiter"
	"github.com/MRamiBalles/GatoVirtual/server/internal/network"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/config"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/metrics"
)

const shutdownTimeout = 10 * time.Second

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pet server (HTTP API, chat boundary, WebSocket)",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: $GATO_HTTP_ADDR or :8080)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTPAddr = addr
	}
	appLogger := logger.NewLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg, appLogger)
	if err != nil {
		exitErr("start server", err)
	}
	srv.engine.Start()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("HTTP API & WS Server listening on " + cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed: " + err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP shutdown: " + err.Error())
	}
	srv.engine.SaveAll(shutdownCtx)
	if err := srv.db.Close(); err != nil {
		appLogger.Warn("Closing database: " + err.Error())
	}
}

// server is the wired pet server. Nothing runs until engine.Start and the
// HTTP listener are started; the hub loop runs until ctx is done.
type server struct {
	db       *sql.DB
	engine   *engine.Engine
	hub      *network.Hub
	sessions *chat.Registry
	mux      *http.ServeMux
}

func newServer(ctx context.Context, cfg config.Server, appLogger *logger.Logger) (*server, error) {
	appLogger.Info("Initializing SQLite database '" + cfg.DBPath + "'...")
	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	saves := storage.NewSQLiteSaveRepository(db)
	eventRepo := storage.NewSQLiteEventRepository(db)

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(storage.NewEventPersister(eventRepo, eventWriteTimeout), func(e events.PetEvent, err error) {
		appLogger.Warn("Failed to persist " + string(e.Type) + " event: " + err.Error())
	})

	appLogger.Info("Bootstrapping pet engine...")
	eng := engine.NewEngine(engine.NewWallScheduler(ctx, appLogger), saves, eventLog, appLogger, engine.Options{
		TickInterval:    cfg.Tuning.TickInterval,
		SaveInterval:    cfg.Tuning.SaveInterval,
		ReclassifyDelay: cfg.Tuning.ReclassifyDelay,
	})

	gen, err := newProvider(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !gen.IsAvailable() {
		appLogger.Warn("Generator " + gen.Name() + " has no API key; chat will answer with the fallback reply")
	}
	tmpl, err := ai.TemplateByName(cfg.ChatTemplate)
	if err != nil {
		db.Close()
		return nil, err
	}

	// One spacing guard per process, shared by sessions and the boundary.
	spacing := limiter.NewSpacingGuard(cfg.Tuning.SpacingInterval, cfg.Tuning.SpacingRetention)

	var hub *network.Hub
	sessions := chat.NewRegistry(func(ctx context.Context, ownerID string) (*chat.Session, error) {
		p, err := eng.Pet(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		s := chat.NewSession(ownerID, p, gen, chat.Options{
			Template: tmpl,
			Timeout:  cfg.GeneratorTimeout,
			Spacing:  spacing,
			Window:   limiter.NewMessageWindow(cfg.Tuning.MessageWindow, cfg.Tuning.MessageQuota),
			Greeting: cfg.Tuning.Greeting,
			EventLog: eventLog,
			Logger:   appLogger,
		})
		s.OnTurn(hub.TurnPublisher(ownerID))
		return s, nil
	})

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub = network.NewHub(eng, sessions, appLogger, cfg.Tuning.ClientSendBuffer)
	eng.Observe(hub.BroadcastSnapshot)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/api/chat", network.NewChatHandler(gen, spacing, cfg.GeneratorTimeout, appLogger))
	network.NewPetAPI(eng, sessions, hub, appLogger).RegisterRoutes(mux)
	network.NewHistoryHandler(eventRepo, eventLog, appLogger).RegisterRoutes(mux)
	mux.HandleFunc("GET /ws", hub.ServeWS)
	mux.HandleFunc("GET /metrics", metrics.Get().Handler())
	mux.HandleFunc("GET /metrics/prometheus", metrics.Get().PrometheusHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, fmt.Sprintf("database: %v", err), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	return &server{
		db:       db,
		engine:   eng,
		hub:      hub,
		sessions: sessions,
		mux:      mux,
	}, nil
}
