package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/timecapsule/internal/application"
	"github.com/example/timecapsule/internal/config"
	"github.com/example/timecapsule/internal/form"
	httptransport "github.com/example/timecapsule/internal/http"
	"github.com/example/timecapsule/internal/logging"
	"github.com/example/timecapsule/internal/metrics"
	"github.com/example/timecapsule/internal/persistence"
	"github.com/example/timecapsule/internal/persistence/kv"
	"github.com/example/timecapsule/internal/persistence/memory"
	"github.com/example/timecapsule/internal/persistence/sqlite"
	"github.com/example/timecapsule/internal/seed"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the TimeCapsule HTTP server.

Configuration is read from TIMECAPSULE_* environment variables. The
server stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}

			logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override TIMECAPSULE_HTTP_PORT")

	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	stores, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.close(logger)

	data, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return err
	}
	if err := stores.applySeed(ctx, logger, data, time.Now()); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := newApp(cfg, logger, stores, registry)
	defer a.hub.Close()

	if a.sessions.RestoreSession(ctx) {
		if _, err := a.messages.FetchAll(ctx); err != nil {
			logger.Warn("initial message fetch failed", "error", err)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("timecapsule listening",
			"addr", server.Addr,
			"message_backend", cfg.MessageBackend,
			"session_backend", cfg.SessionBackend,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		logger.Info("timecapsule stopped")
		return nil
	})

	return g.Wait()
}

type app struct {
	handler  http.Handler
	hub      *httptransport.EventHub
	sessions *application.SessionStore
	messages *application.MessageStore
}

func newApp(cfg config.Config, logger *slog.Logger, stores *backends, registry *prometheus.Registry) *app {
	now := time.Now
	collector := metrics.NewCollector(registry)

	hub := httptransport.NewEventHub(now, logger)
	hub.OnClients = collector.SetEventClients

	notifier := application.MultiNotifier{
		application.LogNotifier{Logger: logger},
		hub,
		application.NotifierFunc(func(_ context.Context, n application.Notification) {
			collector.RecordNotification(string(n.Kind))
		}),
	}

	var verify application.SecretVerifier = application.AcceptAnySecret
	if cfg.VerifySecrets {
		verify = application.VerifySecretHash
	}

	sessions := application.NewSessionStore(application.SessionStoreDeps{
		Credentials: newCredentialDirectoryAdapter(stores.identities),
		Persistence: stores.sessions,
		Notifier:    notifier,
		Verify:      verify,
		IDGenerator: uuid.NewString,
		Now:         now,
		Delay:       application.FixedDelay(cfg.AuthLatency),
		Recorder:    collector,
		Logger:      logger,
	})
	messages := application.NewMessageStore(application.MessageStoreDeps{
		Messages:    newMessageRepositoryAdapter(stores.messages),
		Owners:      sessions,
		Notifier:    notifier,
		IDGenerator: uuid.NewString,
		Now:         now,
		Delay:       application.FixedDelay(cfg.Latency),
		Recorder:    collector,
		Logger:      logger,
	})

	sessions.Subscribe(hub.PublishSession)
	messages.Subscribe(hub.PublishMessages)
	hub.Greeting = func() []httptransport.Event {
		return []httptransport.Event{
			hub.SessionEvent(sessions.Snapshot()),
			hub.MessagesEvent(messages.Snapshot()),
		}
	}

	validator := form.NewValidator()
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:     httptransport.NewAuthHandler(sessions, validator, logger),
		Messages: httptransport.NewMessageHandler(messages, validator, now, logger),
		Events:   hub,
		Metrics:  metrics.Handler(registry),
		Gate:     sessions,
		Notifier: notifier,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.Tracing(""),
			httptransport.CountStatus(collector),
			httptransport.RequestLogger(logger),
		},
		Logger: logger,
	})

	return &app{
		handler:  router,
		hub:      hub,
		sessions: sessions,
		messages: messages,
	}
}

// backends groups the repositories selected by configuration. markers lives
// next to the message store and records whether it has been seeded.
type backends struct {
	identities persistence.IdentityRepository
	messages   persistence.MessageRepository
	sessions   persistence.KeyValueStore
	markers    persistence.KeyValueStore
	closers    []func() error
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	var mem *memory.Storage
	inMemory := func() *memory.Storage {
		if mem == nil {
			mem = memory.Open()
			b.closers = append(b.closers, mem.Close)
		}
		return mem
	}

	var pool *sqlite.ConnectionPool
	if cfg.UsesSQLite() {
		var err error
		pool, err = sqlite.NewConnectionPool(ctx, sqlite.Config{DSN: cfg.SQLiteDSN})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			b.closeAll()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	switch cfg.MessageBackend {
	case config.MessageBackendSQLite:
		b.identities = sqlite.NewIdentityRepository(pool)
		b.messages = sqlite.NewMessageRepository(pool)
		b.markers = sqlite.NewKeyValueRepository(pool)
	default:
		b.identities = inMemory()
		b.messages = inMemory()
		b.markers = inMemory()
	}

	switch cfg.SessionBackend {
	case config.SessionBackendFile:
		store, err := kv.NewFileStore(cfg.SessionFile)
		if err != nil {
			b.closeAll()
			return nil, err
		}
		b.sessions = store
	case config.SessionBackendRedis:
		store, err := kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
		if err != nil {
			b.closeAll()
			return nil, err
		}
		b.closers = append(b.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			b.closeAll()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.sessions = store
	case config.SessionBackendSQLite:
		b.sessions = sqlite.NewKeyValueRepository(pool)
	default:
		b.sessions = inMemory()
	}

	return b, nil
}

// applySeed applies data the first time the message store is opened.
func (b *backends) applySeed(ctx context.Context, logger *slog.Logger, data *seed.Data, now time.Time) error {
	result, err := seed.ApplyOnce(ctx, data, now, b.markers, b.identities, b.messages)
	if err != nil {
		return err
	}
	if result.AlreadySeeded {
		logger.Info("seed skipped, store already seeded")
		return nil
	}
	logger.Info("seed applied",
		"identities", result.Identities,
		"messages", result.Messages,
		"skipped", result.Skipped,
	)
	return nil
}

func (b *backends) closeAll() []error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errs
}

func (b *backends) close(logger *slog.Logger) {
	for _, err := range b.closeAll() {
		logger.Error("failed to close backend", "error", err)
	}
}
