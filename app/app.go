package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Black-And-White-Club/score-ledger/app/eventbus"
	"github.com/Black-And-White-Club/score-ledger/app/modules/ledger"
	authjwt "github.com/Black-And-White-Club/score-ledger/app/modules/auth/infrastructure/jwt"
	ledgerservice "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	ledgerqueue "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/queue"
	ledgerdb "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/repositories"
	"github.com/Black-And-White-Club/score-ledger/app/observability"
	"github.com/Black-And-White-Club/score-ledger/config"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived resource of the service.
type App struct {
	Config  *config.Config
	Obs     *observability.Observability
	Bus     eventbus.EventBus
	Store   ledgerdb.Store
	Router  *message.Router
	Ledger  *ledger.Module
	Queue   *ledgerqueue.Service
	HTTP    *http.Server
	Metrics *http.Server

	logger *slog.Logger
}

// New connects the bus and store selected by cfg and builds the ledger module.
func New(ctx context.Context, cfg *config.Config, obs *observability.Observability) (_ *App, err error) {
	a := &App{Config: cfg, Obs: obs, logger: obs.Logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if a.Bus, err = NewBus(ctx, cfg, a.logger); err != nil {
		return nil, err
	}
	if err = a.Bus.CreateStream(ctx, ledgerdomain.StreamName, ledgerdomain.StreamSubjects...); err != nil {
		return nil, fmt.Errorf("failed to create ledger stream: %w", err)
	}

	if a.Store, err = OpenStore(ctx, cfg, a.Bus); err != nil {
		return nil, err
	}

	a.Router, err = message.NewRouter(message.RouterConfig{CloseTimeout: shutdownTimeout}, watermill.NewSlogLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create watermill router: %w", err)
	}

	var emitter ledgerservice.Emitter = ledgerservice.NewPublisherEmitter(a.Bus)
	if cfg.Ledger.DurableEvents {
		a.Queue, err = ledgerqueue.NewService(ctx, cfg.Postgres.DSN, emitter, a.logger, obs.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create ledger queue: %w", err)
		}
		emitter = a.Queue
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	mux.Get("/healthz", a.handleHealth)

	var apiRegistry *prometheus.Registry
	if cfg.Observability.MetricsAddress == "" {
		apiRegistry = obs.Registry
	} else {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))
		a.Metrics = &http.Server{Addr: cfg.Observability.MetricsAddress, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	}

	a.Ledger, err = ledger.NewLedgerModule(ctx, ledger.Deps{
		Config:   cfg,
		Obs:      obs,
		Store:    a.Store,
		Bus:      a.Bus,
		Router:   a.Router,
		Tokens:   authjwt.NewProvider(cfg.JWT.Secret, cfg.JWT.Issuer),
		HTTP:     mux,
		Emitter:  emitter,
		Registry: apiRegistry,
	})
	if err != nil {
		return nil, err
	}

	a.HTTP = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

// NewBus returns the NATS bus when a URL is configured, the in-process bus otherwise.
func NewBus(ctx context.Context, cfg *config.Config, logger *slog.Logger) (eventbus.EventBus, error) {
	if cfg.NATS.URL == "" {
		logger.InfoContext(ctx, "No NATS URL configured, using in-process event bus")
		return eventbus.NewMemory(logger), nil
	}
	return eventbus.NewNATS(ctx, eventbus.NATSConfig{URL: cfg.NATS.URL, QueueGroup: cfg.NATS.QueueGroup}, logger)
}

// OpenStore opens the backend named by cfg.Store.Backend.
func OpenStore(ctx context.Context, cfg *config.Config, bus eventbus.EventBus) (ledgerdb.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := ledgerdb.OpenPostgres(cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		return ledgerdb.NewBunStore(db), nil

	case config.BackendKV:
		js := bus.JetStream()
		if js == nil {
			return nil, errors.New("kv store requires a NATS event bus")
		}
		store, err := ledgerdb.NewKVStore(ctx, js, cfg.NATS.KVBucket)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendSQLite:
		store, err := ledgerdb.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendMemory, "":
		return ledgerdb.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := "ok"
	if a.Queue != nil {
		if err := a.Queue.HealthCheck(r.Context()); err != nil {
			a.logger.WarnContext(r.Context(), "Health check failed", slog.Any("error", err))
			status, body = http.StatusServiceUnavailable, "queue unavailable"
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Run serves until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a.Queue != nil {
		if err := a.Queue.Start(ctx); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Router.Run(ctx); err != nil {
			return fmt.Errorf("watermill router: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Ledger.Run(ctx, nil)
		return nil
	})

	for _, srv := range []*http.Server{a.HTTP, a.Metrics} {
		if srv == nil {
			continue
		}
		g.Go(func() error {
			a.logger.InfoContext(ctx, "HTTP server listening", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range []*http.Server{a.HTTP, a.Metrics} {
			if srv != nil {
				errs = append(errs, srv.Shutdown(shutdownCtx))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Ledger != nil {
		errs = append(errs, a.Ledger.Close())
	}
	if a.Router != nil {
		errs = append(errs, a.Router.Close())
	}
	if a.Queue != nil {
		errs = append(errs, a.Queue.Stop(ctx))
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if a.Obs != nil {
		errs = append(errs, a.Obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
