package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Black-And-White-Club/score-ledger/app/eventbus"
	authjwt "github.com/Black-And-White-Club/score-ledger/app/modules/auth/infrastructure/jwt"
	ledgerservice "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	ledgerfeed "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/feed"
	ledgerhandlers "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/handlers"
	ledgerdb "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/repositories"
	ledgerrouter "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/router"
	"github.com/Black-And-White-Club/score-ledger/app/observability"
	"github.com/Black-And-White-Club/score-ledger/config"
)

// Module represents the ledger module.
type Module struct {
	Service *ledgerservice.LedgerService
	router  *ledgerrouter.LedgerRouter
	hub     *ledgerfeed.Hub
	bus     eventbus.EventBus
	logger  *slog.Logger
	resync  time.Duration

	cancelFunc context.CancelFunc
}

// Deps are the shared resources the module is built on.
type Deps struct {
	Config   *config.Config
	Obs      *observability.Observability
	Store    ledgerdb.Store
	Bus      eventbus.EventBus
	Router   *message.Router
	Tokens   authjwt.Provider
	HTTP     chi.Router
	Emitter  ledgerservice.Emitter // defaults to publishing on Bus
	Registry *prometheus.Registry  // mounted at /metrics when set
}

// NewLedgerModule loads the ledger from its store and wires its transports.
func NewLedgerModule(ctx context.Context, deps Deps) (*Module, error) {
	logger := deps.Obs.Logger
	tracer := deps.Obs.Tracer
	cfg := deps.Config

	logger.InfoContext(ctx, "ledger.NewLedgerModule called", slog.String("store", cfg.Store.Backend))

	emitter := deps.Emitter
	if emitter == nil {
		emitter = ledgerservice.NewPublisherEmitter(deps.Bus)
	}

	var opts []ledgerservice.LedgerOption
	if cfg.Ledger.MaxRetries > 0 {
		opts = append(opts, ledgerservice.WithMaxRetries(cfg.Ledger.MaxRetries))
	}
	if cfg.Store.Shared() {
		opts = append(opts, ledgerservice.WithSharedStore())
	}

	service := ledgerservice.NewLedgerService(deps.Store, emitter, logger, deps.Obs.Metrics, tracer, opts...)
	if err := service.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	handlers := ledgerhandlers.NewLedgerHandlers(service, logger, tracer)

	router := ledgerrouter.NewLedgerRouter(logger, deps.Router, deps.Bus, deps.Bus.Broadcast(), deps.Bus, tracer, deps.Obs.Registry)
	if err := router.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure ledger router: %w", err)
	}

	hub := ledgerfeed.NewHub(logger, cfg.HTTP.AllowedOrigins)

	if deps.HTTP != nil {
		ledgerrouter.RegisterHTTPRoutes(deps.HTTP, ledgerrouter.HTTPDeps{
			Handlers: handlers,
			Tokens:   deps.Tokens,
			Feed:     hub.ServeWS,
			Registry: deps.Registry,
			Logger:   logger,
		}, ledgerrouter.HTTPConfig{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			SubmitRate:     rate.Limit(cfg.HTTP.SubmitRate),
			SubmitBurst:    cfg.HTTP.SubmitBurst,
		})
	}

	return &Module{
		Service: service,
		router:  router,
		hub:     hub,
		bus:     deps.Bus,
		logger:  logger,
		resync:  cfg.Ledger.ResyncInterval,
	}, nil
}

// Start runs the live feed hub, subscribes it to ledger events and, when an
// interval is configured, rescans the store periodically.
func (m *Module) Start(ctx context.Context) error {
	go m.hub.Run(ctx)
	if m.resync > 0 {
		go m.resyncLoop(ctx)
	}
	return m.hub.Consume(ctx, m.bus.Broadcast(),
		ledgerdomain.ScoreSubmittedV1,
		ledgerdomain.LedgerPausedV1,
		ledgerdomain.LedgerUnpausedV1,
	)
}

func (m *Module) resyncLoop(ctx context.Context) {
	ticker := time.NewTicker(m.resync)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Service.Resync(ctx); err != nil && ctx.Err() == nil {
				m.logger.WarnContext(ctx, "Ledger resync failed", slog.Any("error", err))
			}
		}
	}
}

// Run starts the module and blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting ledger module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if err := m.Start(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to start live feed", slog.Any("error", err))
		return
	}

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Ledger module goroutine stopped")
}

// Close stops the ledger module and cleans up resources.
func (m *Module) Close() error {
	m.logger.Info("Stopping ledger module")
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.logger.Info("Ledger module stopped")
	return nil
}
