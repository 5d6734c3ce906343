package ledgerrouter

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	ledgerhandlers "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/handlers"
	"github.com/Black-And-White-Club/score-ledger/app/shared/handlerwrapper"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"
)

// LedgerRouter wires ledger message handlers into a watermill router.
type LedgerRouter struct {
	logger         *slog.Logger
	Router         *message.Router
	subscriber     message.Subscriber
	broadcast      message.Subscriber
	publisher      message.Publisher
	tracer         trace.Tracer
	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// NewLedgerRouter creates a new instance of the router. subscriber is the
// competing-consumer side for requests; broadcast delivers every ledger event to
// this instance. Router metrics are skipped when no registry is given or
// APP_ENV=test.
func NewLedgerRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	broadcast message.Subscriber,
	publisher message.Publisher,
	tracer trace.Tracer,
	prometheusRegistry *prometheus.Registry,
) *LedgerRouter {
	inTestEnv := os.Getenv(TestEnvironmentFlag) == TestEnvironmentValue

	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if prometheusRegistry != nil && !inTestEnv {
		builder := metrics.NewPrometheusMetricsBuilder(prometheusRegistry, "", "")
		metricsBuilder = &builder
	}

	return &LedgerRouter{
		logger:         logger,
		Router:         router,
		subscriber:     subscriber,
		broadcast:      broadcast,
		publisher:      publisher,
		tracer:         tracer,
		metricsBuilder: metricsBuilder,
	}
}

// Configure sets up the middlewares and registers the ledger handlers.
func (r *LedgerRouter) Configure(ctx context.Context, handlers ledgerhandlers.Handlers) error {
	if r.metricsBuilder != nil {
		r.logger.InfoContext(ctx, "Adding Prometheus router metrics middleware for Ledger")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)

	return r.RegisterHandlers(ctx, handlers)
}

type handlerDeps struct {
	router     *message.Router
	subscriber message.Subscriber
	publisher  message.Publisher
	logger     *slog.Logger
	tracer     trace.Tracer
	prefix     string
}

// registerHandler adds a typed handler for topic.
func registerHandler[T any](deps handlerDeps, topic string, handler handlerwrapper.TypedHandler[T]) {
	handlerName := deps.prefix + topic
	deps.router.AddNoPublisherHandler(
		handlerName,
		topic,
		deps.subscriber,
		handlerwrapper.WrapTyped(handlerName, deps.logger, deps.tracer, deps.publisher, handler),
	)
}

// RegisterHandlers binds event topics to their handler logic.
func (r *LedgerRouter) RegisterHandlers(ctx context.Context, handlers ledgerhandlers.Handlers) error {
	r.logger.InfoContext(ctx, "Registering Ledger Event Handlers")

	deps := handlerDeps{
		router:     r.Router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
		prefix:     "ledger.",
	}

	registerHandler(deps, ledgerdomain.ScoreSubmitRequestedV1, handlers.HandleScoreSubmitRequested)

	if r.broadcast != nil {
		peers := deps
		peers.subscriber = r.broadcast
		peers.prefix = "ledger.sync."
		registerHandler(peers, ledgerdomain.ScoreSubmittedV1, handlers.HandleScoreSubmitted)
		registerHandler(peers, ledgerdomain.LedgerPausedV1, handlers.HandlePauseChanged)
		registerHandler(peers, ledgerdomain.LedgerUnpausedV1, handlers.HandlePauseChanged)
	}

	return nil
}

// Close stops the router.
func (r *LedgerRouter) Close() error {
	return r.Router.Close()
}
