package ledgerqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	ledgerservice "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/score-ledger/app/observability"
	"github.com/Black-And-White-Club/score-ledger/app/shared/handlerwrapper"
)

const defaultMaxAttempts = 10

// Service queues ledger notifications in Postgres and publishes them from River
// workers, so an event survives a bus outage or a restart.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics observability.LedgerMetrics
}

var _ ledgerservice.Emitter = (*Service)(nil)

// NewService connects to dsn and registers workers that deliver through publish.
func NewService(ctx context.Context, dsn string, publish ledgerservice.Emitter, logger *slog.Logger, metrics observability.LedgerMetrics) (*Service, error) {
	ctxLogger := logger.With(slog.String("component", "river_queue"))
	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", "river")

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.ErrorContext(ctx, "Failed to ping database for River", slog.Any("error", err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewScoreSubmittedWorker(ctxLogger, publish))
	river.AddWorker(workers, NewPauseChangedWorker(ctxLogger, publish))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueName: {MaxWorkers: 10},
		},
		Workers: workers,
		Logger:  ctxLogger,
	})
	if err != nil {
		pool.Close()
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", "river")
	metrics.RecordOperationDuration(ctx, "initialize_service", "river", time.Since(start))
	ctxLogger.InfoContext(ctx, "Ledger queue service initialized")

	return &Service{client: client, pool: pool, logger: ctxLogger, metrics: metrics}, nil
}

// Start begins working jobs.
func (s *Service) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting ledger queue service")
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start River client: %w", err)
	}
	return nil
}

// Stop waits for running jobs and releases the pool.
func (s *Service) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping ledger queue service")
	defer s.pool.Close()
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	return nil
}

func (s *Service) EmitScoreSubmitted(ctx context.Context, payload ledgerdomain.ScoreSubmittedPayloadV1) error {
	return s.insert(ctx, "enqueue_score_submitted", ScoreSubmittedJob{
		CorrelationID: handlerwrapper.CorrelationID(ctx),
		Payload:       payload,
	})
}

func (s *Service) EmitPauseChanged(ctx context.Context, payload ledgerdomain.PauseChangedPayloadV1) error {
	return s.insert(ctx, "enqueue_pause_changed", PauseChangedJob{
		CorrelationID: handlerwrapper.CorrelationID(ctx),
		Payload:       payload,
	})
}

func (s *Service) insert(ctx context.Context, operation string, args river.JobArgs) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, operation, "river")

	res, err := s.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       QueueName,
		MaxAttempts: defaultMaxAttempts,
	})
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, operation, "river")
		return fmt.Errorf("failed to enqueue %s: %w", args.Kind(), err)
	}

	s.metrics.RecordOperationSuccess(ctx, operation, "river")
	s.metrics.RecordOperationDuration(ctx, operation, "river", time.Since(start))
	s.logger.DebugContext(ctx, "Ledger job enqueued", slog.String("kind", args.Kind()), slog.Int64("job_id", res.Job.ID))
	return nil
}

// HealthCheck verifies the queue tables are reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	var pending int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state IN ('available', 'retryable')",
		QueueName,
	).Scan(&pending)
	if err != nil {
		return fmt.Errorf("queue service health check failed: %w", err)
	}
	s.logger.DebugContext(ctx, "Queue service health check passed", slog.Int("pending_jobs", pending))
	return nil
}

// Migrate brings the River schema up to date on pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}
