package ledgerservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/score-ledger/app/observability"
	"github.com/Black-And-White-Club/score-ledger/app/shared/results"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// telemetry carries the logging, tracing and metrics handles shared by the services.
type telemetry struct {
	service string
	logger  *slog.Logger
	metrics observability.LedgerMetrics
	tracer  trace.Tracer
}

func newTelemetry(service string, logger *slog.Logger, metrics observability.LedgerMetrics, tracer trace.Tracer) *telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewNoopLedgerMetrics()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(service)
	}
	return &telemetry{service: service, logger: logger, metrics: metrics, tracer: tracer}
}

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
// Domain rejections come back in result.Failure and count as successes for metrics.
func withTelemetry[S any, F any](
	t *telemetry,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	ctx, span := t.tracer.Start(ctx, t.service+"."+operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("identifier", identifier),
	))
	defer span.End()

	t.metrics.RecordOperationAttempt(ctx, operationName, t.service)

	startTime := time.Now()
	defer func() {
		t.metrics.RecordOperationDuration(ctx, operationName, t.service, time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			t.logger.ErrorContext(ctx, "Critical panic recovered",
				slog.String("operation", operationName),
				slog.String("identifier", identifier),
				slog.String("error", err.Error()),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			t.metrics.RecordOperationFailure(ctx, operationName, t.service)
		}
	}()

	result, err = op(ctx)
	if err != nil {
		err = fmt.Errorf("%s: %w", operationName, err)
		t.logger.ErrorContext(ctx, "Operation failed",
			slog.String("operation", operationName),
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.metrics.RecordOperationFailure(ctx, operationName, t.service)
		return result, err
	}

	if result.IsFailure() {
		t.logger.WarnContext(ctx, "Operation rejected",
			slog.String("operation", operationName),
			slog.String("identifier", identifier),
			slog.Any("reason", *result.Failure),
		)
		span.SetAttributes(attribute.Bool("rejected", true))
	} else {
		t.logger.DebugContext(ctx, "Operation completed",
			slog.String("operation", operationName),
			slog.String("identifier", identifier),
		)
	}
	t.metrics.RecordOperationSuccess(ctx, operationName, t.service)
	return result, nil
}
