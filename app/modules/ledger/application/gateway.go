package ledgerservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/repositories"
	"github.com/Black-And-White-Club/score-ledger/app/observability"
	"github.com/Black-And-White-Club/score-ledger/app/shared/results"
	"go.opentelemetry.io/otel/trace"
)

// Submitter is the write side of the Ledger.
type Submitter interface {
	Submit(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (ledgerdomain.SubmitOutcome, error)
}

// Gateway is the public entry point for submissions. It applies the pause gate,
// forwards to the ledger and emits a notification once the result is known.
type Gateway struct {
	ledger  Submitter
	control ledgerdb.ControlStore
	emitter Emitter
	clock   Clock
	tel     *telemetry

	// mu is held shared by Submit across the gate check and the ledger call, and
	// exclusively by pause transitions, so no submission straddles a transition
	// made by this process.
	mu     sync.RWMutex
	paused bool
	// shared reads the gate from the control store on every check, since peers
	// sharing the store may flip it.
	shared bool
}

// NewGateway wires a Gateway. Call Load to pick up the persisted pause state.
func NewGateway(
	ledger Submitter,
	control ledgerdb.ControlStore,
	emitter Emitter,
	logger *slog.Logger,
	metrics observability.LedgerMetrics,
	tracer trace.Tracer,
) *Gateway {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Gateway{
		ledger:  ledger,
		control: control,
		emitter: emitter,
		clock:   RealClock{},
		tel:     newTelemetry("Gateway", logger, metrics, tracer),
	}
}

// Load reads the persisted pause state.
func (g *Gateway) Load(ctx context.Context) error {
	paused, err := g.control.Paused(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pause state: %w", err)
	}
	g.mu.Lock()
	g.paused = paused
	g.mu.Unlock()
	g.tel.metrics.SetPaused(paused)
	return nil
}

// Submit records a score for id. Accepted submissions are announced through the
// emitter after the ledger has committed them; an emit failure does not undo the
// submission.
func (g *Gateway) Submit(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (ledgerdomain.SubmitOutcome, error) {
	result, err := withTelemetry(g.tel, ctx, "Submit", string(id), func(ctx context.Context) (results.OperationResult[ledgerdomain.SubmitOutcome, error], error) {
		return g.submitLogic(ctx, id, score)
	})
	if err != nil {
		return ledgerdomain.SubmitOutcome{}, err
	}
	if result.IsFailure() {
		return ledgerdomain.SubmitOutcome{}, *result.Failure
	}

	outcome := *result.Success
	if err := g.emitter.EmitScoreSubmitted(ctx, ledgerdomain.NewScoreSubmittedPayload(outcome)); err != nil {
		g.tel.logger.ErrorContext(ctx, "Failed to emit score submitted",
			slog.String("participant_id", string(id)),
			slog.String("error", err.Error()),
		)
	}
	return outcome, nil
}

func (g *Gateway) submitLogic(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (results.OperationResult[ledgerdomain.SubmitOutcome, error], error) {
	if err := ledgerdomain.ValidateScore(score); err != nil {
		return results.FailureResult[ledgerdomain.SubmitOutcome, error](err), nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	paused, err := g.currentPaused(ctx)
	if err != nil {
		return results.OperationResult[ledgerdomain.SubmitOutcome, error]{}, err
	}
	if paused {
		g.tel.metrics.RecordSubmission(ctx, "paused")
		return results.FailureResult[ledgerdomain.SubmitOutcome, error](ledgerdomain.ErrSystemPaused), nil
	}

	outcome, err := g.ledger.Submit(ctx, id, score)
	if err != nil {
		if ledgerdomain.IsRejection(err) {
			return results.FailureResult[ledgerdomain.SubmitOutcome, error](err), nil
		}
		return results.OperationResult[ledgerdomain.SubmitOutcome, error]{}, err
	}
	return results.SuccessResult[ledgerdomain.SubmitOutcome, error](outcome), nil
}

// Pause stops new submissions. Pausing an already paused gateway is a no-op.
func (g *Gateway) Pause(ctx context.Context, actor ledgerdomain.Actor) error {
	return g.setPaused(ctx, "Pause", actor, true)
}

// Unpause re-enables submissions. Unpausing an active gateway is a no-op.
func (g *Gateway) Unpause(ctx context.Context, actor ledgerdomain.Actor) error {
	return g.setPaused(ctx, "Unpause", actor, false)
}

// IsPaused reports the current gate state. On a shared store a failed read falls
// back to the last known state.
func (g *Gateway) IsPaused(ctx context.Context) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	paused, err := g.currentPaused(ctx)
	if err != nil {
		g.tel.logger.WarnContext(ctx, "Failed to read pause state, using cached value",
			slog.Bool("paused", g.paused),
			slog.String("error", err.Error()),
		)
		return g.paused
	}
	return paused
}

// currentPaused returns the gate state. Callers hold mu.
func (g *Gateway) currentPaused(ctx context.Context) (bool, error) {
	if !g.shared {
		return g.paused, nil
	}
	paused, err := g.control.Paused(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read pause state: %w", err)
	}
	return paused, nil
}

func (g *Gateway) setPaused(ctx context.Context, op string, actor ledgerdomain.Actor, paused bool) error {
	result, err := withTelemetry(g.tel, ctx, op, actor.ID, func(ctx context.Context) (results.OperationResult[bool, error], error) {
		if !actor.IsAdmin() {
			return results.FailureResult[bool, error](ledgerdomain.ErrUnauthorized), nil
		}

		g.mu.Lock()
		defer g.mu.Unlock()

		current, err := g.currentPaused(ctx)
		if err != nil {
			return results.OperationResult[bool, error]{}, err
		}
		g.paused = current
		if g.paused == paused {
			return results.SuccessResult[bool, error](false), nil
		}
		if err := g.control.SetPaused(ctx, paused); err != nil {
			return results.OperationResult[bool, error]{}, fmt.Errorf("failed to persist pause state: %w", err)
		}
		g.paused = paused
		g.tel.metrics.SetPaused(paused)
		return results.SuccessResult[bool, error](true), nil
	})
	if err != nil {
		return err
	}
	if result.IsFailure() {
		return *result.Failure
	}
	if !*result.Success {
		return nil
	}

	g.tel.logger.InfoContext(ctx, "Submission gate changed",
		slog.Bool("paused", paused),
		slog.String("actor", actor.ID),
	)
	payload := ledgerdomain.PauseChangedPayloadV1{
		Paused:    paused,
		Actor:     actor.ID,
		ChangedAt: g.clock.Now().UTC(),
	}
	if err := g.emitter.EmitPauseChanged(ctx, payload); err != nil {
		g.tel.logger.ErrorContext(ctx, "Failed to emit pause change",
			slog.Bool("paused", paused),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
