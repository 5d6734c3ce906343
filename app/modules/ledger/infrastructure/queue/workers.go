package ledgerqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	ledgerservice "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/application"
	"github.com/Black-And-White-Club/score-ledger/app/shared/handlerwrapper"
)

// ScoreSubmittedWorker publishes queued ScoreSubmitted events.
type ScoreSubmittedWorker struct {
	river.WorkerDefaults[ScoreSubmittedJob]
	emitter ledgerservice.Emitter
	logger  *slog.Logger
}

// NewScoreSubmittedWorker returns a worker that hands jobs to emitter.
func NewScoreSubmittedWorker(logger *slog.Logger, emitter ledgerservice.Emitter) *ScoreSubmittedWorker {
	return &ScoreSubmittedWorker{emitter: emitter, logger: logger}
}

func (w *ScoreSubmittedWorker) Work(ctx context.Context, job *river.Job[ScoreSubmittedJob]) error {
	ctx = handlerwrapper.WithCorrelationID(ctx, job.Args.CorrelationID)
	if err := w.emitter.EmitScoreSubmitted(ctx, job.Args.Payload); err != nil {
		w.logger.WarnContext(ctx, "Failed to publish score submitted event, will retry",
			slog.Int64("job_id", job.ID),
			slog.Int("attempt", job.Attempt),
			slog.String("participant_id", string(job.Args.Payload.ParticipantID)),
			slog.Any("error", err),
		)
		return fmt.Errorf("publish score submitted: %w", err)
	}
	return nil
}

// PauseChangedWorker publishes queued pause transitions.
type PauseChangedWorker struct {
	river.WorkerDefaults[PauseChangedJob]
	emitter ledgerservice.Emitter
	logger  *slog.Logger
}

// NewPauseChangedWorker returns a worker that hands jobs to emitter.
func NewPauseChangedWorker(logger *slog.Logger, emitter ledgerservice.Emitter) *PauseChangedWorker {
	return &PauseChangedWorker{emitter: emitter, logger: logger}
}

func (w *PauseChangedWorker) Work(ctx context.Context, job *river.Job[PauseChangedJob]) error {
	ctx = handlerwrapper.WithCorrelationID(ctx, job.Args.CorrelationID)
	if err := w.emitter.EmitPauseChanged(ctx, job.Args.Payload); err != nil {
		w.logger.WarnContext(ctx, "Failed to publish pause change, will retry",
			slog.Int64("job_id", job.ID),
			slog.Int("attempt", job.Attempt),
			slog.Any("error", err),
		)
		return fmt.Errorf("publish pause change: %w", err)
	}
	return nil
}
