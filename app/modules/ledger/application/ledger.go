package ledgerservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/repositories"
	"github.com/Black-And-White-Club/score-ledger/app/observability"
	"github.com/Black-And-White-Club/score-ledger/app/shared/results"
	"go.opentelemetry.io/otel/trace"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// DefaultMaxRetries bounds optimistic retries when the store reports a concurrent write.
const DefaultMaxRetries = 5

// Ledger owns the participant → best score mapping. Writes are serialized by a
// single lock that also covers the in-memory ranking projection, so readers see a
// write either fully applied or not at all.
//
// When several processes share one store each keeps its own projection. Peers'
// writes are merged in through Refresh and Resync; a merge only ever adds a
// participant or raises a best score.
type Ledger struct {
	store      ledgerdb.Store
	index      *ledgerdomain.RankIndex
	clock      Clock
	tel        *telemetry
	maxRetries int
	shared     bool

	mu sync.RWMutex
}

// LedgerOption customises a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the clock used for submitted_at.
func WithClock(c Clock) LedgerOption {
	return func(l *Ledger) { l.clock = c }
}

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) LedgerOption {
	return func(l *Ledger) {
		if n >= 0 {
			l.maxRetries = n
		}
	}
}

// WithSharedStore marks the store as shared with other ledger processes.
func WithSharedStore() LedgerOption {
	return func(l *Ledger) { l.shared = true }
}

// NewLedger creates a Ledger over store. Call Load before serving reads.
func NewLedger(
	store ledgerdb.Store,
	logger *slog.Logger,
	metrics observability.LedgerMetrics,
	tracer trace.Tracer,
	opts ...LedgerOption,
) *Ledger {
	l := &Ledger{
		store:      store,
		index:      ledgerdomain.NewRankIndex(),
		clock:      RealClock{},
		tel:        newTelemetry("Ledger", logger, metrics, tracer),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load rebuilds the ranking projection from the store.
func (l *Ledger) Load(ctx context.Context) error {
	entries, err := l.store.ScanSorted(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	l.mu.Lock()
	l.index.Reset(entries)
	count := l.index.Len()
	l.mu.Unlock()

	stored, err := l.store.Count(ctx)
	switch {
	case err != nil:
		l.tel.logger.WarnContext(ctx, "Failed to count stored entries", slog.String("error", err.Error()))
	case stored != uint64(count):
		l.tel.logger.WarnContext(ctx, "Store count differs from loaded entries",
			slog.Uint64("stored", stored),
			slog.Int("loaded", count),
		)
	}

	l.tel.metrics.SetPlayerCount(uint64(count))
	l.tel.logger.InfoContext(ctx, "Ledger loaded", slog.Int("players", count))
	return nil
}

// Refresh merges a peer's write for id into the projection. best is the score the
// peer announced; nothing is read when the projection already holds it.
func (l *Ledger) Refresh(ctx context.Context, id ledgerdomain.ParticipantID, best uint64) error {
	if l.BestScoreOf(ctx, id) >= best {
		return nil
	}
	e, err := l.store.Get(ctx, id)
	if errors.Is(err, ledgerdb.ErrNotFound) {
		l.tel.logger.WarnContext(ctx, "Announced entry is missing from the store",
			slog.String("participant_id", string(id)),
			slog.Uint64("best_score", best),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mergeLocked(e) {
		l.tel.metrics.SetPlayerCount(uint64(l.index.Len()))
	}
	return nil
}

// Resync merges every stored entry into the projection and returns how many
// changed. Writes that lost their announcement are picked up here.
func (l *Ledger) Resync(ctx context.Context) (int, error) {
	entries, err := l.store.ScanSorted(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to scan ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	merged := 0
	for _, e := range entries {
		if l.mergeLocked(e) {
			merged++
		}
	}
	if merged > 0 {
		l.tel.metrics.SetPlayerCount(uint64(l.index.Len()))
		l.tel.logger.InfoContext(ctx, "Ledger resynced", slog.Int("merged", merged))
	}
	return merged, nil
}

// mergeLocked applies e when it is new or beats the projected best. Callers hold mu.
func (l *Ledger) mergeLocked(e ledgerdomain.ScoreEntry) bool {
	if cur, ok := l.index.Get(e.ParticipantID); ok && cur.BestScore >= e.BestScore {
		return false
	}
	l.index.Upsert(e)
	return true
}

// Submit records score for id if it beats the participant's current best.
func (l *Ledger) Submit(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (ledgerdomain.SubmitOutcome, error) {
	result, err := withTelemetry(l.tel, ctx, "Submit", string(id), func(ctx context.Context) (results.OperationResult[ledgerdomain.SubmitOutcome, error], error) {
		return l.submitLogic(ctx, id, score)
	})
	if err != nil {
		return ledgerdomain.SubmitOutcome{}, err
	}
	if result.IsFailure() {
		return ledgerdomain.SubmitOutcome{}, *result.Failure
	}
	return *result.Success, nil
}

func (l *Ledger) submitLogic(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (results.OperationResult[ledgerdomain.SubmitOutcome, error], error) {
	if id == "" {
		return results.FailureResult[ledgerdomain.SubmitOutcome, error](ledgerdomain.ErrInvalidParticipant), nil
	}
	if err := ledgerdomain.ValidateScore(score); err != nil {
		l.tel.metrics.RecordSubmission(ctx, "invalid_score")
		return results.FailureResult[ledgerdomain.SubmitOutcome, error](err), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return results.OperationResult[ledgerdomain.SubmitOutcome, error]{}, err
		}

		// Stores keep microseconds at best; truncate so the projection matches a reload.
		now := l.clock.Now().UTC().Truncate(time.Microsecond)
		next := ledgerdomain.ScoreEntry{ParticipantID: id, BestScore: score, SubmittedAt: now}

		current, err := l.store.Get(ctx, id)
		if errors.Is(err, ledgerdb.ErrNotFound) {
			if err := l.store.Insert(ctx, next); err != nil {
				if errors.Is(err, ledgerdb.ErrAlreadyExists) {
					continue
				}
				return results.OperationResult[ledgerdomain.SubmitOutcome, error]{}, fmt.Errorf("failed to insert entry: %w", err)
			}
			l.index.Upsert(next)
			l.tel.metrics.SetPlayerCount(uint64(l.index.Len()))
			l.tel.metrics.RecordSubmission(ctx, "accepted")
			return results.SuccessResult[ledgerdomain.SubmitOutcome, error](ledgerdomain.SubmitOutcome{
				ParticipantID: id,
				NewPlayer:     true,
				BestScore:     score,
				SubmittedAt:   now,
			}), nil
		}
		if err != nil {
			return results.OperationResult[ledgerdomain.SubmitOutcome, error]{}, fmt.Errorf("failed to read entry: %w", err)
		}
		if l.mergeLocked(current) {
			l.tel.metrics.SetPlayerCount(uint64(l.index.Len()))
		}

		if current.BestScore >= score {
			l.tel.metrics.RecordSubmission(ctx, "not_improved")
			return results.FailureResult[ledgerdomain.SubmitOutcome, error](
				fmt.Errorf("%w (current best %d)", ledgerdomain.ErrScoreNotImproved, current.BestScore),
			), nil
		}

		if err := l.store.CompareAndSwap(ctx, next, current.BestScore); err != nil {
			if errors.Is(err, ledgerdb.ErrConflict) || errors.Is(err, ledgerdb.ErrNotFound) {
				l.tel.logger.DebugContext(ctx, "Entry changed during submit, retrying",
					slog.String("participant_id", string(id)),
					slog.Int("attempt", attempt+1),
				)
				continue
			}
			return results.OperationResult[ledgerdomain.SubmitOutcome, error]{}, fmt.Errorf("failed to update entry: %w", err)
		}
		l.index.Upsert(next)
		l.tel.metrics.RecordSubmission(ctx, "accepted")
		return results.SuccessResult[ledgerdomain.SubmitOutcome, error](ledgerdomain.SubmitOutcome{
			ParticipantID: id,
			NewPlayer:     false,
			BestScore:     score,
			PreviousBest:  current.BestScore,
			SubmittedAt:   now,
		}), nil
	}

	return results.OperationResult[ledgerdomain.SubmitOutcome, error]{}, ledgerdomain.ErrContention
}

// BestScoreOf returns the participant's best score, or 0 when absent.
func (l *Ledger) BestScoreOf(_ context.Context, id ledgerdomain.ParticipantID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.index.Get(id)
	if !ok {
		return 0
	}
	return e.BestScore
}

// PlayerCount returns the number of participants ever accepted.
func (l *Ledger) PlayerCount(_ context.Context) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(l.index.Len())
}

// view runs fn against the projection under the read lock.
func (l *Ledger) view(fn func(idx *ledgerdomain.RankIndex)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(l.index)
}
