package ledgerservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/repositories"
	"github.com/Black-And-White-Club/score-ledger/app/observability"
	"go.opentelemetry.io/otel/trace"
)

// Service is the full ledger surface consumed by the transports.
type Service interface {
	Submit(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (ledgerdomain.SubmitOutcome, error)
	BestScoreOf(ctx context.Context, id ledgerdomain.ParticipantID) uint64
	PlayerCount(ctx context.Context) uint64

	RankOf(ctx context.Context, id ledgerdomain.ParticipantID) uint64
	TopN(ctx context.Context, n int) []ledgerdomain.ScoreEntry
	TopSince(ctx context.Context, n int, since time.Time) []ledgerdomain.RankedEntry
	TopWindow(ctx context.Context, limit int, w ledgerdomain.Window) []ledgerdomain.RankedEntry
	StatsOf(ctx context.Context, id ledgerdomain.ParticipantID) ledgerdomain.Stats

	Pause(ctx context.Context, actor ledgerdomain.Actor) error
	Unpause(ctx context.Context, actor ledgerdomain.Actor) error
	IsPaused(ctx context.Context) bool

	// ApplyScoreSubmitted merges an accepted submission announced by any instance.
	ApplyScoreSubmitted(ctx context.Context, payload ledgerdomain.ScoreSubmittedPayloadV1) error
	// ReloadPauseState re-reads the gate after any instance changed it.
	ReloadPauseState(ctx context.Context) error
	// Resync merges every stored entry into the local projection.
	Resync(ctx context.Context) (int, error)
}

// LedgerService composes the ledger, its ranking view and the submission gateway.
// Submit goes through the gateway; reads go straight to the ledger projection.
type LedgerService struct {
	*Ranking
	ledger  *Ledger
	gateway *Gateway
	logger  *slog.Logger
}

var _ Service = (*LedgerService)(nil)

// NewLedgerService builds the ledger stack over store.
func NewLedgerService(
	store ledgerdb.Store,
	emitter Emitter,
	logger *slog.Logger,
	metrics observability.LedgerMetrics,
	tracer trace.Tracer,
	opts ...LedgerOption,
) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	ledger := NewLedger(store, logger, metrics, tracer, opts...)
	gateway := NewGateway(ledger, store, emitter, logger, metrics, tracer)
	gateway.clock = ledger.clock
	gateway.shared = ledger.shared
	return &LedgerService{
		Ranking: NewRanking(ledger),
		ledger:  ledger,
		gateway: gateway,
		logger:  logger,
	}
}

// Load hydrates the ranking projection and pause state from the store.
func (s *LedgerService) Load(ctx context.Context) error {
	if err := s.ledger.Load(ctx); err != nil {
		return err
	}
	if err := s.gateway.Load(ctx); err != nil {
		return fmt.Errorf("failed to load gateway: %w", err)
	}
	return nil
}

func (s *LedgerService) Submit(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (ledgerdomain.SubmitOutcome, error) {
	return s.gateway.Submit(ctx, id.Normalize(), score)
}

func (s *LedgerService) BestScoreOf(ctx context.Context, id ledgerdomain.ParticipantID) uint64 {
	return s.ledger.BestScoreOf(ctx, id.Normalize())
}

func (s *LedgerService) PlayerCount(ctx context.Context) uint64 {
	return s.ledger.PlayerCount(ctx)
}

func (s *LedgerService) RankOf(ctx context.Context, id ledgerdomain.ParticipantID) uint64 {
	return s.Ranking.RankOf(ctx, id.Normalize())
}

func (s *LedgerService) StatsOf(ctx context.Context, id ledgerdomain.ParticipantID) ledgerdomain.Stats {
	return s.Ranking.StatsOf(ctx, id.Normalize())
}

func (s *LedgerService) Pause(ctx context.Context, actor ledgerdomain.Actor) error {
	return s.gateway.Pause(ctx, actor)
}

func (s *LedgerService) Unpause(ctx context.Context, actor ledgerdomain.Actor) error {
	return s.gateway.Unpause(ctx, actor)
}

func (s *LedgerService) IsPaused(ctx context.Context) bool {
	return s.gateway.IsPaused(ctx)
}

func (s *LedgerService) ApplyScoreSubmitted(ctx context.Context, payload ledgerdomain.ScoreSubmittedPayloadV1) error {
	id := payload.ParticipantID.Normalize()
	if id == "" {
		return nil
	}
	return s.ledger.Refresh(ctx, id, payload.NewBestScore)
}

func (s *LedgerService) ReloadPauseState(ctx context.Context) error {
	return s.gateway.Load(ctx)
}

func (s *LedgerService) Resync(ctx context.Context) (int, error) {
	return s.ledger.Resync(ctx)
}
