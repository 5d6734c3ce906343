package ledgerhandlers

import (
	"context"
	"time"

	ledgerservice "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
)

// ------------------------
// Fake Ledger Service
// ------------------------

type FakeService struct {
	trace []string

	SubmitFunc    func(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (ledgerdomain.SubmitOutcome, error)
	TopSinceFunc  func(ctx context.Context, n int, since time.Time) []ledgerdomain.RankedEntry
	TopWindowFunc func(ctx context.Context, limit int, w ledgerdomain.Window) []ledgerdomain.RankedEntry
	PauseFunc     func(ctx context.Context, actor ledgerdomain.Actor) error
	UnpauseFunc   func(ctx context.Context, actor ledgerdomain.Actor) error

	ApplyScoreSubmittedFunc func(ctx context.Context, payload ledgerdomain.ScoreSubmittedPayloadV1) error
	ReloadPauseStateFunc    func(ctx context.Context) error

	Best    map[ledgerdomain.ParticipantID]uint64
	Ranks   map[ledgerdomain.ParticipantID]uint64
	Top     []ledgerdomain.ScoreEntry
	Players uint64
	Paused  bool
}

func NewFakeService() *FakeService {
	return &FakeService{
		trace: []string{},
		Best:  map[ledgerdomain.ParticipantID]uint64{},
		Ranks: map[ledgerdomain.ParticipantID]uint64{},
	}
}

func (f *FakeService) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeService) Submit(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (ledgerdomain.SubmitOutcome, error) {
	f.record("Submit")
	if f.SubmitFunc != nil {
		return f.SubmitFunc(ctx, id, score)
	}
	return ledgerdomain.SubmitOutcome{ParticipantID: id, BestScore: score, NewPlayer: true}, nil
}

func (f *FakeService) BestScoreOf(_ context.Context, id ledgerdomain.ParticipantID) uint64 {
	f.record("BestScoreOf")
	return f.Best[id]
}

func (f *FakeService) PlayerCount(context.Context) uint64 {
	f.record("PlayerCount")
	return f.Players
}

func (f *FakeService) RankOf(_ context.Context, id ledgerdomain.ParticipantID) uint64 {
	f.record("RankOf")
	return f.Ranks[id]
}

func (f *FakeService) TopN(_ context.Context, n int) []ledgerdomain.ScoreEntry {
	f.record("TopN")
	if n < len(f.Top) {
		return f.Top[:n]
	}
	return f.Top
}

func (f *FakeService) TopSince(ctx context.Context, n int, since time.Time) []ledgerdomain.RankedEntry {
	f.record("TopSince")
	if f.TopSinceFunc != nil {
		return f.TopSinceFunc(ctx, n, since)
	}
	return []ledgerdomain.RankedEntry{}
}

func (f *FakeService) TopWindow(ctx context.Context, limit int, w ledgerdomain.Window) []ledgerdomain.RankedEntry {
	f.record("TopWindow")
	if f.TopWindowFunc != nil {
		return f.TopWindowFunc(ctx, limit, w)
	}
	return []ledgerdomain.RankedEntry{}
}

func (f *FakeService) StatsOf(_ context.Context, id ledgerdomain.ParticipantID) ledgerdomain.Stats {
	f.record("StatsOf")
	return ledgerdomain.Stats{ParticipantID: id, BestScore: f.Best[id], Rank: f.Ranks[id], TotalPlayers: f.Players}
}

func (f *FakeService) Pause(ctx context.Context, actor ledgerdomain.Actor) error {
	f.record("Pause")
	if f.PauseFunc != nil {
		return f.PauseFunc(ctx, actor)
	}
	f.Paused = true
	return nil
}

func (f *FakeService) Unpause(ctx context.Context, actor ledgerdomain.Actor) error {
	f.record("Unpause")
	if f.UnpauseFunc != nil {
		return f.UnpauseFunc(ctx, actor)
	}
	f.Paused = false
	return nil
}

func (f *FakeService) IsPaused(context.Context) bool {
	f.record("IsPaused")
	return f.Paused
}

func (f *FakeService) ApplyScoreSubmitted(ctx context.Context, payload ledgerdomain.ScoreSubmittedPayloadV1) error {
	f.record("ApplyScoreSubmitted")
	if f.ApplyScoreSubmittedFunc != nil {
		return f.ApplyScoreSubmittedFunc(ctx, payload)
	}
	return nil
}

func (f *FakeService) ReloadPauseState(ctx context.Context) error {
	f.record("ReloadPauseState")
	if f.ReloadPauseStateFunc != nil {
		return f.ReloadPauseStateFunc(ctx)
	}
	return nil
}

func (f *FakeService) Resync(context.Context) (int, error) {
	f.record("Resync")
	return 0, nil
}

func (f *FakeService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ ledgerservice.Service = (*FakeService)(nil)
