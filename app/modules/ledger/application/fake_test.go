package ledgerservice

import (
	"context"
	"sync"
	"time"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/repositories"
)

// ------------------------
// Fake Store
// ------------------------

// FakeStore delegates to a MemoryStore unless a Func override is set.
type FakeStore struct {
	mu    sync.Mutex
	trace []string
	mem   *ledgerdb.MemoryStore

	GetFunc            func(ctx context.Context, id ledgerdomain.ParticipantID) (ledgerdomain.ScoreEntry, error)
	InsertFunc         func(ctx context.Context, entry ledgerdomain.ScoreEntry) error
	CompareAndSwapFunc func(ctx context.Context, entry ledgerdomain.ScoreEntry, expectedBest uint64) error
	ScanSortedFunc     func(ctx context.Context) ([]ledgerdomain.ScoreEntry, error)
	CountFunc          func(ctx context.Context) (uint64, error)
	PausedFunc         func(ctx context.Context) (bool, error)
	SetPausedFunc      func(ctx context.Context, paused bool) error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{trace: []string{}, mem: ledgerdb.NewMemoryStore()}
}

func (f *FakeStore) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *FakeStore) Get(ctx context.Context, id ledgerdomain.ParticipantID) (ledgerdomain.ScoreEntry, error) {
	f.record("Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, id)
	}
	return f.mem.Get(ctx, id)
}

func (f *FakeStore) Insert(ctx context.Context, entry ledgerdomain.ScoreEntry) error {
	f.record("Insert")
	if f.InsertFunc != nil {
		return f.InsertFunc(ctx, entry)
	}
	return f.mem.Insert(ctx, entry)
}

func (f *FakeStore) CompareAndSwap(ctx context.Context, entry ledgerdomain.ScoreEntry, expectedBest uint64) error {
	f.record("CompareAndSwap")
	if f.CompareAndSwapFunc != nil {
		return f.CompareAndSwapFunc(ctx, entry, expectedBest)
	}
	return f.mem.CompareAndSwap(ctx, entry, expectedBest)
}

func (f *FakeStore) Delete(ctx context.Context, id ledgerdomain.ParticipantID) error {
	f.record("Delete")
	return f.mem.Delete(ctx, id)
}

func (f *FakeStore) ScanSorted(ctx context.Context) ([]ledgerdomain.ScoreEntry, error) {
	f.record("ScanSorted")
	if f.ScanSortedFunc != nil {
		return f.ScanSortedFunc(ctx)
	}
	return f.mem.ScanSorted(ctx)
}

func (f *FakeStore) Count(ctx context.Context) (uint64, error) {
	f.record("Count")
	if f.CountFunc != nil {
		return f.CountFunc(ctx)
	}
	return f.mem.Count(ctx)
}

func (f *FakeStore) Paused(ctx context.Context) (bool, error) {
	f.record("Paused")
	if f.PausedFunc != nil {
		return f.PausedFunc(ctx)
	}
	return f.mem.Paused(ctx)
}

func (f *FakeStore) SetPaused(ctx context.Context, paused bool) error {
	f.record("SetPaused")
	if f.SetPausedFunc != nil {
		return f.SetPausedFunc(ctx, paused)
	}
	return f.mem.SetPaused(ctx, paused)
}

func (f *FakeStore) Close() error { return nil }

func (f *FakeStore) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ ledgerdb.Store = (*FakeStore)(nil)

// ------------------------
// Fake Emitter
// ------------------------

type FakeEmitter struct {
	mu        sync.Mutex
	Submitted []ledgerdomain.ScoreSubmittedPayloadV1
	Pauses    []ledgerdomain.PauseChangedPayloadV1

	Err error
}

func (f *FakeEmitter) EmitScoreSubmitted(_ context.Context, p ledgerdomain.ScoreSubmittedPayloadV1) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submitted = append(f.Submitted, p)
	return f.Err
}

func (f *FakeEmitter) EmitPauseChanged(_ context.Context, p ledgerdomain.PauseChangedPayloadV1) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pauses = append(f.Pauses, p)
	return f.Err
}

func (f *FakeEmitter) SubmittedEvents() []ledgerdomain.ScoreSubmittedPayloadV1 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ledgerdomain.ScoreSubmittedPayloadV1, len(f.Submitted))
	copy(out, f.Submitted)
	return out
}

var _ Emitter = (*FakeEmitter)(nil)

// ------------------------
// Fake Clock
// ------------------------

// FakeClock advances by Step on every read so consecutive submissions get distinct times.
type FakeClock struct {
	mu   sync.Mutex
	T    time.Time
	Step time.Duration
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{T: start, Step: time.Second}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.T
	c.T = c.T.Add(c.Step)
	return now
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.T = t
}

// ------------------------
// Fake Submitter
// ------------------------

type FakeSubmitter struct {
	trace []string

	SubmitFunc func(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (ledgerdomain.SubmitOutcome, error)
}

func (f *FakeSubmitter) Submit(ctx context.Context, id ledgerdomain.ParticipantID, score uint64) (ledgerdomain.SubmitOutcome, error) {
	f.trace = append(f.trace, "Submit")
	if f.SubmitFunc != nil {
		return f.SubmitFunc(ctx, id, score)
	}
	return ledgerdomain.SubmitOutcome{ParticipantID: id, BestScore: score, NewPlayer: true}, nil
}

func (f *FakeSubmitter) Trace() []string { return f.trace }

var _ Submitter = (*FakeSubmitter)(nil)
