package ledgerservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/score-ledger/app/observability"
)

// newPeers builds two services over one store, as two processes sharing Postgres would be.
func newPeers(t *testing.T, store *FakeStore) (*LedgerService, *LedgerService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	build := func() *LedgerService {
		svc := NewLedgerService(store, nil, logger, observability.NewNoopLedgerMetrics(), tracer,
			WithClock(NewFakeClock(epoch)), WithSharedStore())
		require.NoError(t, svc.Load(context.Background()))
		return svc
	}
	return build(), build()
}

func TestLedgerService_PeersOnSharedStore(t *testing.T) {
	ctx := context.Background()

	t.Run("announced submission reaches the peer", func(t *testing.T) {
		store := NewFakeStore()
		a, b := newPeers(t, store)

		out, err := a.Submit(ctx, "0xA", 100)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), b.PlayerCount(ctx))

		require.NoError(t, b.ApplyScoreSubmitted(ctx, ledgerdomain.NewScoreSubmittedPayload(out)))
		assert.Equal(t, uint64(1), b.PlayerCount(ctx))
		assert.Equal(t, uint64(1), b.RankOf(ctx, "0xa"))
		assert.Equal(t, uint64(100), b.BestScoreOf(ctx, "0xa"))

		before := len(store.Trace())
		require.NoError(t, b.ApplyScoreSubmitted(ctx, ledgerdomain.ScoreSubmittedPayloadV1{ParticipantID: "0xa", NewBestScore: 90}))
		assert.Len(t, store.Trace(), before, "stale announcement must not read the store")
		assert.Equal(t, uint64(100), b.BestScoreOf(ctx, "0xa"))
	})

	t.Run("announcement for a vanished entry is ignored", func(t *testing.T) {
		_, b := newPeers(t, NewFakeStore())
		require.NoError(t, b.ApplyScoreSubmitted(ctx, ledgerdomain.ScoreSubmittedPayloadV1{ParticipantID: "0xghost", NewBestScore: 5}))
		assert.Equal(t, uint64(0), b.PlayerCount(ctx))
	})

	t.Run("submit compares against the stored best, not a stale projection", func(t *testing.T) {
		a, b := newPeers(t, NewFakeStore())
		_, err := a.Submit(ctx, "0xA", 100)
		require.NoError(t, err)

		_, err = b.Submit(ctx, "0xA", 50)
		require.ErrorIs(t, err, ledgerdomain.ErrScoreNotImproved)
		assert.Equal(t, uint64(1), b.PlayerCount(ctx))
		assert.Equal(t, uint64(100), b.BestScoreOf(ctx, "0xa"))

		out, err := b.Submit(ctx, "0xA", 150)
		require.NoError(t, err)
		assert.False(t, out.NewPlayer)
		assert.Equal(t, uint64(100), out.PreviousBest)
	})

	t.Run("pause by one peer gates the other", func(t *testing.T) {
		a, b := newPeers(t, NewFakeStore())

		require.NoError(t, a.Pause(ctx, admin))
		assert.True(t, b.IsPaused(ctx))
		_, err := b.Submit(ctx, "0xC", 10)
		require.ErrorIs(t, err, ledgerdomain.ErrSystemPaused)
		assert.Equal(t, uint64(0), b.PlayerCount(ctx))

		require.NoError(t, b.Unpause(ctx, admin))
		assert.False(t, a.IsPaused(ctx))
		_, err = a.Submit(ctx, "0xC", 10)
		require.NoError(t, err)
	})

	t.Run("reload refreshes the cached gate", func(t *testing.T) {
		store := NewFakeStore()
		a, b := newPeers(t, store)
		require.NoError(t, a.Pause(ctx, admin))
		require.NoError(t, b.ReloadPauseState(ctx))

		store.PausedFunc = func(context.Context) (bool, error) { return false, errors.New("control row unreachable") }
		assert.True(t, b.IsPaused(ctx), "falls back to the last known state")
		_, err := b.Submit(ctx, "0xC", 10)
		require.Error(t, err)
		assert.False(t, ledgerdomain.IsRejection(err))
	})

	t.Run("resync merges unannounced writes", func(t *testing.T) {
		store := NewFakeStore()
		_, b := newPeers(t, store)
		require.NoError(t, store.mem.Insert(ctx, ledgerdomain.ScoreEntry{ParticipantID: "0xd", BestScore: 7, SubmittedAt: epoch}))
		require.NoError(t, store.mem.Insert(ctx, ledgerdomain.ScoreEntry{ParticipantID: "0xe", BestScore: 9, SubmittedAt: epoch}))

		n, err := b.Resync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, uint64(1), b.RankOf(ctx, "0xe"))
		assert.Equal(t, uint64(2), b.RankOf(ctx, "0xd"))

		n, err = b.Resync(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestLedger_LoadToleratesCountFailure(t *testing.T) {
	store := NewFakeStore()
	store.CountFunc = func(context.Context) (uint64, error) { return 0, errors.New("count timed out") }
	require.NoError(t, store.mem.Insert(context.Background(), ledgerdomain.ScoreEntry{ParticipantID: "a", BestScore: 1, SubmittedAt: epoch}))

	l := newTestLedger(store)
	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, uint64(1), l.PlayerCount(context.Background()))
}
