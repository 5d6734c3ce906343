// Package storetest holds the behavioural contract every ledger store must satisfy.
// Unit tests run it against the in-process stores; integration tests run it against
// Postgres and JetStream.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/repositories"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is the factory's responsibility.
type Factory func(t *testing.T) ledgerdb.Store

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func entry(id string, score uint64, offset time.Duration) ledgerdomain.ScoreEntry {
	return ledgerdomain.ScoreEntry{
		ParticipantID: ledgerdomain.ParticipantID(id),
		BestScore:     score,
		SubmittedAt:   base.Add(offset),
	}
}

// Run executes the contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, ledgerdb.ErrNotFound)
	})

	t.Run("insert then get", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		want := entry("0xaaa", 128, 0)
		require.NoError(t, s.Insert(ctx, want))

		got, err := s.Get(ctx, want.ParticipantID)
		require.NoError(t, err)
		assert.Equal(t, want.BestScore, got.BestScore)
		assert.True(t, want.SubmittedAt.Equal(got.SubmittedAt), "submitted_at %v != %v", got.SubmittedAt, want.SubmittedAt)

		assert.ErrorIs(t, s.Insert(ctx, entry("0xaaa", 999, 0)), ledgerdb.ErrAlreadyExists)
		got, err = s.Get(ctx, want.ParticipantID)
		require.NoError(t, err)
		assert.Equal(t, uint64(128), got.BestScore, "duplicate insert must not overwrite")
	})

	t.Run("compare and swap", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, entry("p1", 100, 0)))

		assert.ErrorIs(t, s.CompareAndSwap(ctx, entry("p1", 300, time.Minute), 50), ledgerdb.ErrConflict)
		require.NoError(t, s.CompareAndSwap(ctx, entry("p1", 200, time.Minute), 100))
		assert.ErrorIs(t, s.CompareAndSwap(ctx, entry("p1", 300, 2*time.Minute), 100), ledgerdb.ErrConflict)
		assert.ErrorIs(t, s.CompareAndSwap(ctx, entry("nobody", 1, 0), 0), ledgerdb.ErrNotFound)

		got, err := s.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, uint64(200), got.BestScore)
		assert.True(t, base.Add(time.Minute).Equal(got.SubmittedAt))
	})

	t.Run("scan sorted with ties", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, e := range []ledgerdomain.ScoreEntry{
			entry("c", 50, 3*time.Second),
			entry("a", 300, 0),
			entry("late", 200, 9*time.Second),
			entry("early", 200, 1*time.Second),
		} {
			require.NoError(t, s.Insert(ctx, e))
		}

		got, err := s.ScanSorted(ctx)
		require.NoError(t, err)
		ids := make([]ledgerdomain.ParticipantID, len(got))
		for i, e := range got {
			ids[i] = e.ParticipantID
		}
		if diff := cmp.Diff([]ledgerdomain.ParticipantID{"a", "early", "late", "c"}, ids); diff != "" {
			t.Fatalf("scan order mismatch (-want +got):\n%s", diff)
		}

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), n)
	})

	t.Run("score range", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, entry("top", ledgerdomain.MaxScore, 0)))
		require.NoError(t, s.Insert(ctx, entry("low", 1, 0)))

		got, err := s.Get(ctx, "top")
		require.NoError(t, err)
		assert.Equal(t, ledgerdomain.MaxScore, got.BestScore)

		sorted, err := s.ScanSorted(ctx)
		require.NoError(t, err)
		require.Len(t, sorted, 2)
		assert.Equal(t, ledgerdomain.ParticipantID("top"), sorted[0].ParticipantID)

		assert.ErrorIs(t, s.Insert(ctx, entry("wrap", ledgerdomain.MaxScore+1, 0)), ledgerdomain.ErrScoreTooLarge)
		_, err = s.Get(ctx, "wrap")
		assert.ErrorIs(t, err, ledgerdb.ErrNotFound)

		assert.ErrorIs(t, s.CompareAndSwap(ctx, entry("low", 1<<63, time.Minute), 1), ledgerdomain.ErrScoreTooLarge)
		got, err = s.Get(ctx, "low")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.BestScore)
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, entry("gone", 10, 0)))
		require.NoError(t, s.Delete(ctx, "gone"))
		assert.ErrorIs(t, s.Delete(ctx, "gone"), ledgerdb.ErrNotFound)
		_, err := s.Get(ctx, "gone")
		assert.ErrorIs(t, err, ledgerdb.ErrNotFound)
	})

	t.Run("pause state", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		paused, err := s.Paused(ctx)
		require.NoError(t, err)
		assert.False(t, paused)

		require.NoError(t, s.SetPaused(ctx, true))
		paused, err = s.Paused(ctx)
		require.NoError(t, err)
		assert.True(t, paused)

		require.NoError(t, s.SetPaused(ctx, false))
		paused, err = s.Paused(ctx)
		require.NoError(t, err)
		assert.False(t, paused)
	})

	t.Run("racing swaps admit one winner", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, entry("hot", 10, 0)))

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.CompareAndSwap(ctx, entry("hot", uint64(100+i), time.Duration(i)*time.Second), 10)
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, ledgerdb.ErrConflict)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
