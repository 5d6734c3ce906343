package ledgerservice

import (
	"context"
	"time"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
)

// Ranking answers position queries against the Ledger's projection. Every method
// reads from one snapshot taken under the ledger's read lock.
type Ranking struct {
	ledger *Ledger
}

// NewRanking returns a Ranking over l.
func NewRanking(l *Ledger) *Ranking {
	return &Ranking{ledger: l}
}

// RankOf returns the 1-based rank of id, or 0 when the participant has no entry.
func (r *Ranking) RankOf(_ context.Context, id ledgerdomain.ParticipantID) uint64 {
	var rank uint64
	r.ledger.view(func(idx *ledgerdomain.RankIndex) {
		rank = idx.Rank(id)
	})
	return rank
}

// TopN returns up to n entries in rank order. n <= 0 yields an empty slice.
func (r *Ranking) TopN(_ context.Context, n int) []ledgerdomain.ScoreEntry {
	var top []ledgerdomain.ScoreEntry
	r.ledger.view(func(idx *ledgerdomain.RankIndex) {
		top = idx.Top(n)
	})
	if top == nil {
		top = []ledgerdomain.ScoreEntry{}
	}
	return top
}

// TopSince returns up to n entries whose submission is not before since, in rank
// order, each carrying its global rank. A zero since includes everything.
func (r *Ranking) TopSince(_ context.Context, n int, since time.Time) []ledgerdomain.RankedEntry {
	out := []ledgerdomain.RankedEntry{}
	if n <= 0 {
		return out
	}
	r.ledger.view(func(idx *ledgerdomain.RankIndex) {
		idx.Ascend(func(rank uint64, e ledgerdomain.ScoreEntry) bool {
			if !since.IsZero() && e.SubmittedAt.Before(since) {
				return true
			}
			out = append(out, ledgerdomain.RankedEntry{ScoreEntry: e, Rank: rank})
			return len(out) < n
		})
	})
	return out
}

// TopWindow applies w's lower bound relative to the ledger clock. A non-positive
// limit falls back to the window's default.
func (r *Ranking) TopWindow(ctx context.Context, limit int, w ledgerdomain.Window) []ledgerdomain.RankedEntry {
	if limit <= 0 {
		limit = w.DefaultLimit()
	}
	if limit > ledgerdomain.MaxLimit {
		limit = ledgerdomain.MaxLimit
	}
	return r.TopSince(ctx, limit, w.Since(r.ledger.clock.Now().UTC()))
}

// StatsOf returns score, rank and player count from the same snapshot. An absent
// participant reports zero score and rank with the current total.
func (r *Ranking) StatsOf(_ context.Context, id ledgerdomain.ParticipantID) ledgerdomain.Stats {
	stats := ledgerdomain.Stats{ParticipantID: id}
	r.ledger.view(func(idx *ledgerdomain.RankIndex) {
		if e, ok := idx.Get(id); ok {
			stats.BestScore = e.BestScore
			stats.Rank = idx.Rank(id)
		}
		stats.TotalPlayers = uint64(idx.Len())
	})
	return stats
}
