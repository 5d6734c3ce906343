package ledgerdomain

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(id string, score uint64, offset time.Duration) ScoreEntry {
	return ScoreEntry{ParticipantID: ParticipantID(id), BestScore: score, SubmittedAt: t0.Add(offset)}
}

func ids(entries []ScoreEntry) []ParticipantID {
	out := make([]ParticipantID, len(entries))
	for i, e := range entries {
		out[i] = e.ParticipantID
	}
	return out
}

func TestRanksOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b ScoreEntry
		want bool
	}{
		{"higher score first", entry("a", 200, 0), entry("b", 100, 0), true},
		{"lower score after", entry("a", 100, 0), entry("b", 200, 0), false},
		{"equal score earlier submission first", entry("a", 100, time.Second), entry("b", 100, 2*time.Second), true},
		{"equal score later submission after", entry("a", 100, 3*time.Second), entry("b", 100, 2*time.Second), false},
		{"full tie falls back to id", entry("a", 100, 0), entry("b", 100, 0), true},
		{"entry does not rank before itself", entry("a", 100, 0), entry("a", 100, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ranks(tt.a, tt.b); got != tt.want {
				t.Fatalf("Ranks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankIndexEmpty(t *testing.T) {
	x := NewRankIndex()
	if x.Len() != 0 {
		t.Fatalf("expected empty index, got %d", x.Len())
	}
	if r := x.Rank("nobody"); r != 0 {
		t.Fatalf("expected rank 0 for absent participant, got %d", r)
	}
	if top := x.Top(10); len(top) != 0 {
		t.Fatalf("expected empty top, got %v", top)
	}
}

func TestRankIndexUpsertReplacesEntry(t *testing.T) {
	x := NewRankIndex()
	x.Upsert(entry("a", 100, 0))
	x.Upsert(entry("b", 150, time.Second))
	if r := x.Rank("a"); r != 2 {
		t.Fatalf("expected a at rank 2, got %d", r)
	}

	x.Upsert(entry("a", 200, 2*time.Second))
	if x.Len() != 2 {
		t.Fatalf("upsert must not add a second entry, len=%d", x.Len())
	}
	if diff := cmp.Diff([]ParticipantID{"a", "b"}, ids(x.Top(10))); diff != "" {
		t.Fatalf("top order mismatch (-want +got):\n%s", diff)
	}
	got, ok := x.Get("a")
	if !ok || got.BestScore != 200 {
		t.Fatalf("expected a=200, got %+v ok=%v", got, ok)
	}
}

func TestRankIndexTieBreakBySubmissionTime(t *testing.T) {
	x := NewRankIndex()
	x.Upsert(entry("late", 500, 10*time.Second))
	x.Upsert(entry("early", 500, time.Second))
	x.Upsert(entry("top", 900, 20*time.Second))

	if diff := cmp.Diff([]ParticipantID{"top", "early", "late"}, ids(x.Top(3))); diff != "" {
		t.Fatalf("tie order mismatch (-want +got):\n%s", diff)
	}
	if r := x.Rank("early"); r != 2 {
		t.Fatalf("expected early at 2, got %d", r)
	}
	if r := x.Rank("late"); r != 3 {
		t.Fatalf("expected late at 3, got %d", r)
	}
}

func TestRankIndexTopBounds(t *testing.T) {
	x := NewRankIndex()
	x.Upsert(entry("a", 200, 0))
	x.Upsert(entry("b", 150, 0))

	if got := x.Top(0); len(got) != 0 {
		t.Fatalf("Top(0) should be empty, got %v", got)
	}
	if got := x.Top(-3); len(got) != 0 {
		t.Fatalf("Top(-3) should be empty, got %v", got)
	}
	if diff := cmp.Diff([]ParticipantID{"a", "b"}, ids(x.Top(1000))); diff != "" {
		t.Fatalf("Top(1000) mismatch (-want +got):\n%s", diff)
	}
}

func TestRankIndexRemove(t *testing.T) {
	x := NewRankIndex()
	x.Upsert(entry("a", 300, 0))
	x.Upsert(entry("b", 200, 0))
	x.Upsert(entry("c", 100, 0))

	if !x.Remove("b") {
		t.Fatalf("expected b to be removed")
	}
	if x.Remove("b") {
		t.Fatalf("second remove should report absence")
	}
	if r := x.Rank("c"); r != 2 {
		t.Fatalf("expected c to move up to 2, got %d", r)
	}
}

// TestRankIndexMatchesSortedScan cross-checks the treap against a full sort after a
// long random sequence of improvements.
func TestRankIndexMatchesSortedScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	x := NewRankIndex()
	current := map[ParticipantID]ScoreEntry{}

	for i := 0; i < 2000; i++ {
		id := ParticipantID(fmt.Sprintf("p%03d", rng.IntN(150)))
		score := uint64(rng.IntN(50) + 1)
		prev, ok := current[id]
		if ok && prev.BestScore >= score {
			continue
		}
		e := ScoreEntry{ParticipantID: id, BestScore: score, SubmittedAt: t0.Add(time.Duration(rng.IntN(30)) * time.Second)}
		current[id] = e
		x.Upsert(e)
	}

	want := make([]ScoreEntry, 0, len(current))
	for _, e := range current {
		want = append(want, e)
	}
	sort.Slice(want, func(i, j int) bool { return Ranks(want[i], want[j]) })

	if diff := cmp.Diff(want, x.Top(len(want))); diff != "" {
		t.Fatalf("index order differs from sorted scan (-want +got):\n%s", diff)
	}
	for i, e := range want {
		if r := x.Rank(e.ParticipantID); r != uint64(i+1) {
			t.Fatalf("rank of %s = %d, want %d", e.ParticipantID, r, i+1)
		}
	}
}

func TestRankIndexReset(t *testing.T) {
	x := NewRankIndex()
	x.Upsert(entry("stale", 1, 0))
	x.Reset([]ScoreEntry{entry("a", 10, 0), entry("b", 20, 0)})

	if _, ok := x.Get("stale"); ok {
		t.Fatalf("reset should drop previous entries")
	}
	if diff := cmp.Diff([]ParticipantID{"b", "a"}, ids(x.Top(5))); diff != "" {
		t.Fatalf("reset order mismatch (-want +got):\n%s", diff)
	}
}
