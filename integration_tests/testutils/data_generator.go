//go:build integration

package testutils

import (
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
)

// TestDataGenerator produces reproducible ledger fixtures.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator seeds the faker; without a seed the clock is used.
func NewTestDataGenerator(seed ...uint64) *TestDataGenerator {
	s := uint64(time.Now().UnixNano())
	if len(seed) > 0 {
		s = seed[0]
	}
	return &TestDataGenerator{faker: gofakeit.New(s)}
}

// ParticipantID returns a random 0x-prefixed account address in canonical form.
func (g *TestDataGenerator) ParticipantID() ledgerdomain.ParticipantID {
	return ledgerdomain.ParticipantID("0x" + strings.ToLower(g.faker.HexUint(160)[2:]))
}

// Score returns a positive score.
func (g *TestDataGenerator) Score() uint64 {
	return uint64(g.faker.IntRange(1, 100_000))
}

// Entries generates n entries with distinct participants submitted around base.
func (g *TestDataGenerator) Entries(n int, base time.Time) []ledgerdomain.ScoreEntry {
	out := make([]ledgerdomain.ScoreEntry, n)
	for i := range out {
		out[i] = ledgerdomain.ScoreEntry{
			ParticipantID: g.ParticipantID(),
			BestScore:     g.Score(),
			SubmittedAt:   base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}
