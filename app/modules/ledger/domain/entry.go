package ledgerdomain

import (
	"math"
	"strings"
	"time"
)

// ParticipantID identifies a leaderboard participant. The ledger treats it as opaque
// and already authenticated by the transport.
type ParticipantID string

func (p ParticipantID) String() string { return string(p) }

// Normalize trims surrounding whitespace. Account addresses are compared case-insensitively.
func (p ParticipantID) Normalize() ParticipantID {
	s := strings.TrimSpace(string(p))
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = strings.ToLower(s)
	}
	return ParticipantID(s)
}

// MaxScore is the largest score the ledger accepts. The SQL stores keep scores in a
// signed 64-bit column.
const MaxScore uint64 = math.MaxInt64

// ValidateScore rejects zero and anything above MaxScore.
func ValidateScore(score uint64) error {
	switch {
	case score == 0:
		return ErrInvalidScore
	case score > MaxScore:
		return ErrScoreTooLarge
	}
	return nil
}

// ScoreEntry is the single ranked record held for a participant.
type ScoreEntry struct {
	ParticipantID ParticipantID `json:"participant_id"`
	BestScore     uint64        `json:"best_score"`
	SubmittedAt   time.Time     `json:"submitted_at"`
}

// Ranks reports whether a orders strictly before b: higher score first, then the
// earlier submission, then the lower participant id.
func Ranks(a, b ScoreEntry) bool {
	if a.BestScore != b.BestScore {
		return a.BestScore > b.BestScore
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.ParticipantID < b.ParticipantID
}

// SubmitOutcome describes an accepted submission.
type SubmitOutcome struct {
	ParticipantID ParticipantID `json:"participant_id"`
	NewPlayer     bool          `json:"new_player"`
	BestScore     uint64        `json:"best_score"`
	PreviousBest  uint64        `json:"previous_best"`
	SubmittedAt   time.Time     `json:"submitted_at"`
}

// Stats is a participant's position read from a single snapshot.
type Stats struct {
	ParticipantID ParticipantID `json:"participant_id"`
	BestScore     uint64        `json:"score"`
	Rank          uint64        `json:"rank"`
	TotalPlayers  uint64        `json:"total_players"`
}

// RankedEntry pairs an entry with its 1-based global rank.
type RankedEntry struct {
	ScoreEntry
	Rank uint64 `json:"rank"`
}
