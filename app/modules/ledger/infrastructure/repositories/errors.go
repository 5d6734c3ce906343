package ledgerdb

import (
	"errors"
	"fmt"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
)

var (
	// ErrNotFound is returned when no entry exists for a participant.
	ErrNotFound = errors.New("score entry not found")
	// ErrAlreadyExists is returned by Insert when the participant already has an entry.
	ErrAlreadyExists = errors.New("score entry already exists")
	// ErrConflict is returned by CompareAndSwap when the stored entry changed underneath.
	ErrConflict = errors.New("score entry was modified concurrently")
)

// checkRange keeps every adapter from persisting a score the SQL columns would wrap.
func checkRange(e ledgerdomain.ScoreEntry) error {
	if e.BestScore > ledgerdomain.MaxScore {
		return fmt.Errorf("participant %s: %w", e.ParticipantID, ledgerdomain.ErrScoreTooLarge)
	}
	return nil
}
