package ledgerdb

import (
	"context"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
)

// Store is the persistence adapter behind the ledger. Implementations must make
// Insert and CompareAndSwap atomic for a single participant.
type Store interface {
	// Get returns the entry for id, or ErrNotFound.
	Get(ctx context.Context, id ledgerdomain.ParticipantID) (ledgerdomain.ScoreEntry, error)

	// Insert creates an entry. It fails with ErrAlreadyExists if one is present.
	Insert(ctx context.Context, entry ledgerdomain.ScoreEntry) error

	// CompareAndSwap overwrites the entry only while its stored best score still
	// equals expectedBest. It fails with ErrConflict otherwise, ErrNotFound if absent.
	CompareAndSwap(ctx context.Context, entry ledgerdomain.ScoreEntry, expectedBest uint64) error

	// Delete removes an entry. It completes the point get/put/delete contract every
	// adapter implements; the ledger itself never removes entries and does not call it.
	Delete(ctx context.Context, id ledgerdomain.ParticipantID) error

	// ScanSorted returns every entry in rank order.
	ScanSorted(ctx context.Context) ([]ledgerdomain.ScoreEntry, error)

	// Count returns the number of stored entries. Load checks it against the scan.
	Count(ctx context.Context) (uint64, error)

	ControlStore

	Close() error
}

// ControlStore persists the submission gate state.
type ControlStore interface {
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
}
