package ledgerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ScoreEntryRow is the ledger_entries table.
type ScoreEntryRow struct {
	bun.BaseModel `bun:"table:ledger_entries,alias:le"`

	ParticipantID string    `bun:"participant_id,pk"`
	BestScore     int64     `bun:"best_score,notnull"`
	SubmittedAt   time.Time `bun:"submitted_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *ScoreEntryRow) toDomain() ledgerdomain.ScoreEntry {
	return ledgerdomain.ScoreEntry{
		ParticipantID: ledgerdomain.ParticipantID(r.ParticipantID),
		BestScore:     uint64(r.BestScore),
		SubmittedAt:   r.SubmittedAt.UTC(),
	}
}

func rowFromDomain(e ledgerdomain.ScoreEntry) *ScoreEntryRow {
	return &ScoreEntryRow{
		ParticipantID: string(e.ParticipantID),
		BestScore:     int64(e.BestScore),
		SubmittedAt:   e.SubmittedAt.UTC(),
	}
}

// ControlRow is the single-row ledger_control table.
type ControlRow struct {
	bun.BaseModel `bun:"table:ledger_control,alias:lc"`

	ID        int       `bun:"id,pk"`
	Paused    bool      `bun:"paused,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

const controlRowID = 1

// BunStore is the Postgres adapter. CompareAndSwap locks the row with
// SELECT ... FOR UPDATE inside a transaction.
type BunStore struct {
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

// NewBunStore wraps an open bun database.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// OpenPostgres opens a bun database on the pgdriver connector.
func OpenPostgres(dsn string) (*bun.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// DB exposes the underlying handle for migrations.
func (s *BunStore) DB() *bun.DB { return s.db }

func (s *BunStore) Get(ctx context.Context, id ledgerdomain.ParticipantID) (ledgerdomain.ScoreEntry, error) {
	row := new(ScoreEntryRow)
	err := s.db.NewSelect().
		Model(row).
		Where("participant_id = ?", string(id)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledgerdomain.ScoreEntry{}, ErrNotFound
		}
		return ledgerdomain.ScoreEntry{}, fmt.Errorf("failed to get score entry: %w", err)
	}
	return row.toDomain(), nil
}

func (s *BunStore) Insert(ctx context.Context, entry ledgerdomain.ScoreEntry) error {
	if err := checkRange(entry); err != nil {
		return err
	}
	res, err := s.db.NewInsert().
		Model(rowFromDomain(entry)).
		On("CONFLICT (participant_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert score entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *BunStore) CompareAndSwap(ctx context.Context, entry ledgerdomain.ScoreEntry, expectedBest uint64) error {
	if err := checkRange(entry); err != nil {
		return err
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		current := new(ScoreEntryRow)
		err := tx.NewSelect().
			Model(current).
			Where("participant_id = ?", string(entry.ParticipantID)).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock score entry: %w", err)
		}
		if uint64(current.BestScore) != expectedBest {
			return ErrConflict
		}

		row := rowFromDomain(entry)
		if _, err := tx.NewUpdate().
			Model(row).
			Column("best_score", "submitted_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to update score entry: %w", err)
		}
		return nil
	})
}

func (s *BunStore) Delete(ctx context.Context, id ledgerdomain.ParticipantID) error {
	res, err := s.db.NewDelete().
		Model((*ScoreEntryRow)(nil)).
		Where("participant_id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete score entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BunStore) ScanSorted(ctx context.Context) ([]ledgerdomain.ScoreEntry, error) {
	var rows []ScoreEntryRow
	err := s.db.NewSelect().
		Model(&rows).
		OrderExpr("best_score DESC, submitted_at ASC, participant_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan score entries: %w", err)
	}
	out := make([]ledgerdomain.ScoreEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

func (s *BunStore) Count(ctx context.Context) (uint64, error) {
	n, err := s.db.NewSelect().Model((*ScoreEntryRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count score entries: %w", err)
	}
	return uint64(n), nil
}

func (s *BunStore) Paused(ctx context.Context) (bool, error) {
	row := new(ControlRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", controlRowID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read ledger control: %w", err)
	}
	return row.Paused, nil
}

func (s *BunStore) SetPaused(ctx context.Context, paused bool) error {
	row := &ControlRow{ID: controlRowID, Paused: paused, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("paused = EXCLUDED.paused").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to write ledger control: %w", err)
	}
	return nil
}

func (s *BunStore) Close() error { return s.db.Close() }
