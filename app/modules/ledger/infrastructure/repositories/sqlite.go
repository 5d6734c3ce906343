package ledgerdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteEntry is the embedded-store row for a score entry.
type SQLiteEntry struct {
	ParticipantID string    `gorm:"primaryKey;size:128"`
	BestScore     int64     `gorm:"not null;index:idx_sqlite_rank,priority:1,sort:desc"`
	SubmittedAt   time.Time `gorm:"not null;index:idx_sqlite_rank,priority:2"`
}

func (SQLiteEntry) TableName() string { return "ledger_entries" }

// SQLiteControl is the single control row.
type SQLiteControl struct {
	ID        uint `gorm:"primaryKey"`
	Paused    bool `gorm:"not null"`
	UpdatedAt time.Time
}

func (SQLiteControl) TableName() string { return "ledger_control" }

// SQLiteStore is a single-file adapter for local and edge deployments.
type SQLiteStore struct {
	db *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and migrates its schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps ":memory:" databases shared.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&SQLiteEntry{}, &SQLiteControl{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id ledgerdomain.ParticipantID) (ledgerdomain.ScoreEntry, error) {
	var row SQLiteEntry
	err := s.db.WithContext(ctx).Where("participant_id = ?", string(id)).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledgerdomain.ScoreEntry{}, ErrNotFound
		}
		return ledgerdomain.ScoreEntry{}, fmt.Errorf("failed to get score entry: %w", err)
	}
	return sqliteToDomain(row), nil
}

func (s *SQLiteStore) Insert(ctx context.Context, entry ledgerdomain.ScoreEntry) error {
	if err := checkRange(entry); err != nil {
		return err
	}
	row := SQLiteEntry{
		ParticipantID: string(entry.ParticipantID),
		BestScore:     int64(entry.BestScore),
		SubmittedAt:   entry.SubmittedAt.UTC(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to insert score entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *SQLiteStore) CompareAndSwap(ctx context.Context, entry ledgerdomain.ScoreEntry, expectedBest uint64) error {
	if err := checkRange(entry); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&SQLiteEntry{}).
			Where("participant_id = ? AND best_score = ?", string(entry.ParticipantID), int64(expectedBest)).
			Updates(map[string]any{
				"best_score":   int64(entry.BestScore),
				"submitted_at": entry.SubmittedAt.UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update score entry: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var n int64
		if err := tx.Model(&SQLiteEntry{}).Where("participant_id = ?", string(entry.ParticipantID)).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check score entry: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, id ledgerdomain.ParticipantID) error {
	res := s.db.WithContext(ctx).Where("participant_id = ?", string(id)).Delete(&SQLiteEntry{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete score entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ScanSorted(ctx context.Context) ([]ledgerdomain.ScoreEntry, error) {
	var rows []SQLiteEntry
	if err := s.db.WithContext(ctx).Order("best_score DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to scan score entries: %w", err)
	}
	out := make([]ledgerdomain.ScoreEntry, len(rows))
	for i, r := range rows {
		out[i] = sqliteToDomain(r)
	}
	// Timestamps are stored as text; settle ties in Go.
	sort.SliceStable(out, func(i, j int) bool { return ledgerdomain.Ranks(out[i], out[j]) })
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&SQLiteEntry{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count score entries: %w", err)
	}
	return uint64(n), nil
}

func (s *SQLiteStore) Paused(ctx context.Context) (bool, error) {
	var row SQLiteControl
	err := s.db.WithContext(ctx).Where("id = ?", controlRowID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read ledger control: %w", err)
	}
	return row.Paused, nil
}

func (s *SQLiteStore) SetPaused(ctx context.Context, paused bool) error {
	row := SQLiteControl{ID: controlRowID, Paused: paused, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"paused", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to write ledger control: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteToDomain(r SQLiteEntry) ledgerdomain.ScoreEntry {
	return ledgerdomain.ScoreEntry{
		ParticipantID: ledgerdomain.ParticipantID(r.ParticipantID),
		BestScore:     uint64(r.BestScore),
		SubmittedAt:   r.SubmittedAt.UTC(),
	}
}
