package ledgermigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating ledger_entries and ledger_control tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS ledger_entries (
					participant_id VARCHAR(128) PRIMARY KEY,
					best_score BIGINT NOT NULL CHECK (best_score > 0),
					submitted_at TIMESTAMPTZ NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_ledger_entries_rank
					ON ledger_entries (best_score DESC, submitted_at ASC, participant_id ASC);
				CREATE INDEX IF NOT EXISTS idx_ledger_entries_submitted_at
					ON ledger_entries (submitted_at);
			`); err != nil {
				return fmt.Errorf("failed to create ledger_entries table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS ledger_control (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					paused BOOLEAN NOT NULL DEFAULT FALSE,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				INSERT INTO ledger_control (id, paused) VALUES (1, FALSE)
				ON CONFLICT (id) DO NOTHING;
			`); err != nil {
				return fmt.Errorf("failed to create ledger_control table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping ledger tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DROP TABLE IF EXISTS ledger_control;
				DROP TABLE IF EXISTS ledger_entries;
			`); err != nil {
				return fmt.Errorf("failed to drop ledger tables: %w", err)
			}
			return nil
		})
	})
}
