//go:build integration

package testutils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	ledgerqueue "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/queue"
	ledgerdb "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/repositories"
	ledgermigrations "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/score-ledger/integration_tests/containers"
)

// TestEnvironment holds the containers and connections shared by a test package.
type TestEnvironment struct {
	PgContainer   *postgres.PostgresContainer
	NatsContainer testcontainers.Container
	PostgresDSN   string
	NatsURL       string
	DB            *bun.DB
	NatsConn      *nats.Conn
	JetStream     jetstream.JetStream
}

// NewTestEnvironment starts Postgres and NATS and migrates the ledger and
// job queue schemas.
func NewTestEnvironment(ctx context.Context) (*TestEnvironment, error) {
	env := &TestEnvironment{}

	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		return nil, err
	}
	env.PgContainer, env.PostgresDSN = pgContainer, dsn

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		env.Terminate(ctx)
		return nil, err
	}
	env.NatsContainer, env.NatsURL = natsContainer, natsURL

	if env.DB, err = ledgerdb.OpenPostgres(dsn); err != nil {
		env.Terminate(ctx)
		return nil, err
	}
	if err := runMigrations(ctx, env.DB, dsn); err != nil {
		env.Terminate(ctx)
		return nil, err
	}

	if env.NatsConn, err = nats.Connect(natsURL, nats.Timeout(10*time.Second)); err != nil {
		env.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if env.JetStream, err = jetstream.New(env.NatsConn); err != nil {
		env.Terminate(ctx)
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return env, nil
}

func runMigrations(ctx context.Context, db *bun.DB, dsn string) error {
	migrator := migrate.NewMigrator(db, ledgermigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run ledger migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect for River migrations: %w", err)
	}
	defer pool.Close()
	return ledgerqueue.Migrate(ctx, pool)
}

// ResetLedgerTables empties the ledger tables and clears the pause flag.
func (env *TestEnvironment) ResetLedgerTables(ctx context.Context) error {
	_, err := env.DB.ExecContext(ctx, `
		TRUNCATE TABLE ledger_entries;
		UPDATE ledger_control SET paused = FALSE;
	`)
	return err
}

// ResetStream purges all messages from the named stream if it exists.
func (env *TestEnvironment) ResetStream(ctx context.Context, name string) error {
	stream, err := env.JetStream.Stream(ctx, name)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return stream.Purge(ctx)
}

// Terminate closes connections and stops the containers.
func (env *TestEnvironment) Terminate(ctx context.Context) {
	if env.NatsConn != nil {
		env.NatsConn.Close()
	}
	if env.DB != nil {
		_ = env.DB.Close()
	}
	for _, c := range []testcontainers.Container{env.natsContainer(), env.pgContainer()} {
		if c == nil {
			continue
		}
		if err := c.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}
}

func (env *TestEnvironment) natsContainer() testcontainers.Container {
	if env.NatsContainer == nil {
		return nil
	}
	return env.NatsContainer
}

func (env *TestEnvironment) pgContainer() testcontainers.Container {
	if env.PgContainer == nil {
		return nil
	}
	return env.PgContainer
}
