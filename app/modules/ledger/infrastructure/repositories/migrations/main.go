package ledgermigrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the ledger schema migrations.
var Migrations = migrate.NewMigrations()
