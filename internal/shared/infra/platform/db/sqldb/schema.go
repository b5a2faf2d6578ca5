package sqldb

import (
	"context"
	"database/sql"
	"fmt"
)

var outboxSchema = map[Dialect][]string{
	Postgres: {
		`CREATE TABLE IF NOT EXISTS outbox_messages (
			id UUID PRIMARY KEY,
			type VARCHAR(100) NOT NULL,
			content TEXT NOT NULL,
			occurred_on TIMESTAMPTZ NOT NULL,
			processed_on TIMESTAMPTZ NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_outbox_pending ON outbox_messages (processed_on, occurred_on)`,
	},
	SQLite: {
		`CREATE TABLE IF NOT EXISTS outbox_messages (
			id TEXT PRIMARY KEY,
			type VARCHAR(100) NOT NULL,
			content TEXT NOT NULL,
			occurred_on TIMESTAMP NOT NULL,
			processed_on TIMESTAMP NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_outbox_pending ON outbox_messages (processed_on, occurred_on)`,
	},
}

// ExecSchema ejecuta las sentencias DDL en orden.
func ExecSchema(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// InitOutboxSchema crea la tabla outbox_messages si no existe.
func InitOutboxSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	return ExecSchema(ctx, db, outboxSchema[d])
}
