package sqlstore

import (
	"context"
	"database/sql"

	"github.com/davicafu/catalogsync/internal/shared/infra/platform/db/sqldb"
)

var catalogSchema = map[sqldb.Dialect][]string{
	sqldb.Postgres: {
		`CREATE TABLE IF NOT EXISTS promotions (
			id BIGSERIAL PRIMARY KEY,
			discount_percent NUMERIC(5,2) NOT NULL,
			starts_at TIMESTAMPTZ NOT NULL,
			ends_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			genre VARCHAR(100) NOT NULL,
			price NUMERIC(18,2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			promotion_id BIGINT NULL REFERENCES promotions(id),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ix_games_name ON games (name)`,
		`CREATE INDEX IF NOT EXISTS ix_games_promotion_id ON games (promotion_id)`,
	},
	sqldb.SQLite: {
		`CREATE TABLE IF NOT EXISTS promotions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			discount_percent TEXT NOT NULL,
			starts_at TIMESTAMP NOT NULL,
			ends_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(100) NOT NULL,
			genre VARCHAR(100) NOT NULL,
			price TEXT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			promotion_id INTEGER NULL REFERENCES promotions(id),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ix_games_name ON games (name)`,
		`CREATE INDEX IF NOT EXISTS ix_games_promotion_id ON games (promotion_id)`,
	},
}

// InitSchema crea las tablas del catálogo y la del outbox.
func InitSchema(ctx context.Context, db *sql.DB, d sqldb.Dialect) error {
	if err := sqldb.ExecSchema(ctx, db, catalogSchema[d]); err != nil {
		return err
	}
	return sqldb.InitOutboxSchema(ctx, db, d)
}
