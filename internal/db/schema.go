package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            SERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS blogs (
		id      SERIAL PRIMARY KEY,
		title   TEXT NOT NULL,
		author  TEXT NOT NULL DEFAULT '',
		url     TEXT NOT NULL,
		likes   INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
		user_id INTEGER REFERENCES users (id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS blogs_user_id_idx ON blogs (user_id)`,
}

// EnsureSchema creates the tables used by the service when they do not exist yet.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
