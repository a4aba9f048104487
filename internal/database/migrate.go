package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// statements are idempotent and safe to run on every startup.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id          UUID PRIMARY KEY,
		slug        TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		capacity    INT NOT NULL CHECK (capacity >= 0),
		status      TEXT NOT NULL DEFAULT 'draft',
		owner_id    TEXT,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attendees (
		id            UUID PRIMARY KEY,
		event_id      UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		checked_in    BOOLEAN NOT NULL DEFAULT false,
		checked_in_at TIMESTAMPTZ,
		cancelled     BOOLEAN NOT NULL DEFAULT false,
		cancel_token  TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	// One active registration per email per event; cancelled rows may repeat.
	`CREATE UNIQUE INDEX IF NOT EXISTS attendees_active_email_idx
		ON attendees (event_id, email) WHERE NOT cancelled`,
	`CREATE INDEX IF NOT EXISTS attendees_event_idx ON attendees (event_id)`,
	`CREATE TABLE IF NOT EXISTS waitlist (
		id         UUID PRIMARY KEY,
		event_id   UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL,
		notified   BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (event_id, email)
	)`,
	`CREATE INDEX IF NOT EXISTS waitlist_event_created_idx
		ON waitlist (event_id, created_at)`,
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
