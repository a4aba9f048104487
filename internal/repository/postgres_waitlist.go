package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doorlist/doorlist/internal/model"
)

const waitlistColumns = `id, event_id, name, email, notified, created_at`

// PostgresWaitlistRepository implements WaitlistRepository using PostgreSQL.
type PostgresWaitlistRepository struct {
	db *pgxpool.Pool
}

// NewPostgresWaitlistRepository constructs a PostgresWaitlistRepository.
func NewPostgresWaitlistRepository(db *pgxpool.Pool) *PostgresWaitlistRepository {
	return &PostgresWaitlistRepository{db: db}
}

// Join appends an entry to the event's waitlist and returns its 1-based
// queue position. Capacity is intentionally not consulted here; a caller may
// queue for an event that has a free slot.
func (r *PostgresWaitlistRepository) Join(ctx context.Context, eventID, name, email string) (*model.WaitlistEntry, int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var existing int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM waitlist WHERE event_id = $1 AND email = $2`,
		eventID, email,
	).Scan(&existing)
	if err != nil {
		return nil, 0, fmt.Errorf("check waitlist duplicate: %w", err)
	}
	if existing > 0 {
		err = ErrAlreadyWaitlisted
		return nil, 0, err
	}

	entry := &model.WaitlistEntry{
		ID:        uuid.New().String(),
		EventID:   eventID,
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO waitlist (id, event_id, name, email, notified, created_at)
		 VALUES ($1, $2, $3, $4, false, $5)`,
		entry.ID, entry.EventID, entry.Name, entry.Email, entry.CreatedAt,
	)
	if err != nil {
		// Two concurrent joins can both pass the count above; the
		// (event_id, email) constraint catches the loser here.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			err = ErrAlreadyWaitlisted
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("insert waitlist entry: %w", err)
	}

	// Position is defined by created_at ordering among entries for the event.
	var position int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM waitlist WHERE event_id = $1 AND created_at <= $2`,
		eventID, entry.CreatedAt,
	).Scan(&position)
	if err != nil {
		return nil, 0, fmt.Errorf("compute waitlist position: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit transaction: %w", err)
	}
	return entry, position, nil
}

// Count returns the number of waitlist entries for an event.
func (r *PostgresWaitlistRepository) Count(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM waitlist WHERE event_id = $1`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count waitlist: %w", err)
	}
	return n, nil
}

// PromoteOldest marks the oldest unnotified entry as notified, first-in
// first-out, at most one per call. Returns (nil, nil) when the waitlist has
// no unnotified entries.
func (r *PostgresWaitlistRepository) PromoteOldest(ctx context.Context, eventID string) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	err := r.db.QueryRow(ctx,
		`UPDATE waitlist SET notified = true
		 WHERE id = (
			SELECT id FROM waitlist
			WHERE event_id = $1 AND NOT notified
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+waitlistColumns,
		eventID,
	).Scan(&e.ID, &e.EventID, &e.Name, &e.Email, &e.Notified, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("promote waitlist entry: %w", err)
	}
	return &e, nil
}

// ListByEvent returns all waitlist entries in queue order.
func (r *PostgresWaitlistRepository) ListByEvent(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist
		 WHERE event_id = $1 ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	defer rows.Close()

	var entries []model.WaitlistEntry
	for rows.Next() {
		var e model.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.Name, &e.Email, &e.Notified, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
