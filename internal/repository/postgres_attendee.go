package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doorlist/doorlist/internal/model"
)

const attendeeColumns = `id, event_id, name, email, checked_in, checked_in_at, cancelled, cancel_token, created_at`

// PostgresAttendeeRepository implements AttendeeRepository using PostgreSQL.
type PostgresAttendeeRepository struct {
	db *pgxpool.Pool
}

// NewPostgresAttendeeRepository constructs a PostgresAttendeeRepository.
func NewPostgresAttendeeRepository(db *pgxpool.Pool) *PostgresAttendeeRepository {
	return &PostgresAttendeeRepository{db: db}
}

func scanAttendee(row pgx.Row) (*model.Attendee, error) {
	var a model.Attendee
	err := row.Scan(&a.ID, &a.EventID, &a.Name, &a.Email, &a.CheckedIn, &a.CheckedInAt, &a.Cancelled, &a.CancelToken, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan attendee: %w", err)
	}
	return &a, nil
}

// Register performs the registration decision inside a single transaction.
//
// SELECT ... FOR UPDATE on the event row serialises concurrent registrations
// for the same event: without it, two transactions can both count free
// capacity before either inserts, and the event overbooks. Holding the row
// lock makes the count-then-insert one atomic unit.
//
// Reactivation of a cancelled record deliberately skips the capacity count;
// a reactivated attendee may push an event slightly past nominal capacity.
func (r *PostgresAttendeeRepository) Register(ctx context.Context, eventID, name, email string) (*model.Attendee, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock the event row and gate on publication status.
	var capacity int
	var status model.EventStatus
	err = tx.QueryRow(ctx,
		`SELECT capacity, status FROM events WHERE id = $1 FOR UPDATE`,
		eventID,
	).Scan(&capacity, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("lock event row: %w", err)
	}
	if status != model.EventStatusPublished {
		err = ErrEventUnavailable
		return nil, false, err
	}

	// Look up any prior record for this email, cancelled or not.
	existing, lookupErr := scanAttendee(tx.QueryRow(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE event_id = $1 AND email = $2
		 ORDER BY created_at DESC LIMIT 1`,
		eventID, email,
	))
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		err = lookupErr
		return nil, false, err
	}

	if existing != nil {
		if !existing.Cancelled {
			err = ErrDuplicateRegistration
			return nil, false, err
		}
		// Reactivate: clear the cancellation, reset check-in state, take the
		// new name. The cancel token is immutable.
		_, err = tx.Exec(ctx,
			`UPDATE attendees
			 SET cancelled = false, checked_in = false, checked_in_at = NULL, name = $2
			 WHERE id = $1`,
			existing.ID, name,
		)
		if err != nil {
			return nil, false, fmt.Errorf("reactivate attendee: %w", err)
		}
		if err = tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit transaction: %w", err)
		}
		existing.Cancelled = false
		existing.CheckedIn = false
		existing.CheckedInAt = nil
		existing.Name = name
		return existing, true, nil
	}

	// Fresh registration: the count and insert happen under the event lock.
	var active int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendees WHERE event_id = $1 AND NOT cancelled`,
		eventID,
	).Scan(&active)
	if err != nil {
		return nil, false, fmt.Errorf("count active attendees: %w", err)
	}
	if active >= capacity {
		err = ErrCapacityExceeded
		return nil, false, err
	}

	token, err := newCancelToken()
	if err != nil {
		return nil, false, fmt.Errorf("generate cancel token: %w", err)
	}
	att := &model.Attendee{
		ID:          uuid.New().String(),
		EventID:     eventID,
		Name:        name,
		Email:       email,
		CancelToken: token,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO attendees (id, event_id, name, email, checked_in, checked_in_at, cancelled, cancel_token, created_at)
		 VALUES ($1, $2, $3, $4, false, NULL, false, $5, $6)`,
		att.ID, att.EventID, att.Name, att.Email, att.CancelToken, att.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert attendee: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}
	return att, false, nil
}

// Cancel marks an attendee cancelled after verifying the cancel token. The
// conditional update makes repeated cancellation a no-op reported via the
// second return, so one registration frees at most one capacity slot.
func (r *PostgresAttendeeRepository) Cancel(ctx context.Context, attendeeID, cancelToken string) (*model.Attendee, bool, error) {
	att, err := r.GetByID(ctx, attendeeID)
	if err != nil {
		return nil, false, err
	}
	if att.CancelToken != cancelToken {
		return nil, false, ErrInvalidToken
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE attendees SET cancelled = true WHERE id = $1 AND NOT cancelled`,
		attendeeID)
	if err != nil {
		return nil, false, fmt.Errorf("cancel attendee: %w", err)
	}
	att.Cancelled = true
	return att, tag.RowsAffected() == 0, nil
}

// CheckIn flips checked_in true-once and stamps checked_in_at. Calling it on
// an already checked-in attendee is a no-op reported via the second return.
func (r *PostgresAttendeeRepository) CheckIn(ctx context.Context, attendeeID string) (*model.Attendee, bool, error) {
	// The conditional update makes concurrent check-ins race-free: only one
	// caller flips the flag, everyone else observes the no-op path.
	tag, err := r.db.Exec(ctx,
		`UPDATE attendees SET checked_in = true, checked_in_at = $2
		 WHERE id = $1 AND NOT checked_in`,
		attendeeID, time.Now().UTC(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("check in attendee: %w", err)
	}
	att, err := r.GetByID(ctx, attendeeID)
	if err != nil {
		return nil, false, err
	}
	return att, tag.RowsAffected() == 0, nil
}

// GetByID returns a single attendee or ErrNotFound.
func (r *PostgresAttendeeRepository) GetByID(ctx context.Context, attendeeID string) (*model.Attendee, error) {
	return scanAttendee(r.db.QueryRow(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE id = $1`, attendeeID))
}

func (r *PostgresAttendeeRepository) listByQuery(ctx context.Context, query string, args ...any) ([]model.Attendee, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	var attendees []model.Attendee
	for rows.Next() {
		var a model.Attendee
		if err := rows.Scan(&a.ID, &a.EventID, &a.Name, &a.Email, &a.CheckedIn, &a.CheckedInAt, &a.Cancelled, &a.CancelToken, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}

// ListActiveByEvent returns non-cancelled attendees, newest first.
func (r *PostgresAttendeeRepository) ListActiveByEvent(ctx context.Context, eventID string) ([]model.Attendee, error) {
	return r.listByQuery(ctx,
		`SELECT `+attendeeColumns+` FROM attendees
		 WHERE event_id = $1 AND NOT cancelled
		 ORDER BY created_at DESC`, eventID)
}

// ListByEvent returns every attendee record including cancelled ones, in
// registration order. Used by the CSV export.
func (r *PostgresAttendeeRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Attendee, error) {
	return r.listByQuery(ctx,
		`SELECT `+attendeeColumns+` FROM attendees
		 WHERE event_id = $1
		 ORDER BY created_at ASC`, eventID)
}

// CountActive counts non-cancelled attendees.
func (r *PostgresAttendeeRepository) CountActive(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendees WHERE event_id = $1 AND NOT cancelled`,
		eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active attendees: %w", err)
	}
	return n, nil
}

// CountCheckedIn counts non-cancelled attendees that have checked in.
func (r *PostgresAttendeeRepository) CountCheckedIn(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendees WHERE event_id = $1 AND NOT cancelled AND checked_in`,
		eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count checked-in attendees: %w", err)
	}
	return n, nil
}

// CheckinTimes returns check-in timestamps for non-cancelled attendees in
// chronological order, for caller-side visualization.
func (r *PostgresAttendeeRepository) CheckinTimes(ctx context.Context, eventID string) ([]time.Time, error) {
	rows, err := r.db.Query(ctx,
		`SELECT checked_in_at FROM attendees
		 WHERE event_id = $1 AND NOT cancelled AND checked_in
		 ORDER BY checked_in_at ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list checkin times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan checkin time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}
