// Package repository implements attendee-ledger persistence. Two
// implementations exist: PostgreSQL via pgx, and an in-memory store used for
// local development and tests.
package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/doorlist/doorlist/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrSlugTaken is returned when an event slug is already in use.
var ErrSlugTaken = errors.New("slug already in use")

// ErrEventUnavailable is returned when registering for a draft or cancelled event.
var ErrEventUnavailable = errors.New("event is not open for registration")

// ErrDuplicateRegistration is returned when an email holds an active
// registration for the event.
var ErrDuplicateRegistration = errors.New("email already registered for this event")

// ErrCapacityExceeded is returned when an event has no remaining capacity.
// Callers should offer the waitlist.
var ErrCapacityExceeded = errors.New("event is at capacity")

// ErrAlreadyWaitlisted is returned when an email is already queued for the event.
var ErrAlreadyWaitlisted = errors.New("email already on the waitlist")

// ErrInvalidToken is returned when a cancel token does not match.
var ErrInvalidToken = errors.New("cancel token does not match")

// EventRepository handles persistence for events.
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetBySlug(ctx context.Context, slug string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	UpdateStatus(ctx context.Context, id string, status model.EventStatus) error
}

// AttendeeRepository handles persistence for the registration ledger.
//
// Register decides the outcome for one (event, email) pair and performs the
// matching durable mutation atomically: duplicate active registration,
// reactivation of a cancelled record, capacity rejection, or a fresh insert.
// The capacity count and insert are one atomic unit.
//
// Cancel is idempotent: cancelling an already-cancelled attendee succeeds
// with the already flag set and the record unchanged, so a repeated call
// never frees a second capacity slot.
type AttendeeRepository interface {
	Register(ctx context.Context, eventID, name, email string) (att *model.Attendee, reactivated bool, err error)
	Cancel(ctx context.Context, attendeeID, cancelToken string) (att *model.Attendee, already bool, err error)
	CheckIn(ctx context.Context, attendeeID string) (att *model.Attendee, already bool, err error)
	GetByID(ctx context.Context, attendeeID string) (*model.Attendee, error)
	ListActiveByEvent(ctx context.Context, eventID string) ([]model.Attendee, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Attendee, error)
	CountActive(ctx context.Context, eventID string) (int, error)
	CountCheckedIn(ctx context.Context, eventID string) (int, error)
	CheckinTimes(ctx context.Context, eventID string) ([]time.Time, error)
}

// WaitlistRepository handles persistence for per-event waitlists.
//
// PromoteOldest marks the oldest unnotified entry as notified and returns it,
// or returns (nil, nil) when no such entry exists. It never creates an
// attendee; promotion is advisory.
type WaitlistRepository interface {
	Join(ctx context.Context, eventID, name, email string) (entry *model.WaitlistEntry, position int, err error)
	Count(ctx context.Context, eventID string) (int, error)
	PromoteOldest(ctx context.Context, eventID string) (*model.WaitlistEntry, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.WaitlistEntry, error)
}

// newCancelToken generates the self-service cancellation secret assigned to
// every attendee at creation.
func newCancelToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
