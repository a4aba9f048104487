// Package model defines the core domain types for the event RSVP platform.
package model

import "time"

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

// Event represents an event created by an organizer.
type Event struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Capacity    int         `json:"capacity"`
	Status      EventStatus `json:"status"`
	OwnerID     *string     `json:"owner_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsOpen reports whether the event accepts registrations.
func (e *Event) IsOpen() bool {
	return e.Status == EventStatusPublished
}

// OwnedBy reports whether userID may manage this event. Events without an
// owner are manageable by anyone who knows the slug.
func (e *Event) OwnedBy(userID string) bool {
	if e.OwnerID == nil {
		return true
	}
	return userID != "" && *e.OwnerID == userID
}

// Attendee is a registration record scoped to one event.
//
// (event_id, email) is unique among non-cancelled attendees; a cancelled
// record may be reactivated into an active one by re-registering. The cancel
// token is assigned at creation and never rotated.
type Attendee struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	Cancelled   bool       `json:"cancelled"`
	CancelToken string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
}

// WaitlistEntry is a queue slot for a full event. Ordering by created_at
// defines queue position.
type WaitlistEntry struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Capacity    int    `json:"capacity"`
}

// RegisterRequest is the payload for registering for an event.
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// WaitlistRequest is the payload for joining an event's waitlist.
type WaitlistRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CancelRequest carries the self-service cancellation secret.
type CancelRequest struct {
	CancelToken string `json:"cancel_token"`
}

// QRCheckinRequest carries a scanned QR payload.
type QRCheckinRequest struct {
	Payload string `json:"payload"`
}

// RegisterResponse is the outcome of a successful registration. The cancel
// token is surfaced here once; it is never included in attendee listings.
type RegisterResponse struct {
	Attendee    *Attendee `json:"attendee"`
	QRPayload   string    `json:"qr_payload"`
	CancelToken string    `json:"cancel_token"`
	Reactivated bool      `json:"reactivated"`
}

// WaitlistResponse reports the 1-based queue position after a join.
type WaitlistResponse struct {
	Entry    *WaitlistEntry `json:"entry"`
	Position int            `json:"position"`
}

// CheckinResponse is the outcome of a check-in. AlreadyCheckedIn marks the
// idempotent no-op case.
type CheckinResponse struct {
	Attendee         *Attendee `json:"attendee"`
	AlreadyCheckedIn bool      `json:"already_checked_in"`
}

// Dashboard aggregates the organizer view for one event. Cancelled attendees
// are excluded from the listing and all counts.
type Dashboard struct {
	Event         *Event      `json:"event"`
	Attendees     []Attendee  `json:"attendees"`
	Total         int         `json:"total"`
	CheckedIn     int         `json:"checked_in"`
	WaitlistCount int         `json:"waitlist_count"`
	CheckinTimes  []time.Time `json:"checkin_times"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
