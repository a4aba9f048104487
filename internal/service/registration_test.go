package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/doorlist/doorlist/internal/model"
	"github.com/doorlist/doorlist/internal/qr"
	"github.com/doorlist/doorlist/internal/repository"
)

type env struct {
	store        *repository.MemoryStore
	events       *EventService
	registration *RegistrationService
	checkin      *CheckinService
	dashboard    *DashboardService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := repository.NewMemoryStore()
	log := zap.NewNop()
	return &env{
		store:        store,
		events:       NewEventService(store.Events()),
		registration: NewRegistrationService(store.Events(), store.Attendees(), store.Waitlist(), log),
		checkin:      NewCheckinService(store.Attendees(), log),
		dashboard:    NewDashboardService(store.Events(), store.Attendees(), store.Waitlist()),
	}
}

// publishedEvent seeds an event that accepts registrations.
func (e *env) publishedEvent(t *testing.T, slug string, capacity int, ownerID string) *model.Event {
	t.Helper()
	ctx := context.Background()
	event, err := e.events.Create(ctx, model.CreateEventRequest{
		Slug:     slug,
		Name:     "Test Event",
		Capacity: capacity,
	}, ownerID)
	require.NoError(t, err)
	event, err = e.events.Publish(ctx, slug, ownerID)
	require.NoError(t, err)
	return event
}

func TestRegister_Success(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.publishedEvent(t, "meetup", 10, "")

	resp, err := e.registration.Register(ctx, "meetup", model.RegisterRequest{
		Name:  "Ada Lovelace",
		Email: "  Ada@Example.COM ",
	})
	require.NoError(t, err)

	assert.False(t, resp.Reactivated)
	assert.NotEmpty(t, resp.Attendee.ID)
	assert.Equal(t, "ada@example.com", resp.Attendee.Email, "email should be normalized")
	assert.NotEmpty(t, resp.CancelToken)
	assert.False(t, resp.Attendee.CheckedIn)

	payload, err := qr.Decode(resp.QRPayload)
	require.NoError(t, err)
	assert.Equal(t, resp.Attendee.ID, payload.AttendeeID)
	assert.Equal(t, resp.Attendee.EventID, payload.EventID)
}

func TestRegister_EventNotOpen(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.events.Create(ctx, model.CreateEventRequest{Slug: "draft-event", Name: "Draft", Capacity: 5}, "")
	require.NoError(t, err)

	_, err = e.registration.Register(ctx, "draft-event", model.RegisterRequest{Name: "A", Email: "a@b.io"})
	assert.ErrorIs(t, err, repository.ErrEventUnavailable)

	e.publishedEvent(t, "gone-event", 5, "")
	_, err = e.events.Cancel(ctx, "gone-event", "")
	require.NoError(t, err)

	_, err = e.registration.Register(ctx, "gone-event", model.RegisterRequest{Name: "A", Email: "a@b.io"})
	assert.ErrorIs(t, err, repository.ErrEventUnavailable)
}

func TestRegister_UnknownSlug(t *testing.T) {
	e := newEnv(t)

	_, err := e.registration.Register(context.Background(), "nope", model.RegisterRequest{Name: "A", Email: "a@b.io"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRegister_Duplicate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.publishedEvent(t, "meetup", 10, "")

	_, err := e.registration.Register(ctx, "meetup", model.RegisterRequest{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	// Same email, different case and name: still a duplicate.
	_, err = e.registration.Register(ctx, "meetup", model.RegisterRequest{Name: "Someone Else", Email: "ADA@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateRegistration)
}

func TestRegister_CapacityExceeded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	event := e.publishedEvent(t, "small", 2, "")

	for i := 0; i < 2; i++ {
		_, err := e.registration.Register(ctx, "small", model.RegisterRequest{
			Name:  fmt.Sprintf("Guest %d", i),
			Email: fmt.Sprintf("guest%d@example.com", i),
		})
		require.NoError(t, err)
	}

	_, err := e.registration.Register(ctx, "small", model.RegisterRequest{Name: "Late", Email: "late@example.com"})
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	// Fresh registrations never push active count past capacity.
	active, err := e.store.Attendees().CountActive(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, active)
}

func TestRegister_ReactivatesCancelled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.publishedEvent(t, "meetup", 10, "")

	first, err := e.registration.Register(ctx, "meetup", model.RegisterRequest{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	// Check in, then cancel.
	_, err = e.checkin.CheckIn(ctx, first.Attendee.ID)
	require.NoError(t, err)
	require.NoError(t, e.registration.Cancel(ctx, first.Attendee.ID, first.CancelToken))

	second, err := e.registration.Register(ctx, "meetup", model.RegisterRequest{Name: "Ada L.", Email: "ada@example.com"})
	require.NoError(t, err)

	assert.True(t, second.Reactivated)
	assert.Equal(t, first.Attendee.ID, second.Attendee.ID, "reactivation reuses the record")
	assert.Equal(t, "Ada L.", second.Attendee.Name, "name is updated")
	assert.False(t, second.Attendee.CheckedIn, "check-in state is reset")
	assert.Nil(t, second.Attendee.CheckedInAt)
	assert.False(t, second.Attendee.Cancelled)
	assert.Equal(t, first.CancelToken, second.CancelToken, "cancel token is immutable")
	assert.NotEqual(t, first.QRPayload, second.QRPayload, "payload reflects the new name")
}

func TestRegister_ReactivationSkipsCapacityCheck(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	event := e.publishedEvent(t, "tiny", 1, "")

	a, err := e.registration.Register(ctx, "tiny", model.RegisterRequest{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	require.NoError(t, e.registration.Cancel(ctx, a.Attendee.ID, a.CancelToken))

	// B takes the freed slot.
	_, err = e.registration.Register(ctx, "tiny", model.RegisterRequest{Name: "B", Email: "b@example.com"})
	require.NoError(t, err)

	// A reactivates even though the event is nominally full again.
	back, err := e.registration.Register(ctx, "tiny", model.RegisterRequest{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	assert.True(t, back.Reactivated)

	active, err := e.store.Attendees().CountActive(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, active, "reactivation may exceed nominal capacity")
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.publishedEvent(t, "meetup", 10, "")

	tests := []struct {
		name string
		req  model.RegisterRequest
	}{
		{"missing name", model.RegisterRequest{Email: "a@b.io"}},
		{"missing email", model.RegisterRequest{Name: "A"}},
		{"bad email", model.RegisterRequest{Name: "A", Email: "not-an-email"}},
		{"email without dot", model.RegisterRequest{Name: "A", Email: "a@host"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.registration.Register(ctx, "meetup", tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCancel_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.publishedEvent(t, "meetup", 10, "")

	resp, err := e.registration.Register(ctx, "meetup", model.RegisterRequest{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	err = e.registration.Cancel(ctx, "missing-id", resp.CancelToken)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = e.registration.Cancel(ctx, resp.Attendee.ID, "wrong-token")
	assert.ErrorIs(t, err, repository.ErrInvalidToken)

	att, err := e.store.Attendees().GetByID(ctx, resp.Attendee.ID)
	require.NoError(t, err)
	assert.False(t, att.Cancelled, "failed cancellation must not mutate")
}

func TestJoinWaitlist_Positions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.publishedEvent(t, "meetup", 1, "")

	for i := 1; i <= 3; i++ {
		resp, err := e.registration.JoinWaitlist(ctx, "meetup", model.WaitlistRequest{
			Name:  fmt.Sprintf("Waiter %d", i),
			Email: fmt.Sprintf("wait%d@example.com", i),
		})
		require.NoError(t, err)
		assert.Equal(t, i, resp.Position, "Nth joiner gets position N")
		assert.False(t, resp.Entry.Notified)
	}

	_, err := e.registration.JoinWaitlist(ctx, "meetup", model.WaitlistRequest{Name: "Again", Email: "wait1@example.com"})
	assert.ErrorIs(t, err, repository.ErrAlreadyWaitlisted)
}

func TestJoinWaitlist_DoesNotCheckCapacity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.publishedEvent(t, "roomy", 100, "")

	// Plenty of seats free, yet the join is accepted.
	resp, err := e.registration.JoinWaitlist(ctx, "roomy", model.WaitlistRequest{Name: "Eager", Email: "eager@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Position)
}

func TestCancel_PromotesOldestWaitlisted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	event := e.publishedEvent(t, "meetup", 2, "")

	a, err := e.registration.Register(ctx, "meetup", model.RegisterRequest{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	b, err := e.registration.Register(ctx, "meetup", model.RegisterRequest{Name: "B", Email: "b@example.com"})
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		_, err := e.registration.JoinWaitlist(ctx, "meetup", model.WaitlistRequest{
			Name:  fmt.Sprintf("W%d", i),
			Email: fmt.Sprintf("w%d@example.com", i),
		})
		require.NoError(t, err)
	}

	require.NoError(t, e.registration.Cancel(ctx, a.Attendee.ID, a.CancelToken))

	entries, err := e.store.Waitlist().ListByEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Notified, "oldest entry is notified")
	assert.False(t, entries[1].Notified, "exactly one entry per cancellation")

	// Second cancellation notifies the next entry, never the first again.
	require.NoError(t, e.registration.Cancel(ctx, b.Attendee.ID, b.CancelToken))
	entries, err = e.store.Waitlist().ListByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, entries[0].Notified)
	assert.True(t, entries[1].Notified)
}

// Cancelling the same registration twice frees one slot, not two: the
// repeated call is a no-op and must not notify a second waitlist entry.
func TestCancel_RepeatDoesNotPromoteAgain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	event := e.publishedEvent(t, "meetup", 1, "")

	a, err := e.registration.Register(ctx, "meetup", model.RegisterRequest{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		_, err := e.registration.JoinWaitlist(ctx, "meetup", model.WaitlistRequest{
			Name:  fmt.Sprintf("W%d", i),
			Email: fmt.Sprintf("w%d@example.com", i),
		})
		require.NoError(t, err)
	}

	require.NoError(t, e.registration.Cancel(ctx, a.Attendee.ID, a.CancelToken))
	require.NoError(t, e.registration.Cancel(ctx, a.Attendee.ID, a.CancelToken))

	entries, err := e.store.Waitlist().ListByEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	notified := 0
	for _, entry := range entries {
		if entry.Notified {
			notified++
		}
	}
	assert.Equal(t, 1, notified, "one freed slot notifies one entry")
	assert.True(t, entries[0].Notified)
}

// Full walk through the capacity-1 scenario: register, reject, waitlist,
// cancel, observe the dashboard.
func TestCapacityOneScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	event := e.publishedEvent(t, "door", 1, "")

	a, err := e.registration.Register(ctx, "door", model.RegisterRequest{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = e.registration.Register(ctx, "door", model.RegisterRequest{Name: "B", Email: "b@example.com"})
	require.ErrorIs(t, err, repository.ErrCapacityExceeded)

	wl, err := e.registration.JoinWaitlist(ctx, "door", model.WaitlistRequest{Name: "B", Email: "b@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, wl.Position)

	require.NoError(t, e.registration.Cancel(ctx, a.Attendee.ID, a.CancelToken))

	dash, err := e.dashboard.Dashboard(ctx, "door", "")
	require.NoError(t, err)
	assert.Equal(t, 0, dash.Total, "no active attendees after cancellation")
	assert.Equal(t, 1, dash.WaitlistCount)

	entries, err := e.store.Waitlist().ListByEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Notified)

	cancelled, err := e.store.Attendees().GetByID(ctx, a.Attendee.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)
}

// Promotion failures must not fail the cancellation itself.
func TestCancel_PromotionFailureIsNonFatal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.publishedEvent(t, "meetup", 5, "")

	resp, err := e.registration.Register(ctx, "meetup", model.RegisterRequest{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)

	svc := NewRegistrationService(e.store.Events(), e.store.Attendees(), failingWaitlist{}, zap.NewNop())
	err = svc.Cancel(ctx, resp.Attendee.ID, resp.CancelToken)
	assert.NoError(t, err)

	att, err := e.store.Attendees().GetByID(ctx, resp.Attendee.ID)
	require.NoError(t, err)
	assert.True(t, att.Cancelled)
}

type failingWaitlist struct{}

func (failingWaitlist) Join(ctx context.Context, eventID, name, email string) (*model.WaitlistEntry, int, error) {
	return nil, 0, fmt.Errorf("waitlist store down")
}
func (failingWaitlist) Count(ctx context.Context, eventID string) (int, error) {
	return 0, fmt.Errorf("waitlist store down")
}
func (failingWaitlist) PromoteOldest(ctx context.Context, eventID string) (*model.WaitlistEntry, error) {
	return nil, fmt.Errorf("waitlist store down")
}
func (failingWaitlist) ListByEvent(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	return nil, fmt.Errorf("waitlist store down")
}
