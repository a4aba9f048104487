package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doorlist/doorlist/internal/model"
)

// MemoryStore is an in-memory implementation of the three repositories. It
// backs the "memory" database driver and the service-level tests. A single
// mutex serialises every operation, which closes the same capacity race the
// PostgreSQL store closes with its row lock.
type MemoryStore struct {
	mu        sync.Mutex
	events    map[string]*model.Event
	slugs     map[string]string // slug -> event id
	attendees map[string]*model.Attendee
	order     map[string][]string // event id -> attendee ids, insertion order
	waitlist  map[string][]*model.WaitlistEntry
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string]*model.Event),
		slugs:     make(map[string]string),
		attendees: make(map[string]*model.Attendee),
		order:     make(map[string][]string),
		waitlist:  make(map[string][]*model.WaitlistEntry),
	}
}

// Events returns the EventRepository view of the store.
func (s *MemoryStore) Events() EventRepository { return &memoryEvents{s} }

// Attendees returns the AttendeeRepository view of the store.
func (s *MemoryStore) Attendees() AttendeeRepository { return &memoryAttendees{s} }

// Waitlist returns the WaitlistRepository view of the store.
func (s *MemoryStore) Waitlist() WaitlistRepository { return &memoryWaitlist{s} }

func copyEvent(e *model.Event) *model.Event {
	c := *e
	if e.OwnerID != nil {
		owner := *e.OwnerID
		c.OwnerID = &owner
	}
	return &c
}

func copyAttendee(a *model.Attendee) *model.Attendee {
	c := *a
	if a.CheckedInAt != nil {
		t := *a.CheckedInAt
		c.CheckedInAt = &t
	}
	return &c
}

type memoryEvents struct{ s *MemoryStore }

func (r *memoryEvents) Create(ctx context.Context, event *model.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.slugs[event.Slug]; taken {
		return ErrSlugTaken
	}
	r.s.events[event.ID] = copyEvent(event)
	r.s.slugs[event.Slug] = event.ID
	return nil
}

func (r *memoryEvents) GetByID(ctx context.Context, id string) (*model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEvent(e), nil
}

func (r *memoryEvents) GetBySlug(ctx context.Context, slug string) (*model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.slugs[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEvent(r.s.events[id]), nil
}

func (r *memoryEvents) List(ctx context.Context) ([]model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	events := make([]model.Event, 0, len(r.s.events))
	for _, e := range r.s.events {
		events = append(events, *copyEvent(e))
	}
	// Newest first, matching the SQL ordering.
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

func (r *memoryEvents) UpdateStatus(ctx context.Context, id string, status model.EventStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	return nil
}

type memoryAttendees struct{ s *MemoryStore }

func (r *memoryAttendees) Register(ctx context.Context, eventID, name, email string) (*model.Attendee, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	event, ok := r.s.events[eventID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if event.Status != model.EventStatusPublished {
		return nil, false, ErrEventUnavailable
	}

	for _, id := range r.s.order[eventID] {
		a := r.s.attendees[id]
		if a.Email != email {
			continue
		}
		if !a.Cancelled {
			return nil, false, ErrDuplicateRegistration
		}
		// Reactivate the cancelled record; the cancel token is immutable.
		a.Cancelled = false
		a.CheckedIn = false
		a.CheckedInAt = nil
		a.Name = name
		return copyAttendee(a), true, nil
	}

	active := 0
	for _, id := range r.s.order[eventID] {
		if !r.s.attendees[id].Cancelled {
			active++
		}
	}
	if active >= event.Capacity {
		return nil, false, ErrCapacityExceeded
	}

	token, err := newCancelToken()
	if err != nil {
		return nil, false, err
	}
	att := &model.Attendee{
		ID:          uuid.New().String(),
		EventID:     eventID,
		Name:        name,
		Email:       email,
		CancelToken: token,
		CreatedAt:   time.Now().UTC(),
	}
	r.s.attendees[att.ID] = att
	r.s.order[eventID] = append(r.s.order[eventID], att.ID)
	return copyAttendee(att), false, nil
}

func (r *memoryAttendees) Cancel(ctx context.Context, attendeeID, cancelToken string) (*model.Attendee, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.attendees[attendeeID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if a.CancelToken != cancelToken {
		return nil, false, ErrInvalidToken
	}
	if a.Cancelled {
		return copyAttendee(a), true, nil
	}
	a.Cancelled = true
	return copyAttendee(a), false, nil
}

func (r *memoryAttendees) CheckIn(ctx context.Context, attendeeID string) (*model.Attendee, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.attendees[attendeeID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if a.CheckedIn {
		return copyAttendee(a), true, nil
	}
	now := time.Now().UTC()
	a.CheckedIn = true
	a.CheckedInAt = &now
	return copyAttendee(a), false, nil
}

func (r *memoryAttendees) GetByID(ctx context.Context, attendeeID string) (*model.Attendee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.attendees[attendeeID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAttendee(a), nil
}

func (r *memoryAttendees) ListActiveByEvent(ctx context.Context, eventID string) ([]model.Attendee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := r.s.order[eventID]
	var attendees []model.Attendee
	for i := len(ids) - 1; i >= 0; i-- {
		a := r.s.attendees[ids[i]]
		if !a.Cancelled {
			attendees = append(attendees, *copyAttendee(a))
		}
	}
	return attendees, nil
}

func (r *memoryAttendees) ListByEvent(ctx context.Context, eventID string) ([]model.Attendee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var attendees []model.Attendee
	for _, id := range r.s.order[eventID] {
		attendees = append(attendees, *copyAttendee(r.s.attendees[id]))
	}
	return attendees, nil
}

func (r *memoryAttendees) CountActive(ctx context.Context, eventID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, id := range r.s.order[eventID] {
		if !r.s.attendees[id].Cancelled {
			n++
		}
	}
	return n, nil
}

func (r *memoryAttendees) CountCheckedIn(ctx context.Context, eventID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, id := range r.s.order[eventID] {
		a := r.s.attendees[id]
		if !a.Cancelled && a.CheckedIn {
			n++
		}
	}
	return n, nil
}

func (r *memoryAttendees) CheckinTimes(ctx context.Context, eventID string) ([]time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var times []time.Time
	for _, id := range r.s.order[eventID] {
		a := r.s.attendees[id]
		if !a.Cancelled && a.CheckedIn && a.CheckedInAt != nil {
			times = append(times, *a.CheckedInAt)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

type memoryWaitlist struct{ s *MemoryStore }

func (r *memoryWaitlist) Join(ctx context.Context, eventID, name, email string) (*model.WaitlistEntry, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.waitlist[eventID] {
		if e.Email == email {
			return nil, 0, ErrAlreadyWaitlisted
		}
	}
	entry := &model.WaitlistEntry{
		ID:        uuid.New().String(),
		EventID:   eventID,
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	r.s.waitlist[eventID] = append(r.s.waitlist[eventID], entry)
	c := *entry
	return &c, len(r.s.waitlist[eventID]), nil
}

func (r *memoryWaitlist) Count(ctx context.Context, eventID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.waitlist[eventID]), nil
}

func (r *memoryWaitlist) PromoteOldest(ctx context.Context, eventID string) (*model.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.waitlist[eventID] {
		if !e.Notified {
			e.Notified = true
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryWaitlist) ListByEvent(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entries := make([]model.WaitlistEntry, 0, len(r.s.waitlist[eventID]))
	for _, e := range r.s.waitlist[eventID] {
		entries = append(entries, *e)
	}
	return entries, nil
}
