package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorlist/doorlist/internal/model"
)

func seedEvent(t *testing.T, store *MemoryStore, capacity int) *model.Event {
	t.Helper()
	event := &model.Event{
		ID:        uuid.New().String(),
		Slug:      "load-test",
		Name:      "Load Test",
		Capacity:  capacity,
		Status:    model.EventStatusPublished,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Events().Create(context.Background(), event))
	return event
}

// Concurrent registrations must never overbook: exactly capacity attempts
// succeed, the rest fail with ErrCapacityExceeded.
func TestRegister_ConcurrentCapacity(t *testing.T) {
	store := NewMemoryStore()
	event := seedEvent(t, store, 5)
	attendees := store.Attendees()
	ctx := context.Background()

	const attempts = 40
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := attendees.Register(ctx, event.ID,
				fmt.Sprintf("Guest %d", i),
				fmt.Sprintf("guest%d@example.com", i))
			errs[i] = err
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrCapacityExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, attempts-5, rejected)

	active, err := attendees.CountActive(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, active)
}

// Concurrent joins for the same email must resolve to one entry and
// ErrAlreadyWaitlisted for everyone else, never a bare storage error.
func TestJoin_ConcurrentDuplicate(t *testing.T) {
	store := NewMemoryStore()
	event := seedEvent(t, store, 1)
	waitlist := store.Waitlist()
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := waitlist.Join(ctx, event.ID, "W", "w@example.com")
			errs[i] = err
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyWaitlisted):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)

	n, err := waitlist.Count(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPromoteOldest_FIFO(t *testing.T) {
	store := NewMemoryStore()
	event := seedEvent(t, store, 1)
	waitlist := store.Waitlist()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		entry, pos, err := waitlist.Join(ctx, event.ID,
			fmt.Sprintf("W%d", i), fmt.Sprintf("w%d@example.com", i))
		require.NoError(t, err)
		require.Equal(t, i+1, pos)
		ids = append(ids, entry.ID)
	}

	for i := 0; i < 3; i++ {
		entry, err := waitlist.PromoteOldest(ctx, event.ID)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, ids[i], entry.ID, "promotion follows join order")
		assert.True(t, entry.Notified)
	}

	entry, err := waitlist.PromoteOldest(ctx, event.ID)
	require.NoError(t, err)
	assert.Nil(t, entry, "an exhausted waitlist promotes nothing")
}

func TestCheckIn_ConcurrentSingleWinner(t *testing.T) {
	store := NewMemoryStore()
	event := seedEvent(t, store, 10)
	attendees := store.Attendees()
	ctx := context.Background()

	att, _, err := attendees.Register(ctx, event.ID, "Ada", "ada@example.com")
	require.NoError(t, err)

	const callers = 10
	var wg sync.WaitGroup
	flips := make([]bool, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, already, err := attendees.CheckIn(ctx, att.ID)
			errs[i] = err
			flips[i] = !already
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	winners := 0
	for _, flipped := range flips {
		if flipped {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "only one caller flips the flag")
}

func TestCancel_RepeatIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	event := seedEvent(t, store, 5)
	attendees := store.Attendees()
	ctx := context.Background()

	att, _, err := attendees.Register(ctx, event.ID, "Ada", "ada@example.com")
	require.NoError(t, err)

	_, already, err := attendees.Cancel(ctx, att.ID, att.CancelToken)
	require.NoError(t, err)
	assert.False(t, already)

	cancelled, already, err := attendees.Cancel(ctx, att.ID, att.CancelToken)
	require.NoError(t, err)
	assert.True(t, already)
	assert.True(t, cancelled.Cancelled)
}

func TestMemoryStore_CopiesOnReturn(t *testing.T) {
	store := NewMemoryStore()
	event := seedEvent(t, store, 10)
	attendees := store.Attendees()
	ctx := context.Background()

	att, _, err := attendees.Register(ctx, event.ID, "Ada", "ada@example.com")
	require.NoError(t, err)

	att.Name = "Mutated"
	stored, err := attendees.GetByID(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.Name, "store state is isolated from returned copies")
}
