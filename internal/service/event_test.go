package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorlist/doorlist/internal/model"
	"github.com/doorlist/doorlist/internal/repository"
)

func TestCreateEvent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	event, err := e.events.Create(ctx, model.CreateEventRequest{
		Slug:     "go-meetup-2026",
		Name:     "Go Meetup",
		Capacity: 50,
	}, "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, model.EventStatusDraft, event.Status, "new events start as drafts")
	require.NotNil(t, event.OwnerID)
	assert.Equal(t, "user-1", *event.OwnerID)

	anon, err := e.events.Create(ctx, model.CreateEventRequest{
		Slug:     "anon-party",
		Name:     "Party",
		Capacity: 10,
	}, "")
	require.NoError(t, err)
	assert.Nil(t, anon.OwnerID)
}

func TestCreateEvent_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.CreateEventRequest
	}{
		{"missing name", model.CreateEventRequest{Slug: "ok-slug", Capacity: 10}},
		{"empty slug", model.CreateEventRequest{Name: "X", Capacity: 10}},
		{"uppercase slug", model.CreateEventRequest{Slug: "Not-Ok", Name: "X", Capacity: 10}},
		{"slug with spaces", model.CreateEventRequest{Slug: "not ok", Name: "X", Capacity: 10}},
		{"zero capacity", model.CreateEventRequest{Slug: "ok-slug", Name: "X", Capacity: 0}},
		{"negative capacity", model.CreateEventRequest{Slug: "ok-slug", Name: "X", Capacity: -1}},
		{"huge capacity", model.CreateEventRequest{Slug: "ok-slug", Name: "X", Capacity: 100_001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.events.Create(ctx, tt.req, "")
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateEvent_SlugTaken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.events.Create(ctx, model.CreateEventRequest{Slug: "taken", Name: "First", Capacity: 10}, "")
	require.NoError(t, err)

	_, err = e.events.Create(ctx, model.CreateEventRequest{Slug: "taken", Name: "Second", Capacity: 10}, "")
	assert.ErrorIs(t, err, repository.ErrSlugTaken)
}

func TestEventTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.events.Create(ctx, model.CreateEventRequest{Slug: "ev", Name: "Event", Capacity: 10}, "owner")
	require.NoError(t, err)

	_, err = e.events.Publish(ctx, "ev", "intruder")
	assert.ErrorIs(t, err, ErrForbidden)

	event, err := e.events.Publish(ctx, "ev", "owner")
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusPublished, event.Status)

	event, err = e.events.Cancel(ctx, "ev", "owner")
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusCancelled, event.Status)

	_, err = e.events.Publish(ctx, "missing", "owner")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
