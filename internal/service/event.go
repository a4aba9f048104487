package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/doorlist/doorlist/internal/model"
	"github.com/doorlist/doorlist/internal/repository"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// EventService orchestrates event management operations.
type EventService struct {
	events repository.EventRepository
}

// NewEventService constructs an EventService.
func NewEventService(events repository.EventRepository) *EventService {
	return &EventService{events: events}
}

// Create validates the request and inserts a draft event. When ownerID is
// empty the event is stored ownerless, which makes its dashboard visible to
// anyone with the slug.
func (s *EventService) Create(ctx context.Context, req model.CreateEventRequest, ownerID string) (*model.Event, error) {
	req.Slug = trimmed(req.Slug)
	req.Name = trimmed(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrValidation)
	}
	if !slugPattern.MatchString(req.Slug) {
		return nil, fmt.Errorf("%w: slug must be lowercase letters, digits and hyphens", ErrValidation)
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be a positive integer", ErrValidation)
	}
	if req.Capacity > 100_000 {
		return nil, fmt.Errorf("%w: capacity cannot exceed 100,000", ErrValidation)
	}

	event := &model.Event{
		ID:          uuid.New().String(),
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Capacity:    req.Capacity,
		Status:      model.EventStatusDraft,
		CreatedAt:   time.Now().UTC(),
	}
	if ownerID != "" {
		event.OwnerID = &ownerID
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Get returns the event behind slug.
func (s *EventService) Get(ctx context.Context, slug string) (*model.Event, error) {
	return s.events.GetBySlug(ctx, slug)
}

// List returns all events, newest first.
func (s *EventService) List(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// Publish opens the event for registration. Requires ownership, with the
// same ownerless fallback the dashboard uses.
func (s *EventService) Publish(ctx context.Context, slug, requesterID string) (*model.Event, error) {
	return s.transition(ctx, slug, requesterID, model.EventStatusPublished)
}

// Cancel closes the event. Registration attempts fail with
// ErrEventUnavailable afterwards; existing attendee records are untouched.
func (s *EventService) Cancel(ctx context.Context, slug, requesterID string) (*model.Event, error) {
	return s.transition(ctx, slug, requesterID, model.EventStatusCancelled)
}

func (s *EventService) transition(ctx context.Context, slug, requesterID string, status model.EventStatus) (*model.Event, error) {
	event, err := s.events.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !event.OwnedBy(requesterID) {
		return nil, ErrForbidden
	}
	if err := s.events.UpdateStatus(ctx, event.ID, status); err != nil {
		return nil, err
	}
	event.Status = status
	return event, nil
}
