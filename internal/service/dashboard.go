package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/doorlist/doorlist/internal/model"
	"github.com/doorlist/doorlist/internal/repository"
)

// DashboardService provides the organizer's read-only view of an event.
type DashboardService struct {
	events    repository.EventRepository
	attendees repository.AttendeeRepository
	waitlist  repository.WaitlistRepository
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(
	events repository.EventRepository,
	attendees repository.AttendeeRepository,
	waitlist repository.WaitlistRepository,
) *DashboardService {
	return &DashboardService{events: events, attendees: attendees, waitlist: waitlist}
}

// authorize applies the owner-or-ownerless rule: the requester must own the
// event, but events without an owner are visible to anyone with the slug.
func (s *DashboardService) authorize(ctx context.Context, slug, requesterID string) (*model.Event, error) {
	event, err := s.events.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !event.OwnedBy(requesterID) {
		return nil, ErrForbidden
	}
	return event, nil
}

// Dashboard returns active attendees newest-first, the headline counts, and
// the ordered check-in timestamps. Cancelled attendees appear nowhere.
func (s *DashboardService) Dashboard(ctx context.Context, slug, requesterID string) (*model.Dashboard, error) {
	event, err := s.authorize(ctx, slug, requesterID)
	if err != nil {
		return nil, err
	}

	attendees, err := s.attendees.ListActiveByEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	checkedIn, err := s.attendees.CountCheckedIn(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("count checked in: %w", err)
	}
	waiting, err := s.waitlist.Count(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("count waitlist: %w", err)
	}
	times, err := s.attendees.CheckinTimes(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list checkin times: %w", err)
	}

	if attendees == nil {
		attendees = []model.Attendee{}
	}
	if times == nil {
		times = []time.Time{}
	}
	return &model.Dashboard{
		Event:         event,
		Attendees:     attendees,
		Total:         len(attendees),
		CheckedIn:     checkedIn,
		WaitlistCount: waiting,
		CheckinTimes:  times,
	}, nil
}

// Waitlist returns the event's queue in order, for the organizer view.
func (s *DashboardService) Waitlist(ctx context.Context, slug, requesterID string) ([]model.WaitlistEntry, error) {
	event, err := s.authorize(ctx, slug, requesterID)
	if err != nil {
		return nil, err
	}
	entries, err := s.waitlist.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	if entries == nil {
		entries = []model.WaitlistEntry{}
	}
	return entries, nil
}

// ExportCSV writes every attendee record, cancelled ones included, as CSV in
// registration order. The status column distinguishes cancelled rows.
func (s *DashboardService) ExportCSV(ctx context.Context, slug, requesterID string, w io.Writer) error {
	event, err := s.authorize(ctx, slug, requesterID)
	if err != nil {
		return err
	}

	attendees, err := s.attendees.ListByEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("list attendees: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "email", "status", "checked_in", "checked_in_at", "registered_at"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range attendees {
		checkedInAt := ""
		if a.CheckedInAt != nil {
			checkedInAt = a.CheckedInAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			a.Name,
			a.Email,
			attendeeStatus(a),
			fmt.Sprintf("%t", a.CheckedIn),
			checkedInAt,
			a.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func attendeeStatus(a model.Attendee) string {
	switch {
	case a.Cancelled:
		return "cancelled"
	case a.CheckedIn:
		return "checked_in"
	default:
		return "registered"
	}
}
