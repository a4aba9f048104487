package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/doorlist/doorlist/internal/model"
	"github.com/doorlist/doorlist/internal/qr"
	"github.com/doorlist/doorlist/internal/repository"
)

// RegistrationService owns the attendee lifecycle: registration with
// capacity arbitration, self-service cancellation, and the waitlist.
type RegistrationService struct {
	events    repository.EventRepository
	attendees repository.AttendeeRepository
	waitlist  repository.WaitlistRepository
	log       *zap.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	events repository.EventRepository,
	attendees repository.AttendeeRepository,
	waitlist repository.WaitlistRepository,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{events: events, attendees: attendees, waitlist: waitlist, log: log}
}

// Register attempts to register (name, email) for the event behind slug.
// Outcomes: a fresh registration, a reactivation of a previously cancelled
// record, or one of ErrEventUnavailable, ErrDuplicateRegistration,
// ErrCapacityExceeded (the caller should offer the waitlist), ErrNotFound.
func (s *RegistrationService) Register(ctx context.Context, slug string, req model.RegisterRequest) (*model.RegisterResponse, error) {
	name, email, err := attendeeInput(req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	att, reactivated, err := s.attendees.Register(ctx, event.ID, name, email)
	if err != nil {
		return nil, err
	}

	payload, err := qr.Encode(qr.NewPayload(att))
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}

	s.log.Info("attendee registered",
		zap.String("event_id", event.ID),
		zap.String("attendee_id", att.ID),
		zap.Bool("reactivated", reactivated),
	)
	return &model.RegisterResponse{
		Attendee:    att,
		QRPayload:   payload,
		CancelToken: att.CancelToken,
		Reactivated: reactivated,
	}, nil
}

// Cancel marks the registration cancelled and then promotes the oldest
// unnotified waitlist entry. Promotion is best-effort: its failure never
// fails a cancellation that already committed. A repeated cancel of the same
// attendee succeeds without promoting again; only the call that actually
// frees the slot notifies a waitlist entry.
func (s *RegistrationService) Cancel(ctx context.Context, attendeeID, cancelToken string) error {
	att, already, err := s.attendees.Cancel(ctx, attendeeID, cancelToken)
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	s.log.Info("attendee cancelled",
		zap.String("event_id", att.EventID),
		zap.String("attendee_id", att.ID),
	)

	entry, err := s.waitlist.PromoteOldest(ctx, att.EventID)
	if err != nil {
		s.log.Warn("waitlist promotion failed",
			zap.String("event_id", att.EventID),
			zap.Error(err),
		)
		return nil
	}
	if entry != nil {
		// Advisory only: the entry is flagged for notification, no attendee
		// record is created and no seat is reserved.
		s.log.Info("waitlist entry notified",
			zap.String("event_id", att.EventID),
			zap.String("waitlist_id", entry.ID),
		)
	}
	return nil
}

// JoinWaitlist queues (name, email) for the event behind slug and reports
// the 1-based position. Capacity is not re-checked here: joining a waitlist
// while a slot is free is permitted.
func (s *RegistrationService) JoinWaitlist(ctx context.Context, slug string, req model.WaitlistRequest) (*model.WaitlistResponse, error) {
	name, email, err := attendeeInput(req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	entry, position, err := s.waitlist.Join(ctx, event.ID, name, email)
	if err != nil {
		return nil, err
	}
	return &model.WaitlistResponse{Entry: entry, Position: position}, nil
}

// AttendeeQR renders the attendee's check-in code as a PNG.
func (s *RegistrationService) AttendeeQR(ctx context.Context, attendeeID string, size int) ([]byte, error) {
	att, err := s.attendees.GetByID(ctx, attendeeID)
	if err != nil {
		return nil, err
	}
	return qr.Image(qr.NewPayload(att), size)
}

func attendeeInput(name, email string) (string, string, error) {
	name = trimmed(name)
	email = normalizeEmail(email)
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if email == "" {
		return "", "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !isValidEmail(email) {
		return "", "", fmt.Errorf("%w: email is not a valid address", ErrValidation)
	}
	return name, email, nil
}
