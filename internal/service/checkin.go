package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/doorlist/doorlist/internal/model"
	"github.com/doorlist/doorlist/internal/qr"
	"github.com/doorlist/doorlist/internal/repository"
)

// CheckinService handles door check-ins, manual and QR.
type CheckinService struct {
	attendees repository.AttendeeRepository
	log       *zap.Logger
}

// NewCheckinService constructs a CheckinService.
func NewCheckinService(attendees repository.AttendeeRepository, log *zap.Logger) *CheckinService {
	return &CheckinService{attendees: attendees, log: log}
}

// CheckIn marks an attendee as checked in by id. Idempotent: a repeated call
// succeeds with AlreadyCheckedIn set and the record unchanged.
//
// The manual path does not inspect the cancelled flag; only the QR path
// rejects cancelled registrations.
func (s *CheckinService) CheckIn(ctx context.Context, attendeeID string) (*model.CheckinResponse, error) {
	att, already, err := s.attendees.CheckIn(ctx, attendeeID)
	if err != nil {
		return nil, err
	}
	if !already {
		s.log.Info("attendee checked in",
			zap.String("event_id", att.EventID),
			zap.String("attendee_id", att.ID),
		)
	}
	return &model.CheckinResponse{Attendee: att, AlreadyCheckedIn: already}, nil
}

// CheckInByQR decodes a scanned payload and checks the attendee in. A
// cancelled registration fails with ErrRsvpCancelled before any mutation.
func (s *CheckinService) CheckInByQR(ctx context.Context, rawPayload string) (*model.CheckinResponse, error) {
	payload, err := qr.Decode(rawPayload)
	if err != nil {
		return nil, err
	}
	att, err := s.attendees.GetByID(ctx, payload.AttendeeID)
	if err != nil {
		return nil, err
	}
	if att.Cancelled {
		return nil, ErrRsvpCancelled
	}
	return s.CheckIn(ctx, att.ID)
}
