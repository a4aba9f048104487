// Package qr encodes and decodes attendee check-in payloads. The payload is
// a small JSON document; Image renders it as a scannable PNG.
package qr

import (
	"encoding/json"
	"errors"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/doorlist/doorlist/internal/model"
)

// ErrInvalidPayload is returned when a scanned payload is malformed or is
// missing the attendee id.
var ErrInvalidPayload = errors.New("invalid qr payload")

// Payload is the structured content embedded in an attendee's QR code.
type Payload struct {
	AttendeeID string `json:"attendee_id"`
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

// NewPayload builds a payload from an attendee record.
func NewPayload(att *model.Attendee) Payload {
	return Payload{
		AttendeeID: att.ID,
		EventID:    att.EventID,
		Name:       att.Name,
		Email:      att.Email,
	}
}

// Encode serialises the payload to its wire form.
func Encode(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode parses a scanned payload. Anything that does not parse, or parses
// without an attendee id, is ErrInvalidPayload.
func Decode(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, ErrInvalidPayload
	}
	if p.AttendeeID == "" {
		return Payload{}, ErrInvalidPayload
	}
	return p, nil
}

// Image renders the payload as a PNG of the given pixel size.
func Image(p Payload, size int) ([]byte, error) {
	encoded, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encoded, qrcode.Medium, size)
}
