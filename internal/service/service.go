// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"errors"
	"strings"
)

// ErrValidation wraps request validation failures so handlers can map them
// to 400 without treating storage failures the same way.
var ErrValidation = errors.New("validation failed")

// ErrForbidden is returned when the requester does not own the event.
var ErrForbidden = errors.New("forbidden")

// ErrRsvpCancelled is returned when a QR check-in targets a cancelled
// registration.
var ErrRsvpCancelled = errors.New("registration has been cancelled")

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// normalizeEmail lowercases and trims an email address before any lookup so
// the (event, email) uniqueness rules see one canonical form.
func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// isValidEmail does a basic structural check (no external deps).
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
