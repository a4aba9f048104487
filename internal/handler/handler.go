// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/doorlist/doorlist/internal/model"
	"github.com/doorlist/doorlist/internal/qr"
	"github.com/doorlist/doorlist/internal/repository"
	"github.com/doorlist/doorlist/internal/service"
)

// Handler holds all HTTP handlers for the RSVP API.
type Handler struct {
	events       *service.EventService
	registration *service.RegistrationService
	checkin      *service.CheckinService
	dashboard    *service.DashboardService
	log          *zap.Logger
}

// New constructs a Handler.
func New(
	events *service.EventService,
	registration *service.RegistrationService,
	checkin *service.CheckinService,
	dashboard *service.DashboardService,
	log *zap.Logger,
) *Handler {
	return &Handler{
		events:       events,
		registration: registration,
		checkin:      checkin,
		dashboard:    dashboard,
		log:          log,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, repository.ErrInvalidToken):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrDuplicateRegistration),
		errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, repository.ErrAlreadyWaitlisted),
		errors.Is(err, repository.ErrEventUnavailable),
		errors.Is(err, repository.ErrSlugTaken),
		errors.Is(err, service.ErrRsvpCancelled):
		return http.StatusConflict
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, qr.ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a domain error. Internal failures are logged and
// surfaced as a generic message so storage details never leak.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events.
// An authenticated requester becomes the owner; anonymous events are allowed
// and stay manageable by anyone with the slug.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.Create(r.Context(), req, RequesterID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{slug}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// PublishEvent handles POST /events/{slug}/publish.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Publish(r.Context(), chi.URLParam(r, "slug"), RequesterID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CancelEvent handles POST /events/{slug}/cancel.
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Cancel(r.Context(), chi.URLParam(r, "slug"), RequesterID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ─── Registration ─────────────────────────────────────────────────────────────

// Register handles POST /events/{slug}/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.registration.Register(r.Context(), chi.URLParam(r, "slug"), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// JoinWaitlist handles POST /events/{slug}/waitlist.
func (h *Handler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req model.WaitlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.registration.JoinWaitlist(r.Context(), chi.URLParam(r, "slug"), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// CancelRSVP handles POST /attendees/{id}/cancel.
func (h *Handler) CancelRSVP(w http.ResponseWriter, r *http.Request) {
	var req model.CancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.registration.Cancel(r.Context(), chi.URLParam(r, "id"), req.CancelToken); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// AttendeeQR handles GET /attendees/{id}/qr.png.
func (h *Handler) AttendeeQR(w http.ResponseWriter, r *http.Request) {
	size := 256
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > 1024 {
			writeError(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := h.registration.AttendeeQR(r.Context(), chi.URLParam(r, "id"), size)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// ─── Check-in ─────────────────────────────────────────────────────────────────

// CheckIn handles POST /checkin/{id}, the manual door path.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	resp, err := h.checkin.CheckIn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CheckInQR handles POST /checkin/qr, the scanner path.
func (h *Handler) CheckInQR(w http.ResponseWriter, r *http.Request) {
	var req model.QRCheckinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.checkin.CheckInByQR(r.Context(), req.Payload)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Dashboard ────────────────────────────────────────────────────────────────

// Dashboard handles GET /events/{slug}/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.dashboard.Dashboard(r.Context(), chi.URLParam(r, "slug"), RequesterID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// Waitlist handles GET /events/{slug}/waitlist.
func (h *Handler) Waitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.dashboard.Waitlist(r.Context(), chi.URLParam(r, "slug"), RequesterID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ExportCSV handles GET /events/{slug}/export.csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	// Authorization happens inside the service before any row is written, so
	// errors here still arrive on a clean response.
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+slug+`-attendees.csv"`)
	if err := h.dashboard.ExportCSV(r.Context(), slug, RequesterID(r.Context()), w); err != nil {
		w.Header().Del("Content-Disposition")
		h.respondError(w, r, err)
		return
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
