package appointments

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/doctor-portal/internal/calendar"
	"github.com/wolfman30/doctor-portal/internal/identity"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// Handler serves the scheduling API.
type Handler struct {
	service    *Service
	logger     *logging.Logger
	retryAfter time.Duration
}

// NewHandler creates a scheduling handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("appointments: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger, retryAfter: time.Second}
}

// AvailabilityResponse lists open start times for one doctor and date.
type AvailabilityResponse struct {
	DoctorID string           `json:"doctor_id"`
	Date     calendar.Date    `json:"date"`
	Slots    []calendar.Clock `json:"slots"`
}

// BookRequest is the body of a booking call. The patient comes from the token.
type BookRequest struct {
	Speciality string          `json:"speciality"`
	Date       calendar.Date   `json:"date"`
	StartTime  *calendar.Clock `json:"start_time"`
}

// ListResponse wraps a list of appointments.
type ListResponse struct {
	Appointments []Appointment `json:"appointments"`
	Count        int           `json:"count"`
}

// GetAvailability handles GET /doctors/{doctorID}/availability?date=YYYY-MM-DD.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	date, err := calendar.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	slots, err := h.service.GetAvailability(r.Context(), doctorID, date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{DoctorID: doctorID, Date: date, Slots: slots})
}

// Book handles POST /doctors/{doctorID}/appointments for the calling patient.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if principal.Role != identity.RolePatient {
		jsonError(w, "only patients can book appointments", http.StatusForbidden)
		return
	}

	var body BookRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to decode booking request", "error", err)
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// Clock(0) is midnight, so an absent start_time must not decode to it.
	if body.StartTime == nil {
		h.writeError(w, invalidRequest("start_time is required"))
		return
	}

	result, err := h.service.Book(r.Context(), BookingRequest{
		DoctorID:   chi.URLParam(r, "doctorID"),
		PatientID:  principal.UserID,
		Speciality: body.Speciality,
		Date:       body.Date,
		StartTime:  *body.StartTime,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Get handles GET /appointments/{id}. Non-participants see 404.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	apt, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !apt.HasParticipant(principal.UserID) {
		h.writeError(w, ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

// Cancel handles POST /appointments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	apt, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"), principal.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

// ListMine handles GET /me/appointments for either role.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var (
		apts []Appointment
		err  error
	)
	if principal.Role == identity.RoleDoctor {
		apts, err = h.service.ListDoctorAppointments(r.Context(), principal.UserID)
	} else {
		apts, err = h.service.ListPatientAppointments(r.Context(), principal.UserID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Appointments: apts, Count: len(apts)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	switch kind {
	case KindInvalidRequest, KindInvalidSlot:
		jsonError(w, err.Error(), http.StatusBadRequest)
	case KindOutOfHours:
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case KindSlotConflict:
		jsonError(w, err.Error(), http.StatusConflict)
	case KindBusy:
		w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case KindNotFound, KindNotParticipant:
		jsonError(w, ErrNotFound.Error(), http.StatusNotFound)
	default:
		h.logger.Error("scheduling request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
