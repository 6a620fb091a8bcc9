package doctors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/doctor-portal/internal/identity"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// Handler exposes working hours over HTTP.
type Handler struct {
	store  *HoursStore
	logger *logging.Logger
}

// NewHandler creates a working-hours handler.
func NewHandler(store *HoursStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// GetHours handles GET /doctors/{doctorID}/hours.
func (h *Handler) GetHours(w http.ResponseWriter, r *http.Request) {
	hours, err := h.store.Get(r.Context(), chi.URLParam(r, "doctorID"))
	if err != nil {
		h.logger.Error("failed to load doctor hours", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hours)
}

// PutMyHours handles PUT /me/hours for the calling doctor.
func (h *Handler) PutMyHours(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if principal.Role != identity.RoleDoctor {
		jsonError(w, "only doctors have working hours", http.StatusForbidden)
		return
	}

	var hours WeeklyHours
	if err := json.NewDecoder(r.Body).Decode(&hours); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := hours.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.Set(r.Context(), principal.UserID, &hours); err != nil {
		h.logger.Error("failed to save doctor hours", "error", err, "doctor_id", principal.UserID)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logger.Info("doctor hours updated", "doctor_id", principal.UserID)
	writeJSON(w, http.StatusOK, hours)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
