package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/doctor-portal/internal/appointments"
	"github.com/wolfman30/doctor-portal/internal/doctors"
	httpmiddleware "github.com/wolfman30/doctor-portal/internal/http/middleware"
	"github.com/wolfman30/doctor-portal/internal/identity"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	DoctorsHandler      *doctors.Handler
	JWTSecret           string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	RateLimiter         *httpmiddleware.RateLimiter

	// HealthChecks are probed by /health; any failure reports 503.
	HealthChecks map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Group(func(api chi.Router) {
		api.Use(identity.RequireJWT(cfg.JWTSecret))
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}

		if h := cfg.AppointmentsHandler; h != nil {
			api.Get("/doctors/{doctorID}/availability", h.GetAvailability)
			api.Post("/doctors/{doctorID}/appointments", h.Book)
			api.Get("/appointments/{id}", h.Get)
			api.Post("/appointments/{id}/cancel", h.Cancel)
			api.Get("/me/appointments", h.ListMine)
		}
		if h := cfg.DoctorsHandler; h != nil {
			api.Get("/doctors/{doctorID}/hours", h.GetHours)
			api.Put("/me/hours", h.PutMyHours)
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := map[string]string{"status": "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp[name] = err.Error()
				resp["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
