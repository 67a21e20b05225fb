package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatrdv/platform/internal/http/handlers"
	httpmiddleware "github.com/chatrdv/platform/internal/http/middleware"
	"github.com/chatrdv/platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *handlers.ChatHandler
	AdminHandler       *handlers.AdminHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (widget traffic, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.ChatHandler != nil {
			public.Route("/chat", func(r chi.Router) {
				r.Use(requireTenantID)
				r.Post("/session", cfg.ChatHandler.StartSession)
				r.Post("/message", cfg.ChatHandler.PostMessage)
				r.Get("/history", cfg.ChatHandler.GetHistory)
				r.Delete("/session", cfg.ChatHandler.ClearSession)
			})
		}
	})

	// Back-office routes, JWT protected.
	if cfg.AdminHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(requireTenantID)

			admin.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.AdminHandler.ListAppointments)
				r.Get("/{appointmentID}", cfg.AdminHandler.GetAppointment)
				r.Patch("/{appointmentID}/status", cfg.AdminHandler.UpdateAppointmentStatus)
			})
			admin.Route("/agents", func(r chi.Router) {
				r.Get("/", cfg.AdminHandler.ListAgents)
				r.Post("/", cfg.AdminHandler.CreateAgent)
				r.Delete("/{agentID}", cfg.AdminHandler.DeactivateAgent)
				r.Put("/{agentID}/schedule", cfg.AdminHandler.ReplaceSchedule)
				r.Post("/{agentID}/unavailability", cfg.AdminHandler.AddUnavailability)
			})
			admin.Get("/settings", cfg.AdminHandler.GetSettings)
			admin.Put("/settings", cfg.AdminHandler.UpdateSettings)
		})
	}

	return r
}
