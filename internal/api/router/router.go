package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	"github.com/wolfman30/dental-scheduling-agent/internal/availability"
	"github.com/wolfman30/dental-scheduling-agent/internal/conversation"
	httpmiddleware "github.com/wolfman30/dental-scheduling-agent/internal/http/middleware"
	"github.com/wolfman30/dental-scheduling-agent/internal/webchat"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	AvailabilityHandler *availability.Handler
	AppointmentsHandler *appointments.Handler
	WebchatHandler      *webchat.Handler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string
	// RateLimiter guards the routes that reach the LLM. Nil disables limiting.
	RateLimiter  *httpmiddleware.RateLimiter
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

	limited := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limited = httpmiddleware.RateLimit(cfg.RateLimiter)
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.AvailabilityHandler != nil {
			public.Get("/availability", cfg.AvailabilityHandler.Slots)
			public.Get("/availability/check", cfg.AvailabilityHandler.Check)
		}
		if cfg.ConversationHandler != nil {
			public.Route("/conversations", func(c chi.Router) {
				c.Use(limited)
				c.Post("/start", cfg.ConversationHandler.Start)
				c.Get("/{conversationID}", cfg.ConversationHandler.Transcript)
				c.Post("/{conversationID}/messages", cfg.ConversationHandler.Message)
			})
		}
		if cfg.WebchatHandler != nil {
			public.Route("/webchat", func(w chi.Router) {
				w.Get("/widget.js", cfg.WebchatHandler.HandleWidgetJS)
				w.Get("/history", cfg.WebchatHandler.HandleHistory)
				w.With(limited).Get("/ws", cfg.WebchatHandler.HandleWebSocket)
				w.With(limited).Post("/message", cfg.WebchatHandler.HandleMessage)
			})
		}
	})

	if cfg.AppointmentsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, cfg.Logger))
			admin.Get("/appointments", cfg.AppointmentsHandler.List)
		})
	}

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := map[string]string{"status": "ok"}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
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
