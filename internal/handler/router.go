package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshfold/support-chat/internal/middleware"
	"github.com/freshfold/support-chat/internal/model"
	"github.com/freshfold/support-chat/pkg/logger"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	JWTSecret          string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	// WriteLimitRequests caps sends and broadcasts per user and route.
	WriteLimitRequests int
}

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Health        *HealthHandler
	Threads       *ThreadHandler
	Agent         *AgentHandler
	Broadcasts    *BroadcastHandler
	Notifications *NotificationHandler
	Stream        *StreamHandler
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig, h Handlers, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	writeLimit := middleware.WriteRateLimit(cfg.WriteLimitRequests, cfg.RateLimitWindow)

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/threads", func(r chi.Router) {
			r.With(middleware.RequireRole(string(model.RoleCustomer))).Get("/", h.Threads.GetOrCreate)
			r.With(middleware.RequireRole(string(model.RoleCustomer))).Get("/mine", h.Threads.Mine)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", h.Threads.Messages)
				r.With(writeLimit).Post("/messages", h.Threads.Send)
				r.Get("/stream", h.Stream.Thread)
			})
		})

		r.Route("/agent", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(model.RoleAgent)))

			r.Get("/threads", h.Agent.ListThreads)
			r.Get("/customers/{customerID}/thread", h.Agent.CustomerThread)
			r.Route("/threads/{id}", func(r chi.Router) {
				r.Post("/pickup", h.Agent.Pickup)
				r.Post("/transfer", h.Agent.Transfer)
				r.Put("/status", h.Agent.SetStatus)
				r.Delete("/", h.Agent.Hide)
				r.Get("/suggestion", h.Agent.Suggestion)
			})
			r.With(writeLimit).Post("/broadcasts", h.Broadcasts.Send)
			r.Get("/stream", h.Stream.Branch)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.Notifications.List)
			r.Post("/read-all", h.Notifications.MarkAllRead)
			r.Get("/preferences", h.Notifications.Preferences)
			r.Put("/preferences", h.Notifications.UpdatePreferences)
			r.Post("/{id}/read", h.Notifications.MarkRead)
		})

		r.Put("/devices", h.Notifications.RegisterDevice)
	})

	return r
}
