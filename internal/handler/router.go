package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/scheduling-agent/internal/middleware"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
)

// RouterConfig wires handlers and request policy into a router.
type RouterConfig struct {
	Logger *logger.Logger
	Health *HealthHandler
	Events *EventHandler
	Chat   *ChatHandler

	JWTSecret           string
	Location            *time.Location
	AllowClientTimezone bool
	CORSOrigins         []string
	RateLimitRequests   int
	RateLimitWindow     time.Duration
	IPRateLimitRequests int
}

// NewRouter builds the HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// No identity required
	r.Get("/", cfg.Health.Root)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		// Guest IDs are client-chosen, so bound each address as well.
		if cfg.IPRateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
			r.Use(middleware.RateLimit(cfg.IPRateLimitRequests, cfg.RateLimitWindow))
		}
		r.Use(middleware.Identity(cfg.JWTSecret))
		r.Use(middleware.Timezone(cfg.Location, cfg.AllowClientTimezone))

		r.Get("/events", cfg.Events.List)
		r.Get("/events.ics", cfg.Events.ICS)
		r.Post("/create-event", cfg.Events.Create)

		r.Group(func(r chi.Router) {
			if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
				r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			}
			r.Post("/chat", cfg.Chat.Chat)
		})
	})

	return r
}
