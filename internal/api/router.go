package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatrix/internal/api/middleware"
	"github.com/eldtechnologies/chatrix/internal/handlers"
)

// Options wires the router to its collaborators.
type Options struct {
	Handlers       handlers.Deps
	AILimiter      *middleware.RateLimiter // nil disables AI rate limiting
	CORSOrigins    []string
	TrustedProxies []string // peers whose forwarding headers are honoured
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.NewTrustedProxies(opts.TrustedProxies, logger).Middleware)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Browser clients send the session cookie cross-origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"RateLimit-Policy", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(opts.Handlers)
	auth := middleware.NewAuthMiddleware(opts.Handlers.Users, opts.Handlers.JWTSecret)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/logout", h.Logout)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/auth/me", h.Me)
		r.Get("/users/{id}", h.Profile)

		r.Route("/ai", func(r chi.Router) {
			// Keyed by user, so it runs after auth.
			if opts.AILimiter != nil {
				r.Use(opts.AILimiter.Middleware)
			}
			r.Post("/chat", h.ChatWithAI)
		})

		r.Get("/messages/users", h.GetUsers)
		r.Get("/messages/{id}", h.GetMessages)
		r.Post("/messages/send/{id}", h.SendMessage)

		r.Get("/ws", h.Realtime)
	})

	return r
}
