package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kwehner/focalpoint/internal/api/middleware"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	SubmitHandler   http.HandlerFunc
	StatusHandler   http.HandlerFunc
	ProgressHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
// Client routes carry the API key; the progress relay carries the relay
// token, so the analysis service can report status and nothing else.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", deps.HealthHandler)

	// Client routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/jobs", deps.SubmitHandler)
		r.Get("/api/v1/jobs/{jobID}", deps.StatusHandler)
	})

	// Relay route for the analysis service
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.AuthenticateRelay)

		r.Post("/api/v1/jobs/{jobID}/progress", deps.ProgressHandler)
	})

	return r
}
