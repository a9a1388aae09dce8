// Package mockapi serves a local stand-in for the podcast generation API.
package mockapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/newscast/internal/cache"
	"github.com/kiranshivaraju/newscast/internal/mockapi/backend"
	"github.com/kiranshivaraju/newscast/internal/mockapi/handler"
	mw "github.com/kiranshivaraju/newscast/internal/mockapi/middleware"
	"github.com/kiranshivaraju/newscast/internal/mockapi/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	AudioHandler    http.HandlerFunc
	RegisterHandler http.HandlerFunc
	LoginHandler    http.HandlerFunc
	MeHandler       http.HandlerFunc

	GenerateHandler     http.HandlerFunc
	StatusHandler       http.HandlerFunc
	ListPodcastsHandler http.HandlerFunc
	RenameHandler       http.HandlerFunc

	GetPreferences    http.HandlerFunc
	UpdatePreferences http.HandlerFunc
	ListProfiles      http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/static/audio/{file}", orNotImplemented(deps.AudioHandler))
	r.Post("/api/v1/auth/register", orNotImplemented(deps.RegisterHandler))
	r.Post("/api/v1/auth/login/access-token", orNotImplemented(deps.LoginHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/auth/users/me", orNotImplemented(deps.MeHandler))

		r.Post("/api/v1/podcasts/generate-podcast", orNotImplemented(deps.GenerateHandler))
		r.Get("/api/v1/podcasts/podcast-status/{digestID}", orNotImplemented(deps.StatusHandler))
		r.Get("/api/v1/podcasts/my-podcasts", orNotImplemented(deps.ListPodcastsHandler))
		r.Put("/api/v1/podcasts/episodes/{episodeID}/name", orNotImplemented(deps.RenameHandler))

		r.Get("/api/v1/user/preferences/me", orNotImplemented(deps.GetPreferences))
		r.Put("/api/v1/user/preferences/me", orNotImplemented(deps.UpdatePreferences))
		r.Get("/api/v1/predefined-categories/", orNotImplemented(deps.ListProfiles))
	})

	return r
}

// New wires a router around b. c backs rate limiting and the health check.
func New(b *backend.Backend, c cache.Cache, requestsPerMin int) http.Handler {
	return NewRouter(Dependencies{
		Auth:      mw.NewAuth(b),
		RateLimit: mw.NewRateLimit(c, requestsPerMin),

		HealthHandler:   handler.NewHealthHandler(c),
		AudioHandler:    handler.NewAudioHandler(),
		RegisterHandler: handler.NewRegisterHandler(b),
		LoginHandler:    handler.NewLoginHandler(b),
		MeHandler:       handler.NewMeHandler(),

		GenerateHandler:     handler.NewGenerateHandler(b),
		StatusHandler:       handler.NewStatusHandler(b),
		ListPodcastsHandler: handler.NewListPodcastsHandler(b),
		RenameHandler:       handler.NewRenameHandler(b),

		GetPreferences:    handler.NewGetPreferencesHandler(b),
		UpdatePreferences: handler.NewUpdatePreferencesHandler(b),
		ListProfiles:      handler.NewProfilesHandler(b),
	})
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "Endpoint not yet implemented")
	}
}
