// Package handler implements the mock API's endpoints on top of a Service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/newscast/internal/mockapi/backend"
	mw "github.com/kiranshivaraju/newscast/internal/mockapi/middleware"
	"github.com/kiranshivaraju/newscast/internal/mockapi/response"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

// Service defines the backend operations the handlers depend on.
// *backend.Backend satisfies it.
type Service interface {
	Register(ctx context.Context, reg models.Registration) (models.User, error)
	Login(ctx context.Context, creds models.Credentials) (models.Token, error)
	Generate(ctx context.Context, userID int64, req models.GenerationRequest) (models.GenerationResponse, error)
	Status(ctx context.Context, userID, digestID int64) (models.StatusSnapshot, error)
	ListPodcasts(ctx context.Context, userID int64, page, limit int) models.PodcastPage
	RenameEpisode(ctx context.Context, userID, episodeID int64, name string) (models.EpisodeDetail, error)
	Preferences(ctx context.Context, userID int64) models.UserPreference
	UpdatePreferences(ctx context.Context, userID int64, update models.UserPreferenceUpdate) models.UserPreference
	Profiles(ctx context.Context) []models.Profile
}

var _ Service = (*backend.Backend)(nil)

// writeError maps backend errors to statuses. notFound is the detail used for
// backend.ErrNotFound.
func writeError(w http.ResponseWriter, err error, notFound string) {
	var verr *backend.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error(w, http.StatusUnprocessableEntity, verr.Msg)
	case errors.Is(err, backend.ErrNotFound):
		response.Error(w, http.StatusNotFound, notFound)
	case errors.Is(err, backend.ErrForbidden):
		response.Error(w, http.StatusForbidden, "Not authorized to view this digest status")
	case errors.Is(err, backend.ErrEmailTaken):
		response.Error(w, http.StatusBadRequest, "The user with this email already exists in the system.")
	case errors.Is(err, backend.ErrInvalidCredentials):
		response.Error(w, http.StatusUnauthorized, "Incorrect email or password")
	default:
		response.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, http.StatusUnprocessableEntity, "Invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		response.Error(w, http.StatusUnprocessableEntity, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func currentUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	u, ok := mw.GetUser(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Not authenticated")
	}
	return u, ok
}

// Pinger reports the health of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns GET /api/v1/health. The response is 503 when the
// cache does not answer.
func NewHealthHandler(c Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"cache": "ok"}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
			response.Error(w, http.StatusServiceUnavailable, "One or more services degraded")
			return
		}
		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
