package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/newscast/internal/mockapi/response"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// NewGenerateHandler returns POST /api/v1/podcasts/generate-podcast.
func NewGenerateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req models.GenerationRequest
		if !decode(w, r, &req) {
			return
		}
		resp, err := svc.Generate(r.Context(), user.ID, req)
		if err != nil {
			writeError(w, err, "Predefined category not found")
			return
		}
		response.Accepted(w, resp)
	}
}

// NewStatusHandler returns GET /api/v1/podcasts/podcast-status/{digestID}.
func NewStatusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "digestID")
		if !ok {
			return
		}
		snap, err := svc.Status(r.Context(), user.ID, id)
		if err != nil {
			writeError(w, err, "NewsDigest not found")
			return
		}
		response.JSON(w, snap)
	}
}

// NewListPodcastsHandler returns GET /api/v1/podcasts/my-podcasts.
func NewListPodcastsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		page, err := queryInt(r, "page", 1)
		if err != nil || page < 1 {
			response.Error(w, http.StatusUnprocessableEntity, "page must be a positive integer")
			return
		}
		limit, err := queryInt(r, "limit", defaultPageLimit)
		if err != nil || limit < 1 || limit > maxPageLimit {
			response.Error(w, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be between 1 and %d", maxPageLimit))
			return
		}

		response.JSON(w, svc.ListPodcasts(r.Context(), user.ID, page, limit))
	}
}

// NewRenameHandler returns PUT /api/v1/podcasts/episodes/{episodeID}/name.
func NewRenameHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "episodeID")
		if !ok {
			return
		}
		var req models.RenameRequest
		if !decode(w, r, &req) {
			return
		}
		detail, err := svc.RenameEpisode(r.Context(), user.ID, id, req.UserGivenName)
		if err != nil {
			writeError(w, err, "Podcast episode not found")
			return
		}
		response.JSON(w, detail)
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
