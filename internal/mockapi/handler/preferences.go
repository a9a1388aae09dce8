package handler

import (
	"net/http"

	"github.com/kiranshivaraju/newscast/internal/mockapi/response"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

// NewGetPreferencesHandler returns GET /api/v1/user/preferences/me.
func NewGetPreferencesHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		response.JSON(w, svc.Preferences(r.Context(), user.ID))
	}
}

// NewUpdatePreferencesHandler returns PUT /api/v1/user/preferences/me.
func NewUpdatePreferencesHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req models.UserPreferenceUpdate
		if !decode(w, r, &req) {
			return
		}
		response.JSON(w, svc.UpdatePreferences(r.Context(), user.ID, req))
	}
}

// NewProfilesHandler returns GET /api/v1/predefined-categories/.
func NewProfilesHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, svc.Profiles(r.Context()))
	}
}
