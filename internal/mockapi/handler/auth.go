package handler

import (
	"net/http"

	"github.com/kiranshivaraju/newscast/internal/mockapi/response"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

// NewRegisterHandler returns POST /api/v1/auth/register.
func NewRegisterHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.Registration
		if !decode(w, r, &req) {
			return
		}
		user, err := svc.Register(r.Context(), req)
		if err != nil {
			writeError(w, err, "")
			return
		}
		response.JSON(w, user)
	}
}

// NewLoginHandler returns POST /api/v1/auth/login/access-token.
func NewLoginHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.Credentials
		if !decode(w, r, &req) {
			return
		}
		tok, err := svc.Login(r.Context(), req)
		if err != nil {
			writeError(w, err, "")
			return
		}
		response.JSON(w, tok)
	}
}

// NewMeHandler returns GET /api/v1/auth/users/me.
func NewMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		response.JSON(w, user)
	}
}
