package middleware

import (
	"net/http"
	"strings"

	"github.com/kiranshivaraju/newscast/internal/mockapi/response"
	"github.com/kiranshivaraju/newscast/pkg/models"
)

// TokenResolver maps a bearer token to its user.
type TokenResolver interface {
	UserForToken(token string) (models.User, bool)
}

// Auth provides bearer-token authentication middleware.
type Auth struct {
	tokens TokenResolver
}

// NewAuth creates a new Auth middleware.
func NewAuth(t TokenResolver) *Auth {
	return &Auth{tokens: t}
}

// Authenticate resolves the Bearer token and stores the user in the request
// context. Unknown or missing tokens get 401.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			response.Error(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		user, ok := a.tokens.UserForToken(token)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			response.Error(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUser(r.Context(), user)))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
