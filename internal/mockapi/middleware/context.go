package middleware

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/newscast/pkg/models"
)

type userKey struct{}

// SetUser stores the authenticated user in ctx.
func SetUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// GetUser returns the user stored by Auth, if any.
func GetUser(r *http.Request) (models.User, bool) {
	u, ok := r.Context().Value(userKey{}).(models.User)
	return u, ok
}
