package podcastapi

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// Paths that never count as a session failure when they return 401: a wrong
// password on the login page is not an expired session.
const (
	PathLogin    = "/auth/login/access-token"
	PathRegister = "/auth/register"
)

// IsAuthPath reports whether path is the login or register endpoint. path may
// carry the API prefix.
func IsAuthPath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	return strings.HasSuffix(path, PathLogin) || strings.HasSuffix(path, PathRegister)
}

// TokenSource supplies the current bearer token, or "" when logged out.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// AuthFailureFunc is called with the request path when a non-auth request is
// rejected with 401.
type AuthFailureFunc func(path string)

// Transport is the shared interceptor every API request passes through. It
// attaches the bearer token, paces requests, and reports 401s.
type Transport struct {
	Base          http.RoundTripper
	Tokens        TokenSource
	Limiter       *rate.Limiter
	OnAuthFailure AuthFailureFunc
}

// NewLimiter returns a limiter for rps requests per second, or nil when rps
// is not positive.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	if t.Tokens != nil {
		if token := t.Tokens.Token(); token != "" {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !IsAuthPath(req.URL.Path) && t.OnAuthFailure != nil {
		t.OnAuthFailure(req.URL.Path)
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

var _ http.RoundTripper = (*Transport)(nil)
