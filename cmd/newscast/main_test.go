package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiranshivaraju/newscast/internal/cache"
	"github.com/kiranshivaraju/newscast/internal/mockapi"
	"github.com/kiranshivaraju/newscast/internal/mockapi/backend"
	"github.com/kiranshivaraju/newscast/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCLI points the client at a fresh mock API with a per-test token file.
func setupCLI(t *testing.T) *backend.Backend {
	t.Helper()
	c := cache.NewMemoryCache()
	b := backend.New(c)
	srv := httptest.NewServer(mockapi.New(b, c, 0))
	t.Cleanup(srv.Close)

	t.Setenv("NEWSCAST_API_BASE_URL", srv.URL+"/api/v1")
	t.Setenv("NEWSCAST_TOKEN_STORE", "file")
	t.Setenv("NEWSCAST_TOKEN_FILE", filepath.Join(t.TempDir(), "credentials.yaml"))
	t.Setenv("NEWSCAST_POLL_INTERVAL", "5ms")
	t.Setenv("NEWSCAST_RATE_LIMIT_RPS", "1000")
	t.Setenv("NEWSCAST_LOG_LEVEL", "error")
	return b
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := runCLI(t, args...)
	require.NoError(t, err, "newscast %s\nstderr: %s", strings.Join(args, " "), errOut)
	return out
}

func loginCLI(t *testing.T) {
	t.Helper()
	mustRun(t, "register", "--email", "ana@example.com", "--password", "secret1", "--name", "Ana")
	out := mustRun(t, "login", "--email", "ana@example.com", "--password", "secret1")
	require.Contains(t, out, "Logged in as ana@example.com")
}

func TestRun_Usage(t *testing.T) {
	_, errOut, err := runCLI(t)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, errOut, "Usage: newscast")

	_, errOut, err = runCLI(t, "bogus")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, errOut, `unknown command "bogus"`)
}

func TestRun_LoginFailure(t *testing.T) {
	setupCLI(t)
	mustRun(t, "register", "--email", "ana@example.com", "--password", "secret1")

	_, _, err := runCLI(t, "login", "--email", "ana@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", err.Error())

	_, _, err = runCLI(t, "whoami")
	assert.ErrorIs(t, err, session.ErrLoginRequired)
}

func TestRun_GenerateWatchAndHistory(t *testing.T) {
	setupCLI(t)
	loginCLI(t)

	out := mustRun(t, "whoami")
	assert.Contains(t, out, "ana@example.com (Ana)")

	out = mustRun(t, "generate", "--topics", "tech, science", "--watch", "--name", "Daily")
	assert.Contains(t, out, "Submitted digest 1 (pending script)")
	assert.Contains(t, out, "#1 completed")
	assert.Contains(t, out, "/static/audio/1.mp3")
	assert.Contains(t, out, "Audio: http://")

	out = mustRun(t, "history")
	assert.Contains(t, out, "Daily")
	assert.Contains(t, out, "Page 1 of 1 (1 episodes)")

	out = mustRun(t, "rename", "1", "Evening", "news")
	assert.Contains(t, out, `Episode 1 is now "Evening news".`)

	out = mustRun(t, "status", "1")
	assert.Contains(t, out, `#1 completed "Evening news"`)

	out = mustRun(t, "feed")
	assert.Contains(t, out, "<rss")
	assert.Contains(t, out, "Evening news")

	// Same request again is served from cache.
	out = mustRun(t, "generate", "--topics", "tech, science", "--watch")
	assert.Contains(t, out, backend.CacheHitMessage)
}

func TestRun_GenerateNameOnCacheHit(t *testing.T) {
	setupCLI(t)
	loginCLI(t)

	mustRun(t, "generate", "--topics", "tech", "--watch")

	out := mustRun(t, "generate", "--topics", "tech", "--watch", "--name", "Morning")
	assert.Contains(t, out, backend.CacheHitMessage)
	assert.Contains(t, out, `Episode 1 is now "Morning".`)

	out = mustRun(t, "history")
	assert.Contains(t, out, "Morning")
}

func TestRun_GenerateNameWithoutWatch(t *testing.T) {
	setupCLI(t)
	loginCLI(t)

	_, errOut, err := runCLI(t, "generate", "--topics", "tech", "--name", "Morning")
	require.NoError(t, err)
	assert.Contains(t, errOut, "--name was not applied")
}

func TestRun_GenerateValidation(t *testing.T) {
	setupCLI(t)
	loginCLI(t)

	_, _, err := runCLI(t, "generate", "--mode", "urls")
	require.Error(t, err)
	assert.Equal(t, "Add at least one article URL.", err.Error())

	_, _, err = runCLI(t, "generate", "--mode", "podcast")
	require.Error(t, err)
}

func TestRun_FailedGeneration(t *testing.T) {
	setupCLI(t)
	loginCLI(t)

	out, _, err := runCLI(t, "generate", "--topics", "fail", "--watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest 1 failed")
	assert.Contains(t, out, backend.FailedMessage)
}

func TestRun_PreferencesAndProfiles(t *testing.T) {
	setupCLI(t)
	loginCLI(t)

	out := mustRun(t, "prefs", "set", "--topics", "ai, ml", "--language", "es")
	assert.Contains(t, out, "ai, ml")
	assert.Contains(t, out, "es")

	out = mustRun(t, "prefs")
	assert.Contains(t, out, "ai, ml")

	out = mustRun(t, "profiles")
	assert.Contains(t, out, "Tech Briefing")
}

func TestRun_ExpiredSession(t *testing.T) {
	b := setupCLI(t)
	loginCLI(t)
	b.RevokeAll()

	_, errOut, err := runCLI(t, "history")
	assert.ErrorIs(t, err, session.ErrLoginRequired)
	assert.Contains(t, errOut, session.RefreshFailedMessage)

	// The stale token was cleared, so the next run is simply logged out.
	_, errOut, err = runCLI(t, "whoami")
	assert.ErrorIs(t, err, session.ErrLoginRequired)
	assert.NotContains(t, errOut, session.RefreshFailedMessage)
}

func TestRun_Logout(t *testing.T) {
	setupCLI(t)
	loginCLI(t)

	out := mustRun(t, "logout")
	assert.Contains(t, out, "Logged out.")

	_, _, err := runCLI(t, "whoami")
	assert.ErrorIs(t, err, session.ErrLoginRequired)
}

func TestParseArgs_Interspersed(t *testing.T) {
	a := &app{errOut: &syncWriter{w: &bytes.Buffer{}}}
	fs := newFlagSet(a, "status")
	watch := fs.Bool("watch", false, "")

	positional, err := parseArgs(fs, []string{"12", "--watch"})
	require.NoError(t, err)
	assert.Equal(t, []string{"12"}, positional)
	assert.True(t, *watch)
}
