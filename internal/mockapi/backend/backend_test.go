package backend_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/newscast/internal/cache"
	"github.com/kiranshivaraju/newscast/internal/mockapi/backend"
	"github.com/kiranshivaraju/newscast/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, b *backend.Backend, email string) models.User {
	t.Helper()
	u, err := b.Register(context.Background(), models.Registration{Email: email, Password: "secret1"})
	require.NoError(t, err)
	return u
}

func topicsRequest(topics ...string) models.GenerationRequest {
	return models.GenerationRequest{RequestTopics: topics, Language: "en", AudioStyle: "standard"}
}

// completeDigest reads the status until the digest is terminal.
func completeDigest(t *testing.T, b *backend.Backend, userID, digestID int64) models.StatusSnapshot {
	t.Helper()
	for i := 0; i < 10; i++ {
		snap, err := b.Status(context.Background(), userID, digestID)
		require.NoError(t, err)
		if snap.Status.IsTerminal() {
			return snap
		}
	}
	t.Fatalf("digest %d never reached a terminal status", digestID)
	return models.StatusSnapshot{}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	b := backend.New(nil)

	u := newUser(t, b, " Ana@Example.com ")
	assert.Equal(t, "ana@example.com", u.Email)
	assert.True(t, u.IsActive)

	_, err := b.Register(ctx, models.Registration{Email: "ana@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, backend.ErrEmailTaken)

	_, err = b.Login(ctx, models.Credentials{Email: "ana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, backend.ErrInvalidCredentials)

	tok, err := b.Login(ctx, models.Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)

	got, ok := b.UserForToken(tok.AccessToken)
	require.True(t, ok)
	assert.Equal(t, u.ID, got.ID)

	b.RevokeToken(tok.AccessToken)
	_, ok = b.UserForToken(tok.AccessToken)
	assert.False(t, ok)
}

func TestRegister_Validation(t *testing.T) {
	b := backend.New(nil)
	tests := []models.Registration{
		{Email: "no-at-sign", Password: "secret1"},
		{Email: "a@b.c", Password: "short"},
	}
	for _, reg := range tests {
		_, err := b.Register(context.Background(), reg)
		var verr *backend.ValidationError
		assert.True(t, errors.As(err, &verr), "registration %+v", reg)
	}
}

func TestStatus_AdvancesToCompletion(t *testing.T) {
	ctx := context.Background()
	b := backend.New(nil)
	u := newUser(t, b, "a@b.c")

	resp, err := b.Generate(ctx, u.ID, topicsRequest("tech"))
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusPendingScript), resp.InitialStatus)
	assert.False(t, resp.IsCacheHit())

	want := []models.DigestStatus{
		models.StatusPendingAudio,
		models.StatusProcessingAudio,
		models.StatusCompleted,
	}
	for _, status := range want {
		snap, err := b.Status(ctx, u.ID, resp.NewsDigestID)
		require.NoError(t, err)
		assert.Equal(t, status, snap.Status)
	}

	snap, err := b.Status(ctx, u.ID, resp.NewsDigestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, snap.Status)
	require.True(t, snap.HasAudio())
	require.NotNil(t, snap.PodcastEpisodeID)
	assert.Equal(t, "/static/audio/1.mp3", *snap.AudioURL)
	assert.NotNil(t, snap.ScriptPreview)
}

func TestStatus_FailingRequest(t *testing.T) {
	ctx := context.Background()
	b := backend.New(nil)
	u := newUser(t, b, "a@b.c")

	resp, err := b.Generate(ctx, u.ID, topicsRequest("fail"))
	require.NoError(t, err)

	snap := completeDigest(t, b, u.ID, resp.NewsDigestID)
	assert.Equal(t, models.StatusFailed, snap.Status)
	require.NotNil(t, snap.ErrorMessage)
	assert.Equal(t, backend.FailedMessage, *snap.ErrorMessage)
	assert.False(t, snap.HasAudio())
}

func TestStatus_OwnershipAndMissing(t *testing.T) {
	ctx := context.Background()
	b := backend.New(nil)
	owner := newUser(t, b, "a@b.c")
	other := newUser(t, b, "x@y.z")

	resp, err := b.Generate(ctx, owner.ID, topicsRequest("tech"))
	require.NoError(t, err)

	_, err = b.Status(ctx, other.ID, resp.NewsDigestID)
	assert.ErrorIs(t, err, backend.ErrForbidden)

	_, err = b.Status(ctx, owner.ID, 999)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestStatus_StepDelay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := backend.New(nil, backend.WithStepDelay(time.Second), backend.WithClock(func() time.Time { return now }))
	u := newUser(t, b, "a@b.c")

	resp, err := b.Generate(ctx, u.ID, topicsRequest("tech"))
	require.NoError(t, err)

	snap, err := b.Status(ctx, u.ID, resp.NewsDigestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingScript, snap.Status)

	now = now.Add(time.Second)
	snap, err = b.Status(ctx, u.ID, resp.NewsDigestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingAudio, snap.Status)
}

func TestGenerate_CacheHit(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	b := backend.New(c)
	u := newUser(t, b, "a@b.c")

	first, err := b.Generate(ctx, u.ID, topicsRequest("tech"))
	require.NoError(t, err)

	// Identical request before completion is not a cache hit.
	pending, err := b.Generate(ctx, u.ID, topicsRequest("tech"))
	require.NoError(t, err)
	assert.False(t, pending.IsCacheHit())

	completeDigest(t, b, u.ID, first.NewsDigestID)
	completeDigest(t, b, u.ID, pending.NewsDigestID)

	hit, err := b.Generate(ctx, u.ID, topicsRequest("tech"))
	require.NoError(t, err)
	assert.True(t, hit.IsCacheHit())
	assert.Equal(t, backend.CacheHitMessage, hit.Message)
	assert.Equal(t, string(models.StatusCompleted), hit.InitialStatus)
	assert.Nil(t, hit.PodcastEpisodeID)

	forced := topicsRequest("tech")
	forced.ForceRegenerate = true
	fresh, err := b.Generate(ctx, u.ID, forced)
	require.NoError(t, err)
	assert.False(t, fresh.IsCacheHit())
	assert.NotEqual(t, hit.NewsDigestID, fresh.NewsDigestID)

	// Other users never hit someone else's cache.
	other := newUser(t, b, "x@y.z")
	miss, err := b.Generate(ctx, other.ID, topicsRequest("tech"))
	require.NoError(t, err)
	assert.False(t, miss.IsCacheHit())
}

func TestGenerate_Validation(t *testing.T) {
	ctx := context.Background()
	b := backend.New(nil)

	_, err := b.Generate(ctx, 1, models.GenerationRequest{Language: "en"})
	var verr *backend.ValidationError
	assert.True(t, errors.As(err, &verr))

	missing := int64(42)
	_, err = b.Generate(ctx, 1, models.GenerationRequest{PredefinedCategoryID: &missing, Language: "en", AudioStyle: "standard"})
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestFingerprint_IgnoresForceAndKeys(t *testing.T) {
	key := "sk-test"
	a := topicsRequest("tech")
	b := topicsRequest("tech")
	b.ForceRegenerate = true
	b.UserOpenAIAPIKey = &key

	assert.Equal(t, backend.Fingerprint(1, a), backend.Fingerprint(1, b))
	assert.NotEqual(t, backend.Fingerprint(1, a), backend.Fingerprint(2, a))
	assert.NotEqual(t, backend.Fingerprint(1, a), backend.Fingerprint(1, topicsRequest("science")))
}

func TestListAndRename(t *testing.T) {
	ctx := context.Background()
	b := backend.New(nil)
	u := newUser(t, b, "a@b.c")

	var episodes []int64
	for _, topic := range []string{"one", "two", "three"} {
		resp, err := b.Generate(ctx, u.ID, topicsRequest(topic))
		require.NoError(t, err)
		snap := completeDigest(t, b, u.ID, resp.NewsDigestID)
		episodes = append(episodes, *snap.PodcastEpisodeID)
	}

	page := b.ListPodcasts(ctx, u.ID, 1, 2)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	require.Len(t, page.Podcasts, 2)
	assert.Equal(t, episodes[2], page.Podcasts[0].PodcastEpisodeID)

	last := b.ListPodcasts(ctx, u.ID, 3, 2)
	assert.Empty(t, last.Podcasts)
	assert.NotNil(t, last.Podcasts)

	detail, err := b.RenameEpisode(ctx, u.ID, episodes[0], "  Morning  ")
	require.NoError(t, err)
	require.NotNil(t, detail.UserGivenName)
	assert.Equal(t, "Morning", *detail.UserGivenName)

	_, err = b.RenameEpisode(ctx, u.ID, episodes[0], "   ")
	var verr *backend.ValidationError
	assert.True(t, errors.As(err, &verr))

	other := newUser(t, b, "x@y.z")
	_, err = b.RenameEpisode(ctx, other.ID, episodes[0], "Mine")
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	b := backend.New(nil)

	p := b.Preferences(ctx, 5)
	assert.Equal(t, int64(5), p.UserID)
	assert.Empty(t, p.PreferredTopics)
	require.NotNil(t, p.DefaultLanguage)

	lang := "es"
	updated := b.UpdatePreferences(ctx, 5, models.UserPreferenceUpdate{
		PreferredTopics: []string{"tech"},
		DefaultLanguage: &lang,
	})
	assert.Equal(t, []string{"tech"}, updated.PreferredTopics)
	assert.Equal(t, "es", *updated.DefaultLanguage)
	require.NotNil(t, updated.DefaultAudioStyle)
	assert.Equal(t, "standard", *updated.DefaultAudioStyle)
}

func TestProfiles(t *testing.T) {
	profiles := backend.New(nil).Profiles(context.Background())
	require.Len(t, profiles, 3)
	for _, p := range profiles {
		assert.True(t, p.IsActive)
	}
}
