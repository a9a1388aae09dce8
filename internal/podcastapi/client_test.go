package podcastapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/newscast/pkg/models"
)

// --- helpers ---

func apiServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(baseURL+"/api/v1", WithTimeout(5*time.Second))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- Generate ---

func TestGenerate_SendsRequestAndDecodesResponse(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/podcasts/generate-podcast" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}

		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if v, ok := raw["request_topics"]; !ok || v != nil {
			t.Errorf("request_topics should be present and null, got %v (present=%v)", v, ok)
		}
		if raw["language"] != "en" {
			t.Errorf("unexpected language: %v", raw["language"])
		}

		writeJSON(w, http.StatusAccepted, models.GenerationResponse{
			NewsDigestID:  42,
			InitialStatus: "PENDING_SCRIPT",
			Message:       "Podcast generation process with custom preferences started.",
		})
	})

	c := newTestClient(t, ts.URL)
	resp, err := c.Generate(context.Background(), models.GenerationRequest{
		SpecificArticleURLs: []string{"https://a.com/1"},
		Language:            "en",
		AudioStyle:          "standard",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.NewsDigestID != 42 {
		t.Errorf("expected id 42, got %d", resp.NewsDigestID)
	}
	if resp.IsCacheHit() {
		t.Error("expected no cache hit")
	}
}

// --- Status ---

func TestStatus_NormalizesStatus(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/podcasts/podcast-status/42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"news_digest_id":42,"status":"completed","audio_url":"/static/a.mp3",
			"created_at":"2024-05-01T10:00:00.123456","updated_at":"2024-05-01T10:01:00Z"}`))
	})

	snap, err := newTestClient(t, ts.URL).Status(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != models.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", snap.Status)
	}
	if !snap.HasAudio() {
		t.Error("expected audio url")
	}
	if snap.CreatedAt.IsZero() {
		t.Error("expected created_at to parse")
	}
}

func TestStatus_NotFound(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, models.ErrorDetail{Detail: "NewsDigest not found"})
	})

	_, err := newTestClient(t, ts.URL).Status(context.Background(), 7)
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if Detail(err) != "NewsDigest not found" {
		t.Errorf("unexpected detail: %q", Detail(err))
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}

func TestStatus_Unauthorized(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, models.ErrorDetail{Detail: "Could not validate credentials"})
	})

	_, err := newTestClient(t, ts.URL).Status(context.Background(), 7)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if errors.Is(err, ErrRequestFailed) {
		t.Error("401 should not match ErrRequestFailed")
	}
}

// --- Auth ---

func TestLogin(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login/access-token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var creds models.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorDetail{Detail: "Incorrect email or password"})
			return
		}
		writeJSON(w, http.StatusOK, models.Token{AccessToken: "tok", TokenType: "bearer"})
	})
	c := newTestClient(t, ts.URL)

	tok, err := c.Login(context.Background(), models.Credentials{Email: "a@b.c", Password: "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "tok" {
		t.Errorf("unexpected token: %q", tok.AccessToken)
	}

	_, err = c.Login(context.Background(), models.Credentials{Email: "a@b.c", Password: "nope"})
	if Detail(err) != "Incorrect email or password" {
		t.Errorf("unexpected detail: %q", Detail(err))
	}
}

func TestLogin_EmptyToken(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token_type": "bearer"})
	})

	_, err := newTestClient(t, ts.URL).Login(context.Background(), models.Credentials{})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}

func TestRegister_ValidationDetailList(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"}]}`))
	})

	_, err := newTestClient(t, ts.URL).Register(context.Background(), models.Registration{Email: "bad"})
	if Detail(err) != "value is not a valid email address" {
		t.Errorf("unexpected detail: %q", Detail(err))
	}
}

// --- History / rename ---

func TestListPodcasts_Pagination(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "10" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, models.PodcastPage{Total: 25, Page: 2, Limit: 10, Podcasts: []models.PodcastListItem{}})
	})

	page, err := newTestClient(t, ts.URL).ListPodcasts(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalPages() != 3 {
		t.Errorf("expected 3 pages, got %d", page.TotalPages())
	}
}

func TestRenameEpisode(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/podcasts/episodes/9/name" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body models.RenameRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.UserGivenName != "Morning brief" {
			t.Errorf("name not trimmed: %q", body.UserGivenName)
		}
		writeJSON(w, http.StatusOK, models.EpisodeDetail{ID: 9, UserGivenName: &body.UserGivenName})
	})

	detail, err := newTestClient(t, ts.URL).RenameEpisode(context.Background(), 9, "  Morning brief ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.UserGivenName == nil || *detail.UserGivenName != "Morning brief" {
		t.Errorf("unexpected detail: %+v", detail)
	}
}

func TestRenameEpisode_InvalidNameNeverSent(t *testing.T) {
	called := false
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	c := newTestClient(t, ts.URL)

	for _, name := range []string{"", "   ", strings.Repeat("x", MaxNameLength+1)} {
		if _, err := c.RenameEpisode(context.Background(), 1, name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
	if called {
		t.Error("server should not be called for invalid names")
	}
}

// --- Preferences / profiles ---

func TestUpdatePreferences_OmitsNilFields(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["preferred_topics"]; ok {
			t.Error("nil preferred_topics should be omitted")
		}
		if raw["default_language"] != "fr" {
			t.Errorf("unexpected default_language: %v", raw["default_language"])
		}
		lang := "fr"
		writeJSON(w, http.StatusOK, models.UserPreference{ID: 1, DefaultLanguage: &lang})
	})

	lang := "fr"
	pref, err := newTestClient(t, ts.URL).UpdatePreferences(context.Background(), models.UserPreferenceUpdate{DefaultLanguage: &lang})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pref.DefaultLanguage == nil || *pref.DefaultLanguage != "fr" {
		t.Errorf("unexpected preference: %+v", pref)
	}
}

func TestProfiles_EmptyListNotNil(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/predefined-categories/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`null`))
	})

	profiles, err := newTestClient(t, ts.URL).Profiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profiles == nil || len(profiles) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", profiles)
	}
}

// --- Transport errors ---

func TestClient_Unreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1/api/v1")
	_, err := c.CurrentUser(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	ts := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	c := NewHTTPClient(ts.URL+"/api/v1", WithTimeout(20*time.Millisecond))
	_, err := c.CurrentUser(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestAssetURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"http://localhost:8000/api/v1", "/static/audio/1.mp3", "http://localhost:8000/static/audio/1.mp3"},
		{"http://localhost:8000/api/v1/", "static/a.mp3", "http://localhost:8000/static/a.mp3"},
		{"http://localhost:8000/api/v1", "https://cdn.example.com/a.mp3", "https://cdn.example.com/a.mp3"},
		{"http://localhost:8000", "/static/a.mp3", "http://localhost:8000/static/a.mp3"},
		{"http://localhost:8000/api/v1", "", ""},
	}
	for _, tt := range tests {
		if got := ResolveAssetURL(tt.base, tt.ref); got != tt.want {
			t.Errorf("ResolveAssetURL(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}
