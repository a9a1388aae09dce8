// Package podcastapi is the HTTP client for the podcast generation API.
package podcastapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/newscast/pkg/models"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// Client is the interface for the podcast generation API.
type Client interface {
	Register(ctx context.Context, reg models.Registration) (models.User, error)
	Login(ctx context.Context, creds models.Credentials) (models.Token, error)
	CurrentUser(ctx context.Context) (models.User, error)
	Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResponse, error)
	Status(ctx context.Context, id int64) (models.StatusSnapshot, error)
	ListPodcasts(ctx context.Context, page, limit int) (models.PodcastPage, error)
	RenameEpisode(ctx context.Context, episodeID int64, name string) (models.EpisodeDetail, error)
	Preferences(ctx context.Context) (models.UserPreference, error)
	UpdatePreferences(ctx context.Context, update models.UserPreferenceUpdate) (models.UserPreference, error)
	Profiles(ctx context.Context) ([]models.Profile, error)
}

// HTTPClient implements Client using the API's JSON endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTransport sets the round tripper, usually a *Transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *HTTPClient) {
		c.client.Transport = rt
	}
}

// WithTimeout sets an overall per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// NewHTTPClient creates a new API client.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the versioned API base URL.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// AssetURL resolves a server-relative asset reference, such as an audio_url.
func (c *HTTPClient) AssetURL(ref string) string {
	return ResolveAssetURL(c.baseURL, ref)
}

func (c *HTTPClient) Register(ctx context.Context, reg models.Registration) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodPost, PathRegister, reg, &user)
	return user, err
}

func (c *HTTPClient) Login(ctx context.Context, creds models.Credentials) (models.Token, error) {
	var token models.Token
	if err := c.do(ctx, http.MethodPost, PathLogin, creds, &token); err != nil {
		return models.Token{}, err
	}
	if token.AccessToken == "" {
		return models.Token{}, fmt.Errorf("%w: login response has no access token", ErrRequestFailed)
	}
	return token, nil
}

func (c *HTTPClient) CurrentUser(ctx context.Context) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodGet, "/auth/users/me", nil, &user)
	return user, err
}

func (c *HTTPClient) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResponse, error) {
	var resp models.GenerationResponse
	err := c.do(ctx, http.MethodPost, "/podcasts/generate-podcast", req, &resp)
	return resp, err
}

func (c *HTTPClient) Status(ctx context.Context, id int64) (models.StatusSnapshot, error) {
	var snap models.StatusSnapshot
	if err := c.do(ctx, http.MethodGet, "/podcasts/podcast-status/"+strconv.FormatInt(id, 10), nil, &snap); err != nil {
		return models.StatusSnapshot{}, err
	}
	snap.Status = models.ParseDigestStatus(string(snap.Status))
	return snap, nil
}

func (c *HTTPClient) ListPodcasts(ctx context.Context, page, limit int) (models.PodcastPage, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{"page": {strconv.Itoa(page)}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var out models.PodcastPage
	err := c.do(ctx, http.MethodGet, "/podcasts/my-podcasts?"+params.Encode(), nil, &out)
	return out, err
}

func (c *HTTPClient) RenameEpisode(ctx context.Context, episodeID int64, name string) (models.EpisodeDetail, error) {
	name, err := ValidateName(name)
	if err != nil {
		return models.EpisodeDetail{}, err
	}

	var detail models.EpisodeDetail
	path := fmt.Sprintf("/podcasts/episodes/%d/name", episodeID)
	err = c.do(ctx, http.MethodPut, path, models.RenameRequest{UserGivenName: name}, &detail)
	return detail, err
}

func (c *HTTPClient) Preferences(ctx context.Context) (models.UserPreference, error) {
	var pref models.UserPreference
	err := c.do(ctx, http.MethodGet, "/user/preferences/me", nil, &pref)
	return pref, err
}

func (c *HTTPClient) UpdatePreferences(ctx context.Context, update models.UserPreferenceUpdate) (models.UserPreference, error) {
	var pref models.UserPreference
	err := c.do(ctx, http.MethodPut, "/user/preferences/me", update, &pref)
	return pref, err
}

func (c *HTTPClient) Profiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := c.do(ctx, http.MethodGet, "/predefined-categories/", nil, &profiles); err != nil {
		return nil, err
	}
	if profiles == nil {
		return []models.Profile{}, nil
	}
	return profiles, nil
}

// do sends a JSON request and decodes a JSON response into out. Non-2xx
// responses become *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{StatusCode: resp.StatusCode, Detail: parseDetail(b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
