package models

import (
	"log/slog"
	"strings"
)

// GenerationRequest is the payload for POST /podcasts/generate-podcast.
//
// Nil slices encode as JSON null ("no override"); empty non-nil slices encode
// as [] ("override with nothing"). The server treats the two differently.
type GenerationRequest struct {
	PredefinedCategoryID        *int64   `json:"predefined_category_id"`
	SpecificArticleURLs         []string `json:"specific_article_urls"`
	UseUserDefaultPreferences   bool     `json:"use_user_default_preferences"`
	RequestTopics               []string `json:"request_topics"`
	RequestKeywords             []string `json:"request_keywords"`
	RequestRSSURLs              []string `json:"request_rss_urls"`
	RequestExcludeKeywords      []string `json:"request_exclude_keywords"`
	RequestExcludeSourceDomains []string `json:"request_exclude_source_domains"`
	Language                    string   `json:"language"`
	AudioStyle                  string   `json:"audio_style"`
	ForceRegenerate             bool     `json:"force_regenerate"`
	UserOpenAIAPIKey            *string  `json:"user_openai_api_key"`
	UserGoogleAPIKey            *string  `json:"user_google_api_key"`
}

// LogValue keeps user-supplied API keys out of logs.
func (r GenerationRequest) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("language", r.Language),
		slog.String("audio_style", r.AudioStyle),
		slog.Bool("force_regenerate", r.ForceRegenerate),
		slog.Bool("use_user_default_preferences", r.UseUserDefaultPreferences),
		slog.Int("article_urls", len(r.SpecificArticleURLs)),
		slog.Bool("openai_key", r.UserOpenAIAPIKey != nil),
		slog.Bool("google_key", r.UserGoogleAPIKey != nil),
	}
	if r.PredefinedCategoryID != nil {
		attrs = append(attrs, slog.Int64("profile_id", *r.PredefinedCategoryID))
	}
	return slog.GroupValue(attrs...)
}

// GenerationResponse is returned when a generation request is accepted.
type GenerationResponse struct {
	NewsDigestID     int64  `json:"news_digest_id"`
	InitialStatus    string `json:"initial_status"`
	Message          string `json:"message"`
	PodcastEpisodeID *int64 `json:"podcast_episode_id,omitempty"`
}

// IsCacheHit reports whether the server says it served an existing podcast.
// The API only signals this in the human-readable message.
func (r GenerationResponse) IsCacheHit() bool {
	return strings.Contains(strings.ToLower(r.Message), "cache")
}

// StatusSnapshot is one response of GET /podcasts/podcast-status/{id}.
type StatusSnapshot struct {
	NewsDigestID     int64        `json:"news_digest_id"`
	Status           DigestStatus `json:"status"`
	AudioURL         *string      `json:"audio_url,omitempty"`
	ScriptPreview    *string      `json:"script_preview,omitempty"`
	ErrorMessage     *string      `json:"error_message,omitempty"`
	CreatedAt        Timestamp    `json:"created_at"`
	UpdatedAt        Timestamp    `json:"updated_at"`
	PodcastEpisodeID *int64       `json:"podcast_episode_id,omitempty"`
	UserGivenName    *string      `json:"user_given_name,omitempty"`
}

// HasAudio reports whether the snapshot references an audio artifact.
func (s StatusSnapshot) HasAudio() bool {
	return s.AudioURL != nil && *s.AudioURL != ""
}

// PodcastListItem is one entry of a user's podcast history.
type PodcastListItem struct {
	PodcastEpisodeID       int64      `json:"podcast_episode_id"`
	NewsDigestID           int64      `json:"news_digest_id"`
	UserGivenName          *string    `json:"user_given_name,omitempty"`
	AudioURL               *string    `json:"audio_url,omitempty"`
	OriginalRequestSummary *string    `json:"original_request_summary,omitempty"`
	Language               string     `json:"language,omitempty"`
	AudioStyle             *string    `json:"audio_style,omitempty"`
	DurationSeconds        *int       `json:"duration_seconds,omitempty"`
	DigestCreatedAt        Timestamp  `json:"digest_created_at"`
	EpisodeCreatedAt       Timestamp  `json:"episode_created_at"`
	EpisodeExpiresAt       *Timestamp `json:"episode_expires_at,omitempty"`
}

// DisplayName falls back to the generation date when the episode is unnamed.
func (p PodcastListItem) DisplayName() string {
	if p.UserGivenName != nil && strings.TrimSpace(*p.UserGivenName) != "" {
		return *p.UserGivenName
	}
	return "Podcast from " + p.DigestCreatedAt.Format("Jan 2, 2006")
}

// PodcastPage is one page of GET /podcasts/my-podcasts.
type PodcastPage struct {
	Podcasts []PodcastListItem `json:"podcasts"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// TotalPages returns the page count for the page's limit.
func (p PodcastPage) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// EpisodeDetail is returned after renaming an episode.
type EpisodeDetail struct {
	ID              int64      `json:"id"`
	NewsDigestID    int64      `json:"news_digest_id"`
	UserGivenName   *string    `json:"user_given_name,omitempty"`
	AudioURL        *string    `json:"audio_url,omitempty"`
	Language        string     `json:"language"`
	AudioStyle      *string    `json:"audio_style,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	CreatedAt       Timestamp  `json:"created_at"`
	ExpiresAt       *Timestamp `json:"expires_at,omitempty"`
}

// RenameRequest is the body of PUT /podcasts/episodes/{id}/name.
type RenameRequest struct {
	UserGivenName string `json:"user_given_name"`
}

// ErrorDetail is the error body shape used by every API endpoint.
type ErrorDetail struct {
	Detail string `json:"detail"`
}
