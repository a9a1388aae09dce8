package models

import "strings"

// DigestStatus is the server-side lifecycle state of one generation request.
type DigestStatus string

const (
	StatusPendingScript   DigestStatus = "PENDING_SCRIPT"
	StatusPendingAudio    DigestStatus = "PENDING_AUDIO"
	StatusProcessingAudio DigestStatus = "PROCESSING_AUDIO"
	StatusCompleted       DigestStatus = "COMPLETED"
	StatusFailed          DigestStatus = "FAILED"
)

// IsTerminal reports whether the server will not move the digest any further.
func (s DigestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s DigestStatus) Valid() bool {
	switch s {
	case StatusPendingScript, StatusPendingAudio, StatusProcessingAudio, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// ParseDigestStatus normalizes a status string from the API. Unknown values are
// returned as-is so callers can still display them.
func ParseDigestStatus(s string) DigestStatus {
	return DigestStatus(strings.ToUpper(strings.TrimSpace(s)))
}

// Job tracks one generation request on the client. The API returns a
// news_digest_id on submission; the client polls the status endpoint until the
// digest is completed (with audio) or failed.
type Job struct {
	ID              int64        `json:"id"`
	Status          DigestStatus `json:"status"`
	IsCachedOnStart bool         `json:"is_cached_on_start"`
	InitialMessage  string       `json:"initial_message,omitempty"`
	EpisodeID       *int64       `json:"episode_id,omitempty"`
	UserGivenName   *string      `json:"user_given_name,omitempty"`
	ScriptPreview   *string      `json:"script_preview,omitempty"`
	AudioURL        *string      `json:"audio_url,omitempty"`
	ErrorMessage    *string      `json:"error_message,omitempty"`
	CreatedAt       Timestamp    `json:"created_at"`
	UpdatedAt       Timestamp    `json:"updated_at"`
}

// HasAudio reports whether the job carries a non-empty audio artifact URL.
func (j Job) HasAudio() bool {
	return j.AudioURL != nil && *j.AudioURL != ""
}

// HasError reports whether the job carries a non-empty error message.
func (j Job) HasError() bool {
	return j.ErrorMessage != nil && *j.ErrorMessage != ""
}

// IsNamed reports whether the user has labelled the job's episode.
func (j Job) IsNamed() bool {
	return j.UserGivenName != nil && *j.UserGivenName != ""
}
