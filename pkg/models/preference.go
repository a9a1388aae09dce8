package models

// UserPreference holds a user's stored generation defaults.
type UserPreference struct {
	ID                   int64     `json:"id"`
	UserID               int64     `json:"user_id"`
	PreferredTopics      []string  `json:"preferred_topics"`
	CustomKeywords       []string  `json:"custom_keywords"`
	IncludeSourceRSSURLs []string  `json:"include_source_rss_urls"`
	ExcludeKeywords      []string  `json:"exclude_keywords"`
	ExcludeSourceDomains []string  `json:"exclude_source_domains"`
	DefaultLanguage      *string   `json:"default_language"`
	DefaultAudioStyle    *string   `json:"default_audio_style"`
	CreatedAt            Timestamp `json:"created_at"`
	UpdatedAt            Timestamp `json:"updated_at"`
}

// UserPreferenceUpdate is the body of PUT /user/preferences/me. Nil fields are
// omitted so the server leaves them untouched.
type UserPreferenceUpdate struct {
	PreferredTopics      []string `json:"preferred_topics,omitempty"`
	CustomKeywords       []string `json:"custom_keywords,omitempty"`
	IncludeSourceRSSURLs []string `json:"include_source_rss_urls,omitempty"`
	ExcludeKeywords      []string `json:"exclude_keywords,omitempty"`
	ExcludeSourceDomains []string `json:"exclude_source_domains,omitempty"`
	DefaultLanguage      *string  `json:"default_language,omitempty"`
	DefaultAudioStyle    *string  `json:"default_audio_style,omitempty"`
}

// Profile is a server-curated bundle of default sources and criteria
// (a "predefined category" on the wire).
type Profile struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Description          *string    `json:"description,omitempty"`
	RSSURLs              []string   `json:"rss_urls"`
	Topics               []string   `json:"topics"`
	Keywords             []string   `json:"keywords"`
	ExcludeKeywords      []string   `json:"exclude_keywords"`
	ExcludeSourceDomains []string   `json:"exclude_source_domains"`
	Language             *string    `json:"language,omitempty"`
	AudioStyle           *string    `json:"audio_style,omitempty"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            Timestamp  `json:"created_at"`
	UpdatedAt            *Timestamp `json:"updated_at,omitempty"`
}
