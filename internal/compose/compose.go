// Package compose turns a selected content-source mode and raw form fields into
// one normalized generation request.
package compose

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/newscast/pkg/models"
)

// Mode selects which content source a request is built from. Exactly one mode
// is active per request.
type Mode int

const (
	UrlList Mode = iota
	Profile
	StoredPreferences
	AdHoc
)

func (m Mode) String() string {
	switch m {
	case UrlList:
		return "urls"
	case Profile:
		return "profile"
	case StoredPreferences:
		return "preferences"
	case AdHoc:
		return "adhoc"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a CLI mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "urls", "url", "urllist":
		return UrlList, nil
	case "profile":
		return Profile, nil
	case "preferences", "prefs", "stored":
		return StoredPreferences, nil
	case "adhoc", "ad-hoc":
		return AdHoc, nil
	default:
		return 0, fmt.Errorf("unknown mode %q: must be one of urls, profile, preferences, adhoc", s)
	}
}

// Fields holds raw, unvalidated form input.
type Fields struct {
	URLs            []string
	Topics          []string
	Keywords        []string
	RSSURLs         []string
	ExcludeKeywords []string
	ExcludeDomains  []string
	ProfileID       *int64
	Language        string
	AudioStyle      string
	ForceRegenerate bool
	OpenAIKey       string
	GoogleKey       string
}

// Composer builds GenerationRequests. All methods are pure functions with no
// side effects. Zero value is ready to use.
type Composer struct{}

// Compose validates f against mode and returns the request payload. Errors are
// always *ValidationError.
func (Composer) Compose(mode Mode, f Fields) (models.GenerationRequest, error) {
	language := strings.TrimSpace(f.Language)
	audioStyle := strings.TrimSpace(f.AudioStyle)
	if language == "" {
		return models.GenerationRequest{}, newValidationError(MissingRequiredField, "language")
	}
	if audioStyle == "" {
		return models.GenerationRequest{}, newValidationError(MissingRequiredField, "audio_style")
	}

	req := models.GenerationRequest{
		Language:         language,
		AudioStyle:       audioStyle,
		ForceRegenerate:  f.ForceRegenerate,
		UserOpenAIAPIKey: optionalString(f.OpenAIKey),
		UserGoogleAPIKey: optionalString(f.GoogleKey),
	}

	switch mode {
	case UrlList:
		urls := Clean(f.URLs)
		if len(urls) == 0 {
			return models.GenerationRequest{}, newValidationError(EmptySourceList, "specific_article_urls")
		}
		req.SpecificArticleURLs = urls

	case Profile:
		if f.ProfileID == nil {
			return models.GenerationRequest{}, newValidationError(NoProfileSelected, "predefined_category_id")
		}
		id := *f.ProfileID
		req.PredefinedCategoryID = &id
		applyOverrides(&req, f)

	case StoredPreferences:
		req.UseUserDefaultPreferences = true
		applyOverrides(&req, f)

	case AdHoc:
		req.RequestTopics = cleanNonNil(f.Topics)
		req.RequestKeywords = cleanNonNil(f.Keywords)
		req.RequestRSSURLs = cleanNonNil(f.RSSURLs)
		req.RequestExcludeKeywords = cleanNonNil(f.ExcludeKeywords)
		req.RequestExcludeSourceDomains = cleanNonNil(f.ExcludeDomains)

	default:
		return models.GenerationRequest{}, &ValidationError{
			Kind:    UnknownMode,
			Field:   "mode",
			Message: fmt.Sprintf("unknown generation mode %d", int(mode)),
		}
	}

	return req, nil
}

// Compose is shorthand for Composer{}.Compose.
func Compose(mode Mode, f Fields) (models.GenerationRequest, error) {
	return Composer{}.Compose(mode, f)
}

// applyOverrides sets the criteria lists for Profile and StoredPreferences.
// An override that cleans to nothing is sent as null so the server falls back
// to the profile's or stored preference's own value.
func applyOverrides(req *models.GenerationRequest, f Fields) {
	req.RequestTopics = Clean(f.Topics)
	req.RequestKeywords = Clean(f.Keywords)
	req.RequestRSSURLs = Clean(f.RSSURLs)
	req.RequestExcludeKeywords = Clean(f.ExcludeKeywords)
	req.RequestExcludeSourceDomains = Clean(f.ExcludeDomains)
}

// Clean trims every item and drops empty ones. Returns nil when nothing remains.
func Clean(items []string) []string {
	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// cleanNonNil is Clean but returns an empty, non-nil slice when nothing remains.
func cleanNonNil(items []string) []string {
	out := Clean(items)
	if out == nil {
		return []string{}
	}
	return out
}

// SplitList splits a comma-separated value into its raw items.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
