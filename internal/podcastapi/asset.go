package podcastapi

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest user-given episode name the API accepts.
const MaxNameLength = 255

// ValidateName trims name and checks it is non-empty and at most
// MaxNameLength characters.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: must be at most %d characters", ErrInvalidName, MaxNameLength)
	}
	return name, nil
}

// RootURL strips the versioned API prefix from baseURL. Static assets such as
// audio files are served from the server root, not under /api/v1.
func RootURL(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return strings.TrimSuffix(baseURL, "/api/v1")
}

// ResolveAssetURL turns a server-relative asset reference into an absolute
// URL. Absolute references are returned unchanged.
func ResolveAssetURL(baseURL, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return RootURL(baseURL) + ref
}
