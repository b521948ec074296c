package release

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every resolution failure matches exactly one of them via
// errors.Is.
var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrNetwork             = errors.New("network error")
	ErrMetadata            = errors.New("malformed release metadata")
	ErrNotFound            = errors.New("not found")
)

// HTTPError is a non-success response from the release API.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.StatusCode, body)
}

// Unwrap classifies the response: 404 is ErrNotFound, anything else is
// ErrNetwork.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == 404 {
		return ErrNotFound
	}
	return ErrNetwork
}

// NoMatchError reports that no asset name contains the pattern.
type NoMatchError struct {
	Repository string
	Tag        string
	Pattern    string
	Available  []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no asset matching %q in %s release %s (available: %s)",
		e.Pattern, e.Repository, e.Tag, strings.Join(e.Available, ", "))
}

func (e *NoMatchError) Unwrap() error {
	return ErrNotFound
}
