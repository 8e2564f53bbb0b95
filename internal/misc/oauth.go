// Package misc carries small shared helpers used by the auth flow and the
// command-line entry point.
package misc

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// LogSavingCredentials emits a consistent message when persisting auth material.
func LogSavingCredentials(path string) {
	if path == "" {
		return
	}
	// filepath.Clean keeps the message stable even if callers pass redundant separators.
	fmt.Printf("Saving credentials to %s\n", filepath.Clean(path))
}

// OAuthCallback captures the parsed OAuth callback parameters.
type OAuthCallback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseOAuthCallback extracts OAuth parameters from a callback URL pasted by
// the user. It returns nil when the input is empty, so callers can keep
// waiting for the local callback server instead.
func ParseOAuthCallback(input string) (*OAuthCallback, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		switch {
		case strings.HasPrefix(candidate, "?"):
			candidate = "http://localhost" + candidate
		case strings.ContainsAny(candidate, "/?#") || strings.Contains(candidate, ":"):
			candidate = "http://" + candidate
		case strings.Contains(candidate, "="):
			candidate = "http://localhost/?" + candidate
		default:
			return nil, fmt.Errorf("invalid callback URL")
		}
	}

	parsedURL, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}

	query := parsedURL.Query()
	callback := &OAuthCallback{
		Code:             strings.TrimSpace(query.Get("code")),
		State:            strings.TrimSpace(query.Get("state")),
		Error:            strings.TrimSpace(query.Get("error")),
		ErrorDescription: strings.TrimSpace(query.Get("error_description")),
	}

	if callback.Code == "" && callback.Error == "" {
		return nil, fmt.Errorf("callback URL carries neither code nor error")
	}
	return callback, nil
}
