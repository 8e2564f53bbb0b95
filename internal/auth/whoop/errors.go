// Package whoop implements the OAuth 2.0 Authorization Code flow with PKCE
// against the WHOOP platform. It provides PKCE challenge generation,
// authorization URL construction, the code-for-token exchange, token refresh,
// and the local callback server used by the terminal login flow.
package whoop

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// OAuthError represents an error payload returned by the WHOOP provider.
type OAuthError struct {
	// Code is the OAuth error code, e.g. "invalid_grant".
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
	// StatusCode is the HTTP status code associated with the error.
	StatusCode int `json:"-"`
}

// Error returns a string representation of the OAuth error.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("OAuth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// NewOAuthError creates a new OAuth error with the specified code, description and status code.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{Code: code, Description: description, StatusCode: statusCode}
}

// ParseOAuthErrorBody builds an OAuthError from a provider response body.
// Bodies that are not JSON or carry no error field fall back to a generic
// code with the raw body as description.
func ParseOAuthErrorBody(statusCode int, body []byte) *OAuthError {
	code := gjson.GetBytes(body, "error").String()
	description := gjson.GetBytes(body, "error_description").String()
	if code == "" {
		code = "provider_error"
		if description == "" {
			description = string(body)
		}
	}
	return NewOAuthError(code, description, statusCode)
}

// AuthenticationError represents authentication-related errors raised by the
// PulseBoard auth subsystem itself, as opposed to provider payloads.
type AuthenticationError struct {
	// Type is the type of authentication error.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error that caused this authentication error.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Is matches two authentication errors by type, so sentinel comparisons like
// errors.Is(err, ErrInvalidState) work on wrapped instances.
func (e *AuthenticationError) Is(target error) bool {
	var other *AuthenticationError
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type
}

// Common authentication error values.
var (
	// ErrNotConfigured is raised before any network call when the WHOOP client
	// id is missing or still the placeholder sentinel.
	ErrNotConfigured = &AuthenticationError{
		Type:    "not_configured",
		Message: "WHOOP client ID not configured. Please set a valid client ID.",
		Code:    http.StatusBadRequest,
	}

	// ErrInvalidState is raised when the callback state does not match the
	// stored one; the exchange is never attempted.
	ErrInvalidState = &AuthenticationError{
		Type:    "invalid_state",
		Message: "OAuth state parameter is invalid",
		Code:    http.StatusBadRequest,
	}

	// ErrCodeExchangeFailed is raised when the provider rejects the
	// authorization-code or refresh-token exchange.
	ErrCodeExchangeFailed = &AuthenticationError{
		Type:    "code_exchange_failed",
		Message: "Failed to exchange authorization code for tokens",
		Code:    http.StatusBadRequest,
	}

	// ErrNoRefreshToken is raised when a refresh is required but no refresh
	// token is held. The session cannot be repaired without re-authentication.
	ErrNoRefreshToken = &AuthenticationError{
		Type:    "no_refresh_token",
		Message: "No refresh token available; re-authentication required",
		Code:    http.StatusUnauthorized,
	}

	// ErrNotAuthenticated is raised when a data call is attempted without a session.
	ErrNotAuthenticated = &AuthenticationError{
		Type:    "not_authenticated",
		Message: "Not authenticated with WHOOP",
		Code:    http.StatusUnauthorized,
	}

	// ErrSessionExpired is raised when neither the held access token nor a
	// refresh can produce a live session.
	ErrSessionExpired = &AuthenticationError{
		Type:    "session_expired",
		Message: "WHOOP session expired; please connect again",
		Code:    http.StatusUnauthorized,
	}

	// ErrServerStartFailed is raised when the local OAuth callback server fails to start.
	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "Failed to start OAuth callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse is raised when the OAuth callback port is already bound.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
		Code:    13, // Special exit code for port-in-use
	}

	// ErrCallbackTimeout is raised when no callback arrives in time.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}
)

// NewAuthenticationError creates a new authentication error carrying a cause.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authenticationError *AuthenticationError
	return errors.As(err, &authenticationError)
}

// IsOAuthError checks if an error is a provider OAuth error.
func IsOAuthError(err error) bool {
	var oAuthError *OAuthError
	return errors.As(err, &oAuthError)
}

// GetUserFriendlyMessage returns a message suitable for the dashboard UI.
func GetUserFriendlyMessage(err error) string {
	switch {
	case IsAuthenticationError(err):
		var authErr *AuthenticationError
		errors.As(err, &authErr)
		switch authErr.Type {
		case "not_configured":
			return "WHOOP integration is not configured yet. Add your client ID and secret first."
		case "session_expired", "no_refresh_token":
			return "Your WHOOP session has expired. Please connect again."
		case "not_authenticated":
			return "Please connect your WHOOP account to continue."
		case "callback_timeout":
			return "Authentication timed out. Please try again."
		case "port_in_use":
			return "The callback port is already in use. Close the application using it and try again."
		default:
			return "Authentication failed. Please try again."
		}
	case IsOAuthError(err):
		var oauthErr *OAuthError
		errors.As(err, &oauthErr)
		switch oauthErr.Code {
		case "access_denied":
			return "Authentication was cancelled or denied."
		case "invalid_request":
			return "Invalid authentication request. Please try again."
		case "server_error":
			return "WHOOP authentication server error. Please try again later."
		default:
			return fmt.Sprintf("Authentication failed: %s", oauthErr.Description)
		}
	default:
		return "An unexpected error occurred. Please try again."
	}
}
