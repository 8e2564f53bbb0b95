// Package dashboard contains the HTTP handlers behind the PulseBoard
// dashboard API: the WHOOP connect flow and the gateway-backed data routes.
package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	auth "github.com/pulseboard/pulseboard/internal/auth/whoop"
	"github.com/pulseboard/pulseboard/internal/whoop"
)

// defaultRangeDays is the date range used when ?days is absent or invalid.
const defaultRangeDays = 7

// Handler serves the dashboard API routes over one WHOOP session client.
type Handler struct {
	client *whoop.Client
}

// NewHandler creates a dashboard handler.
func NewHandler(client *whoop.Client) *Handler {
	return &Handler{client: client}
}

// rangeDays parses the ?days query parameter.
func rangeDays(c *gin.Context) int {
	raw := c.Query("days")
	if raw == "" {
		return defaultRangeDays
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return defaultRangeDays
	}
	return days
}

// writeError maps gateway and auth failures onto HTTP responses: the typed
// auth taxonomy carries its own status, upstream APIErrors keep theirs, and
// anything else is a 500.
func writeError(c *gin.Context, err error) {
	var authErr *auth.AuthenticationError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Code, gin.H{
			"status": "error",
			"type":   authErr.Type,
			"error":  auth.GetUserFriendlyMessage(authErr),
		})
		return
	}

	var oauthErr *auth.OAuthError
	if errors.As(err, &oauthErr) {
		status := oauthErr.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"status": "error", "type": oauthErr.Code, "error": oauthErr.Error()})
		return
	}

	var apiErr *whoop.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.StatusCode, gin.H{"status": "error", "error": apiErr.Body})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
}
