package dashboard

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// GetAuthURL returns a fresh WHOOP authorization URL for the Connect page.
// Each call generates and stores a new PKCE challenge, invalidating any
// previous in-flight attempt.
func (h *Handler) GetAuthURL(c *gin.Context) {
	loginURL, err := h.client.GetLoginURL()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "url": loginURL})
}

// Connect is the browser redirect target of the authorization flow. WHOOP
// sends either code+state or error+error_description; provider errors are
// surfaced to the user, never swallowed.
func (h *Handler) Connect(c *gin.Context) {
	if errCode := strings.TrimSpace(c.Query("error")); errCode != "" {
		description := strings.TrimSpace(c.Query("error_description"))
		log.Warnf("authorization denied by provider: %s (%s)", errCode, description)
		detail := errCode
		if description != "" {
			detail = fmt.Sprintf("%s: %s", errCode, description)
		}
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", connectFailurePage(detail))
		return
	}

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", connectFailurePage("missing authorization code"))
		return
	}

	if err := h.client.HandleAuthCallback(c.Request.Context(), code, c.Query("state")); err != nil {
		log.Errorf("authorization callback failed: %v", err)
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", connectFailurePage(err.Error()))
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(connectSuccessHTML))
}

// GetAuthStatus reports whether a WHOOP session is held and when the access
// token expires.
func (h *Handler) GetAuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authenticated": h.client.IsAuthenticated(),
		"expires_at":    h.client.ExpiresAt(),
	})
}

// PostLogout clears the WHOOP session.
func (h *Handler) PostLogout(c *gin.Context) {
	if err := h.client.Logout(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
