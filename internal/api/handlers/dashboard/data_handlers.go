package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetProfile serves the connected user's WHOOP profile.
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.client.GetProfile(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetRecovery serves recovery records for the requested range.
func (h *Handler) GetRecovery(c *gin.Context) {
	records, err := h.client.GetRecovery(c.Request.Context(), rangeDays(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// GetStrain serves cycle strain records for the requested range.
func (h *Handler) GetStrain(c *gin.Context) {
	records, err := h.client.GetStrain(c.Request.Context(), rangeDays(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// GetSleep serves sleep records for the requested range.
func (h *Handler) GetSleep(c *gin.Context) {
	records, err := h.client.GetSleep(c.Request.Context(), rangeDays(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// GetWorkouts serves workout records for the requested range.
func (h *Handler) GetWorkouts(c *gin.Context) {
	records, err := h.client.GetWorkouts(c.Request.Context(), rangeDays(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
