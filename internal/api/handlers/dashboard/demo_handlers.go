package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/mockdata"
)

// GetDemoWeekly serves a generated 7-day recovery/strain series so the
// dashboard renders before a WHOOP account is connected.
func (h *Handler) GetDemoWeekly(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"records": mockdata.WeeklySeries()})
}

// GetDemoSleep serves a generated 14-night sleep series.
func (h *Handler) GetDemoSleep(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"records": mockdata.SleepSeries()})
}
