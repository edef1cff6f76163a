package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Healthz(ping Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ensureDBConnection(c.Request.Context(), ping); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, "GET /healthz", "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
