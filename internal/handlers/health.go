package handlers

import (
	"net/http"
	"time"

	"hoiku-portal/internal/database"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Health reports liveness and database reachability.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, dbStatus := http.StatusOK, "ok"
		if err := database.Ping(c.Request.Context(), db); err != nil {
			status, dbStatus = http.StatusServiceUnavailable, "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"db":        dbStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
