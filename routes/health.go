package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupHealthRoutes registers liveness and readiness probes. Readiness
// reports which collaborators are up; the service itself stays up in
// degraded mode.
func SetupHealthRoutes(r *gin.Engine, deps KnowledgeDeps, embedderUp, completerUp bool) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		components := gin.H{
			"graph":     deps.Store.Available(),
			"embedder":  embedderUp,
			"completer": completerUp,
			"queue":     deps.Queue != nil,
		}

		status := http.StatusOK
		if !deps.Store.Available() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status":     "ready",
			"components": components,
		})
	})
}
