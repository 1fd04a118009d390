package router

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"companion-engine/backend/pkg/health"
)

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	checker := health.NewChecker(r.Logger, 30*time.Second)

	checker.RegisterDatabaseCheck(func() error {
		return r.Container.DB.Exec("SELECT 1").Error
	})
	checker.RegisterCheck("websocket", func() (health.Status, string, error) {
		active := len(r.Hub.GetActiveConnections())
		return health.StatusUp, fmt.Sprintf("%d active sessions", active), nil
	})
	if base := r.Container.Config.GenAI.MediaBaseURL; base != "" {
		checker.RegisterAPICheck("media", base+"/healthz", nil)
	}

	checker.Start()

	healthHandler := func(c *gin.Context) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		status := 200
		verdict := "ok"
		if !checker.IsSystemHealthy() {
			status = 503
			verdict = "unavailable"
		}

		c.JSON(status, gin.H{
			"status":     verdict,
			"version":    os.Getenv("APP_VERSION"),
			"uptime":     time.Since(startTime).String(),
			"timestamp":  time.Now().Format(time.RFC3339),
			"components": checker.GetStatus(),
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		})
	}

	// Register both health endpoint paths for compatibility
	r.Engine.GET("/health", healthHandler)
	r.Engine.GET("/api/health", healthHandler)
}
