package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/monitoring"
)

// registerHealthRoutes mounts /health, /health/live and /health/ready both at the root and under /api.
// /health is the terse readiness answer for load balancers.
func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if manager == nil {
		manager = monitoring.NewHealthManager()
	}

	routes := map[string]gin.HandlerFunc{
		"/health":       healthHandler(manager.EvaluateReadiness, false),
		"/health/live":  healthHandler(manager.EvaluateLiveness, true),
		"/health/ready": healthHandler(manager.EvaluateReadiness, true),
	}
	if !cfg.Monitoring.Health.Enabled {
		for path := range routes {
			routes[path] = func(c *gin.Context) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "status": "disabled"})
			}
		}
	}

	for _, router := range []gin.IRouter{r, r.Group("/api")} {
		for path, handler := range routes {
			router.GET(path, handler)
		}
	}
}

func healthHandler(evaluate func(context.Context) monitoring.HealthReport, verbose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := evaluate(c.Request.Context())
		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		if !verbose {
			report.Checks = nil
		}
		c.JSON(status, report)
	}
}
