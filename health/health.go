package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

type ReadinessCheck interface {
	IsReady(ctx context.Context) error
	Name() string
}

type HealthHandler struct {
	checks []ReadinessCheck
}

func NewHealthHandler(checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.IsReady(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[check.Name()] = err.Error()
			continue
		}
		results[check.Name()] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

func RegisterHealthRoutes(h *HealthHandler, route *gin.Engine) {
	health := route.Group("/health")

	health.GET("/live", h.Live)
	health.GET("/ready", h.Ready)
}
