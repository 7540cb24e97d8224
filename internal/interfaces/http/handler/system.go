package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/creditgw/backend/internal/interfaces/http/dto"
)

// HealthChecker reports the availability of one backing dependency
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// SystemHandler handles liveness and service info endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	checkers  []HealthChecker
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(checkers ...HealthChecker) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		checkers:  checkers,
	}
}

// RegisterRoutes registers system routes at the given group
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/healthz", h.Healthz)
	rg.GET("/system/info", h.Info)
}

// HealthzResponse reports per-dependency health
type HealthzResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthz pings each backing dependency; any failure degrades the status
// and the response code
func (h *SystemHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthzResponse{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	for _, checker := range h.checkers {
		if err := checker.Check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[checker.Name()] = err.Error()
		} else {
			resp.Checks[checker.Name()] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// SystemInfoResponse represents the service information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Info returns basic service information
func (h *SystemHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      "Credit Gateway API",
		Version:   "1.0.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}

// CheckFunc adapts a function to the HealthChecker interface
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

// Name returns the checker name
func (c CheckFunc) Name() string { return c.CheckName }

// Check runs the checker
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }
