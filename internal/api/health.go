package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database"`
	Time     string                 `json:"time"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

type healthChecker interface {
	Health(ctx context.Context) error
}

type sessionCounter interface {
	Count() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       healthChecker
	sessions sessionCounter
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database healthChecker, sessions sessionCounter) *HealthHandler {
	return &HealthHandler{db: database, sessions: sessions}
}

// Check handles GET /api/health
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
		Details: map[string]interface{}{
			"active_sessions": h.sessions.Count(),
		},
	}

	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database healthChecker, sessions sessionCounter) {
	handler := NewHealthHandler(database, sessions)
	apiGroup.GET("/health", handler.Check)
}
