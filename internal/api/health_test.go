package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

type fakeCounter int

func (f fakeCounter) Count() int { return int(f) }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantState  string
		wantDB     string
	}{
		{"healthy", nil, http.StatusOK, "ok", "healthy"},
		{"database down", errors.New("database is locked"), http.StatusServiceUnavailable, "degraded", "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			router := gin.New()
			SetupHealthRoutes(router.Group("/api"), fakeHealth{err: tt.err}, fakeCounter(3))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			require.Equal(t, tt.wantStatus, w.Code)
			resp := decode[HealthResponse](t, w)
			assert.Equal(t, tt.wantState, resp.Status)
			assert.Equal(t, tt.wantDB, resp.Database)
			assert.EqualValues(t, 3, resp.Details["active_sessions"])
		})
	}
}
