package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type staticCheck struct {
	name string
	err  error
}

func (c staticCheck) IsReady(ctx context.Context) error { return c.err }
func (c staticCheck) Name() string                      { return c.name }

func serve(h *HealthHandler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(h, r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLive(t *testing.T) {
	w := serve(NewHealthHandler(staticCheck{"redis", errors.New("down")}), "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady(t *testing.T) {
	w := serve(NewHealthHandler(staticCheck{name: "redis"}, staticCheck{name: "users"}), "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"redis":"ok","users":"ok"}}`, w.Body.String())
}

func TestReady_Failing(t *testing.T) {
	w := serve(NewHealthHandler(staticCheck{name: "redis"}, staticCheck{"users", errors.New("table missing")}), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not ready","checks":{"redis":"ok","users":"table missing"}}`, w.Body.String())
}
