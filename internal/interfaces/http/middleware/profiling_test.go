package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func profiledRouter(enabled bool, skipPaths ...string) (*gin.Engine, *map[string]string) {
	labels := map[string]string{}
	r := gin.New()
	r.Use(middleware.Profiling(enabled, skipPaths...))
	capture := func(c *gin.Context) {
		pprof.ForLabels(c.Request.Context(), func(key, value string) bool {
			labels[key] = value
			return true
		})
		c.Status(http.StatusOK)
	}
	r.GET("/health", capture)
	r.GET("/api/v1/inventory/items/:sku", capture)
	return r, &labels
}

func TestProfiling_Disabled(t *testing.T) {
	r, labels := profiledRouter(false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/items/SKU-1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, *labels)
}

func TestProfiling_LabelsRoutePattern(t *testing.T) {
	r, labels := profiledRouter(true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/items/SKU-1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/inventory/items/:sku", (*labels)["route"])
	assert.Equal(t, http.MethodGet, (*labels)["method"])
}

func TestProfiling_SkipPaths(t *testing.T) {
	r, labels := profiledRouter(true, "/health")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, *labels)
}

func TestProfiling_UnmatchedRoutePassesThrough(t *testing.T) {
	r, _ := profiledRouter(true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

type ctxKey struct{}

func TestProfiling_PreservesRequestContext(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, "kept"))
		c.Next()
	})
	r.Use(middleware.Profiling(true))

	var got any
	r.GET("/items", func(c *gin.Context) {
		got = c.Request.Context().Value(ctxKey{})
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "kept", got)
}
