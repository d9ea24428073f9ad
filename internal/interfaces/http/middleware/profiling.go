package middleware

import (
	"context"

	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling attaches method and route pattern labels to the profile samples
// taken while a request is handled. Unmatched routes and skipPaths are not labelled.
func Profiling(enabled bool, skipPaths ...string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}

	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, skipped := skip[c.Request.URL.Path]; skipped || route == "" {
			c.Next()
			return
		}

		telemetry.WithRequestLabels(c.Request.Context(), c.Request.Method, route, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
