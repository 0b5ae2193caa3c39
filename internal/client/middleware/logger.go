package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

// Logger emits one structured log line per request.
func Logger() gin.HandlerFunc {
	return sloggin.NewWithConfig(slog.Default(), sloggin.Config{
		WithRequestID: true,
		Filters: []sloggin.Filter{
			// the status feed is long-polled, don't log every poll
			sloggin.IgnorePath("/v1/sync/status"),
		},
	})
}
