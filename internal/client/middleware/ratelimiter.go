package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	limitergin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const defaultRateLimit = "60-M"

// RateLimiter caps per-client request rates using an in-memory store. The
// control plane is loopback-only, so this is a guard against runaway local
// clients, not an internet-facing defense.
func RateLimiter() gin.HandlerFunc {
	rate, err := limiter.NewRateFromFormatted(defaultRateLimit)
	if err != nil {
		slog.Error("rate limiter disabled", "error", err)
		return func(c *gin.Context) { c.Next() }
	}

	store := memory.NewStore()
	return limitergin.NewMiddleware(limiter.New(store, rate))
}
