package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const authTokenQueryParam = "token"

// TokenAuth guards the control plane with a static bearer token. The token may
// arrive as `Authorization: Bearer <token>` or, for EventSource clients that
// cannot set headers, as a `?token=` query parameter. An empty configured
// token disables the check.
func TokenAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		presented := bearerToken(c.GetHeader("Authorization"))
		if presented == "" {
			presented = c.Query(authTokenQueryParam)
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "E_UNAUTHORIZED",
				"message": "invalid or missing token",
			})
			return
		}

		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
