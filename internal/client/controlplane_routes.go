package client

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opennews/newsbox/internal/client/handlers"
	"github.com/opennews/newsbox/internal/client/middleware"
	"github.com/opennews/newsbox/internal/client/sync"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// buildRouter assembles the control plane routes.
func buildRouter(dataDir, token string, manager *sync.Manager, history *sync.History) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.Logger(),
		middleware.CORS(),
		middleware.RateLimiter(),
	)

	router.GET("/", handlers.Index())

	syncHandler := handlers.NewSyncHandler(manager, history)

	v1 := router.Group("/v1", middleware.TokenAuth(token))
	{
		v1.GET("/status", handlers.Status(dataDir))
		v1.GET("/sync/status", syncHandler.GetStatus)
		v1.POST("/sync/now", syncHandler.TriggerSync)
		v1.GET("/sync/events", syncHandler.StreamEvents)
		v1.GET("/sync/history", syncHandler.GetHistory)
	}

	router.NoRoute(func(c *gin.Context) {
		handlers.AbortWithError(c, http.StatusNotFound, handlers.CodeNotFound, "no such route")
	})
	router.NoMethod(func(c *gin.Context) {
		handlers.AbortWithError(c, http.StatusMethodNotAllowed, handlers.CodeNotAllowed, "method not allowed")
	})

	return router
}
