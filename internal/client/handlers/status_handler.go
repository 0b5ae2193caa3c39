package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opennews/newsbox/internal/version"
)

var startedAt = time.Now()

// StatusResponse reports daemon identity and liveness.
type StatusResponse struct {
	App     string `json:"app"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	DataDir string `json:"data_dir"`
}

// Status returns a daemon status handler.
func Status(dataDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{
			App:     version.AppName,
			Version: version.Version,
			Uptime:  time.Since(startedAt).Round(time.Second).String(),
			DataDir: dataDir,
		})
	}
}

// Index returns a minimal identity payload for GET /.
func Index() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"app":     version.AppName,
			"version": version.Version,
		})
	}
}
