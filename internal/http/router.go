package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"device-sync/internal/config"
	"device-sync/internal/handlers"
	"device-sync/internal/logging"
	"device-sync/internal/middleware"
)

func NewRouter(cfg config.Config, log *logging.Logger, h *handlers.SyncHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-User-ID"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/device-sync/v1")
	v1.Use(middleware.Auth(cfg))
	{
		v1.POST("/run", h.Run)
		v1.POST("/queue", h.QueueSync)
		v1.POST("/heartbeat", h.Heartbeat)
		v1.GET("/devices", h.Devices)
		v1.GET("/suggestions", h.Suggestions)
		v1.GET("/queue/failed", h.FailedTasks)
	}
	return r
}
