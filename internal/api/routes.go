package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
)

// RegisterRoutes 注册 /api/v1 控制接口
func RegisterRoutes(r gin.IRouter, ctrl Controller, cfg cfgpkg.APIConfig, logger *zap.Logger) {
	if r == nil || ctrl == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := NewHandler(ctrl, logger)

	v1 := r.Group("/api/v1")
	if cfg.CORS {
		v1.Use(middleware.CORS())
	}
	if cfg.Auth.Enabled {
		v1.Use(middleware.APIKeyAuth(cfg.Auth, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(cfg.Auth.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	v1.GET("/nodes", h.ListNodes)
	v1.POST("/nodes/discover", h.Discover)
	v1.GET("/nodes/:addr", h.GetNode)
	v1.POST("/nodes/:addr/address", h.ChangeAddress)
	v1.POST("/nodes/:addr/camera", h.Camera)

	v1.GET("/axes", h.ListAxes)
	v1.GET("/axes/:addr/status", h.AxisStatus)
	v1.POST("/axes/:addr/move", h.Move)
	v1.POST("/axes/:addr/stop", h.Stop)
	v1.POST("/axes/:addr/params", h.SetParam)
	v1.POST("/axes/:addr/home", h.Home)

	v1.POST("/program/:action", h.Program)
	v1.GET("/status/stream", h.StatusStream)

	logger.Info("api routes registered", zap.Int("endpoints", 13))
}
