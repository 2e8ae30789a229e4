package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter HTTP 路由：websocket 接入、健康检查、指标与管理接口
func NewRouter(s *Scheduler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.metrics.Middleware())

	r.GET("/ws", HandleWS(s))
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", s.metrics.Handler())

	admin := r.Group("/admin")
	admin.GET("/info", HandleAdminInfo(s))
	admin.GET("/log", HandleAdminLog())
	admin.POST("/log", HandleAdminLog())
	return r
}
