package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"webgame/logger"
)

// HandleAdminInfo 运行状态
// GET /admin/info
func HandleAdminInfo(s *Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Info())
	}
}

// HandleAdminLog 读取或切换流量日志
// GET  /admin/log            返回当前开关
// POST /admin/log {"io":true,"data":false}  只更新给出的字段
func HandleAdminLog() gin.HandlerFunc {
	type flags struct {
		IO   *bool `json:"io,omitempty"`
		Data *bool `json:"data,omitempty"`
	}
	current := func() gin.H {
		return gin.H{"io": logger.IOLog(), "data": logger.DataLog()}
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.JSON(http.StatusOK, current())
			return
		}
		var body flags
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if body.IO != nil {
			logger.SetIOLog(*body.IO)
		}
		if body.Data != nil {
			logger.SetDataLog(*body.Data)
		}
		logger.Log.Infof("log flags updated: io=%v data=%v", logger.IOLog(), logger.DataLog())
		c.JSON(http.StatusOK, current())
	}
}
