package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 协议本身不做安全加固，允许所有来源
		return true
	},
}

// HandleWS WebSocket 接入：连接先进入连接表，握手成功后等待认证报文
func HandleWS(s *Scheduler) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c := s.Accept(ctx.Request.RemoteAddr)
		if c == nil {
			ctx.String(http.StatusServiceUnavailable, "shutting down")
			return
		}
		c.Start(func() (Transport, error) {
			ws, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
			if err != nil {
				return nil, err
			}
			return ws, nil
		})
	}
}
