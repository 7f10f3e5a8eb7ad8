package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"merodocs-http-service/internal/domain/services/container"
	"merodocs-http-service/internal/infrastructure/live"
	"merodocs-http-service/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由 CORS 配置和 JWT 控制
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleLiveFunc 门岗实时面板：审批结果通过 websocket 推送到本小区的门岗
// @Summary 门岗实时面板
// @Description 升级为 websocket，浏览器可通过 ?token= 传递令牌
// @Tags Live
// @Security BearerAuth
// @Router /guard/live [get]
func HandleLiveFunc(container *container.ServiceContainer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		p, ok := principal(ctx)
		if !ok {
			return
		}
		hub := container.GetService("live").(*live.Hub)

		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			// Upgrade 已经写回了错误响应
			logger.WithFields(logger.Fields{"guard_id": p.ID}).WithError(err).Warn("websocket upgrade failed")
			return
		}
		hub.Serve(conn, p.ApartmentID)
	}
}
