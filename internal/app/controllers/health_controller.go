package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/domain/services/container"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/error/response"
)

// HealthCheckController 健康检查控制器
type HealthCheckController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewHealthCheckController 创建健康检查控制器实例
func NewHealthCheckController(ctx *gin.Context, container *container.ServiceContainer) *HealthCheckController {
	return &HealthCheckController{Ctx: ctx, Container: container}
}

// HandleHealthFunc 返回一个处理健康检查请求的Gin处理函数
func HandleHealthFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewHealthCheckController(ctx, container)

		switch method {
		case "ping":
			controller.Ping()
		case "health":
			controller.Health()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

// Ping 健康检查端点
// @Summary Ping
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /ping [get]
func (h *HealthCheckController) Ping() {
	response.Success(h.Ctx, gin.H{
		"status":  "healthy",
		"message": "pong",
	})
}

// Health 检查数据库和 Redis
// @Summary 依赖健康检查
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} ErrorResponse
// @Router /health [get]
func (h *HealthCheckController) Health() {
	ctx, cancel := context.WithTimeout(h.Ctx.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	sqlDB, err := h.Container.GetDB().DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		healthy = false
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}

	if redis, ok := h.Container.GetService("redis").(services.InterfaceRedisService); ok && redis != nil {
		if err := redis.Ping(ctx); err != nil {
			// Redis 只影响通知去重，不算整体不可用
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		h.Ctx.JSON(http.StatusServiceUnavailable, response.Response{
			Code:    code.ErrDatabase,
			Message: "unhealthy",
			Data:    checks,
		})
		return
	}
	response.Success(h.Ctx, gin.H{"status": "healthy", "checks": checks})
}
