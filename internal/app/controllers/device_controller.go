package controllers

import (
	"github.com/gin-gonic/gin"

	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/domain/services/container"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/error/response"
)

// DeviceController 处理住户推送设备和站内通知
type DeviceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDeviceController 创建一个新的设备控制器
func NewDeviceController(ctx *gin.Context, container *container.ServiceContainer) *DeviceController {
	return &DeviceController{
		Ctx:       ctx,
		Container: container,
	}
}

// DeviceRequest 注册推送令牌
type DeviceRequest struct {
	Token    string `json:"token" binding:"required,push_token,max=255" example:"fcm-3f2a"`
	Platform string `json:"platform" binding:"omitempty,oneof=android ios web" example:"android"`
}

// HandleDeviceFunc 返回一个处理设备与通知请求的Gin处理函数
func HandleDeviceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDeviceController(ctx, container)

		switch method {
		case "registerDevice":
			controller.RegisterDevice()
		case "removeDevice":
			controller.RemoveDevice()
		case "listNotifications":
			controller.ListNotifications()
		case "markRead":
			controller.MarkRead()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

// 1. RegisterDevice 注册推送令牌
// @Summary 注册推送设备
// @Description 同一令牌重复注册是幂等的；换账号登录时令牌转移到当前住户
// @Tags Device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeviceRequest true "设备信息"
// @Success 200 {object} models.ClientDevice
// @Failure 400 {object} ErrorResponse
// @Router /client/devices [post]
func (c *DeviceController) RegisterDevice() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}

	var req DeviceRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	svc := c.Container.GetService("device").(services.InterfaceDeviceService)
	device, err := svc.RegisterDevice(c.Ctx.Request.Context(), p, req.Token, req.Platform)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, device)
}

// 2. RemoveDevice 退出登录时删除令牌
// @Summary 删除推送设备
// @Tags Device
// @Produce json
// @Security BearerAuth
// @Param token path string true "推送令牌"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /client/devices/{token} [delete]
func (c *DeviceController) RemoveDevice() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}

	token := c.Ctx.Param("token")
	svc := c.Container.GetService("device").(services.InterfaceDeviceService)
	if err := svc.RemoveDevice(c.Ctx.Request.Context(), p, token); err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, gin.H{"token": token})
}

// 3. ListNotifications 站内通知
// @Summary 通知列表
// @Tags Notification
// @Produce json
// @Security BearerAuth
// @Param pageNum query int false "页码，默认为1"
// @Param pageSize query int false "每页条数，默认为20"
// @Success 200 {object} PageResponse
// @Router /client/notifications [get]
func (c *DeviceController) ListNotifications() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	q, ok := pageQuery(c.Ctx)
	if !ok {
		return
	}

	svc := c.Container.GetService("notification").(services.InterfaceNotificationService)
	items, page, err := svc.ListForClient(c.Ctx.Request.Context(), p.ID, q)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, PageResponse{Items: items, Pagination: page})
}

// 4. MarkRead 标记已读
// @Summary 标记通知已读
// @Tags Notification
// @Produce json
// @Security BearerAuth
// @Param id path int true "通知ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /client/notifications/{id}/read [post]
func (c *DeviceController) MarkRead() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	id, ok := idParam(c.Ctx, "id")
	if !ok {
		return
	}

	svc := c.Container.GetService("notification").(services.InterfaceNotificationService)
	if err := svc.MarkRead(c.Ctx.Request.Context(), p.ID, id); err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, gin.H{"id": id})
}
