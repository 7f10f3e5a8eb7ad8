package controllers

import (
	"github.com/gin-gonic/gin"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/domain/services/container"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/error/response"
)

// ProviderController 处理服务商相关的请求
type ProviderController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewProviderController 创建一个新的服务商控制器
func NewProviderController(ctx *gin.Context, container *container.ServiceContainer) *ProviderController {
	return &ProviderController{
		Ctx:       ctx,
		Container: container,
	}
}

// ProviderRequest 创建服务商
type ProviderRequest struct {
	Name     string `json:"name" binding:"required,max=100" example:"Pathao"`
	Kind     string `json:"kind" binding:"required,visit_kind" example:"ride"`
	ImageURL string `json:"image_url" binding:"omitempty,url"`
}

// HandleProviderFunc 返回一个处理服务商请求的Gin处理函数
func HandleProviderFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewProviderController(ctx, container)

		switch method {
		case "listProviders":
			controller.ListProviders()
		case "createProvider":
			controller.CreateProvider()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

// 1. ListProviders 可见的服务商
// @Summary 服务商列表
// @Description 全局服务商、本小区服务商以及住户自己创建的服务商
// @Tags Provider
// @Produce json
// @Security BearerAuth
// @Param kind query string false "类型: delivery, ride, service"
// @Success 200 {array} models.VisitProvider
// @Router /guard/providers [get]
// @Router /client/providers [get]
func (c *ProviderController) ListProviders() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	kind := models.VisitKind(c.Ctx.Query("kind"))
	if kind != "" && !kind.Valid() {
		response.Fail(c.Ctx, code.ErrVisitKindInvalid, nil)
		return
	}

	svc := c.Container.GetService("provider").(services.InterfaceProviderService)
	providers, err := svc.ListProviders(c.Ctx.Request.Context(), p, kind)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, providers)
}

// 2. CreateProvider 创建服务商
// @Summary 创建服务商
// @Description 门岗创建本小区服务商，住户创建私有服务商；同名同类型冲突
// @Tags Provider
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProviderRequest true "服务商信息"
// @Success 200 {object} models.VisitProvider
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /guard/providers [post]
// @Router /client/providers [post]
func (c *ProviderController) CreateProvider() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}

	var req ProviderRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	svc := c.Container.GetService("provider").(services.InterfaceProviderService)
	provider, err := svc.CreateProvider(c.Ctx.Request.Context(), p, services.CreateProviderInput{
		Name:     req.Name,
		Kind:     models.VisitKind(req.Kind),
		ImageURL: req.ImageURL,
	})
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, provider)
}
