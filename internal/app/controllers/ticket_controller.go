package controllers

import (
	"github.com/gin-gonic/gin"

	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/domain/services/container"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/error/response"
)

// InterfaceTicketController 定义审批单控制器接口
type InterfaceTicketController interface {
	Approve()
	Reject()
	ConfirmCollected()
	HandOver()
	ConfirmAtGate()
	ParcelHistory()
}

// TicketController 处理审批和包裹领取相关的请求
type TicketController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewTicketController 创建一个新的审批单控制器
func NewTicketController(ctx *gin.Context, container *container.ServiceContainer) *TicketController {
	return &TicketController{
		Ctx:       ctx,
		Container: container,
	}
}

// HandOverRequest 门岗交付包裹
type HandOverRequest struct {
	ClientID uint `json:"client_id" binding:"required" example:"12"`
}

// HandleTicketFunc 返回一个处理审批单请求的Gin处理函数
func HandleTicketFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewTicketController(ctx, container)

		switch method {
		case "approve":
			controller.Approve()
		case "reject":
			controller.Reject()
		case "confirmCollected":
			controller.ConfirmCollected()
		case "handOver":
			controller.HandOver()
		case "confirmAtGate":
			controller.ConfirmAtGate()
		case "parcelHistory":
			controller.ParcelHistory()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *TicketController) service() services.InterfaceTicketService {
	return c.Container.GetService("ticket").(services.InterfaceTicketService)
}

func (c *TicketController) decide(approve bool) {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	id, ok := idParam(c.Ctx, "id")
	if !ok {
		return
	}

	ticket, err := c.service().Decide(c.Ctx.Request.Context(), p, id, approve)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, ticket)
}

// 1. Approve 批准访客
// @Summary 批准
// @Description 住户批准自己房屋的审批单，只能在待审批状态下操作
// @Tags Ticket
// @Produce json
// @Security BearerAuth
// @Param id path int true "审批单ID"
// @Success 200 {object} models.CheckInOutRequest
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /client/tickets/{id}/approve [post]
func (c *TicketController) Approve() {
	c.decide(true)
}

// 2. Reject 拒绝访客
// @Summary 拒绝
// @Tags Ticket
// @Produce json
// @Security BearerAuth
// @Param id path int true "审批单ID"
// @Success 200 {object} models.CheckInOutRequest
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /client/tickets/{id}/reject [post]
func (c *TicketController) Reject() {
	c.decide(false)
}

// 3. ConfirmCollected 住户确认收到
// @Summary 确认收到
// @Tags Ticket
// @Produce json
// @Security BearerAuth
// @Param id path int true "审批单ID"
// @Success 200 {object} models.CheckInOutRequest
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /client/tickets/{id}/confirm [post]
func (c *TicketController) ConfirmCollected() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	id, ok := idParam(c.Ctx, "id")
	if !ok {
		return
	}

	ticket, err := c.service().ConfirmCollected(c.Ctx.Request.Context(), p, id)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, ticket)
}

// 4. HandOver 门岗把包裹交给住户
// @Summary 交付包裹
// @Tags Ticket
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "审批单ID"
// @Param request body HandOverRequest true "领取人"
// @Success 200 {object} models.CheckInOutRequest
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /guard/tickets/{id}/handover [post]
func (c *TicketController) HandOver() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	id, ok := idParam(c.Ctx, "id")
	if !ok {
		return
	}

	var req HandOverRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	ticket, err := c.service().HandOver(c.Ctx.Request.Context(), p, id, req.ClientID)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, ticket)
}

// 5. ConfirmAtGate 门岗确认包裹已放在门岗
// @Summary 门岗确认包裹
// @Tags Ticket
// @Produce json
// @Security BearerAuth
// @Param id path int true "审批单ID"
// @Success 200 {object} models.CheckInOutRequest
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /guard/tickets/{id}/gate-confirm [post]
func (c *TicketController) ConfirmAtGate() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	id, ok := idParam(c.Ctx, "id")
	if !ok {
		return
	}

	ticket, err := c.service().ConfirmAtGate(c.Ctx.Request.Context(), p, id)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, ticket)
}

// 6. ParcelHistory 包裹流转记录
// @Summary 包裹流转记录
// @Tags Ticket
// @Produce json
// @Security BearerAuth
// @Param pageNum query int false "页码，默认为1"
// @Param pageSize query int false "每页条数，默认为20"
// @Success 200 {object} PageResponse
// @Router /guard/parcels/history [get]
// @Router /client/parcels/history [get]
func (c *TicketController) ParcelHistory() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	q, ok := pageQuery(c.Ctx)
	if !ok {
		return
	}

	items, page, err := c.service().ListParcelHistory(c.Ctx.Request.Context(), p, q)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, PageResponse{Items: items, Pagination: page})
}
