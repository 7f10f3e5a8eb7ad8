package controllers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/domain/services/container"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/error/response"
)

// InterfaceVisitController 定义访客控制器接口
type InterfaceVisitController interface {
	CreateVisit()
	CheckIn()
	CheckOut()
	ListPending()
	ListPreapproved()
	GetVisit()
	DeleteVisit()
	ResendNotifications()
}

// VisitController 处理访客登记相关的请求
type VisitController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewVisitController 创建一个新的访客控制器
func NewVisitController(ctx *gin.Context, container *container.ServiceContainer) *VisitController {
	return &VisitController{
		Ctx:       ctx,
		Container: container,
	}
}

// CreateVisitRequest 登记请求；multipart 表单中 details 为 JSON 字符串
type CreateVisitRequest struct {
	Kind           string               `form:"kind" json:"kind" binding:"required,visit_kind" example:"guest"`
	ProviderID     *uint                `form:"provider_id" json:"provider_id" example:"1"`
	FlatIDs        []uint               `form:"flat_ids" json:"flat_ids" binding:"required,min=1"`
	Name           string               `form:"name" json:"name" binding:"max=100" example:"Ramesh"`
	Contact        string               `form:"contact" json:"contact" binding:"max=20" example:"9800000000"`
	VehicleNumber  string               `form:"vehicle_number" json:"vehicle_number" binding:"max=20"`
	GroupID        string               `form:"group_id" json:"group_id" binding:"max=64"`
	SurveillanceID *uint                `form:"surveillance_id" json:"surveillance_id"`
	FromDate       *time.Time           `form:"from_date" json:"from_date" time_format:"2006-01-02T15:04:05Z07:00"`
	ToDate         *time.Time           `form:"to_date" json:"to_date" time_format:"2006-01-02T15:04:05Z07:00"`
	Details        *models.VisitDetails `form:"-" json:"details"`
	DetailsJSON    string               `form:"details" json:"-" swaggerignore:"true"`
}

// ResendRequest 重新通知请求
type ResendRequest struct {
	VisitIDs []uint `json:"visit_ids" binding:"required,min=1"`
}

// HandleVisitFunc 返回一个处理访客请求的Gin处理函数
func HandleVisitFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewVisitController(ctx, container)

		switch method {
		case "createVisit":
			controller.CreateVisit()
		case "checkIn":
			controller.CheckIn()
		case "checkOut":
			controller.CheckOut()
		case "listPending":
			controller.ListPending()
		case "listPreapproved":
			controller.ListPreapproved()
		case "getVisit":
			controller.GetVisit()
		case "deleteVisit":
			controller.DeleteVisit()
		case "resendNotifications":
			controller.ResendNotifications()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *VisitController) service() services.InterfaceVisitService {
	return c.Container.GetService("visit").(services.InterfaceVisitService)
}

// 1. CreateVisit 登记访客
// @Summary 登记访客
// @Description 门岗现场登记（manual）或住户预约（preapproved）。门岗登记需要上传照片，快递放门岗时可上传多张包裹照片。
// @Tags Visit
// @Accept multipart/form-data,json
// @Produce json
// @Security BearerAuth
// @Param request body CreateVisitRequest true "登记信息"
// @Param photo formData file false "访客照片"
// @Param images formData file false "包裹照片"
// @Success 200 {object} services.VisitResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /guard/visits [post]
// @Router /client/visits [post]
func (c *VisitController) CreateVisit() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}

	var req CreateVisitRequest
	if err := c.Ctx.ShouldBind(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	in := services.CreateVisitInput{
		Kind:           models.VisitKind(req.Kind),
		ProviderID:     req.ProviderID,
		FlatIDs:        req.FlatIDs,
		Name:           req.Name,
		Contact:        req.Contact,
		VehicleNumber:  req.VehicleNumber,
		GroupID:        req.GroupID,
		SurveillanceID: req.SurveillanceID,
		FromDate:       req.FromDate,
		ToDate:         req.ToDate,
	}
	switch {
	case req.Details != nil:
		in.Details = *req.Details
	case req.DetailsJSON != "":
		if err := json.Unmarshal([]byte(req.DetailsJSON), &in.Details); err != nil {
			response.ParamError(c.Ctx, "无效的details: "+err.Error())
			return
		}
	}

	var files uploads
	defer files.Close()
	photo, err := files.single(c.Ctx, "photo")
	if err != nil {
		response.ParamError(c.Ctx, "无法读取照片: "+err.Error())
		return
	}
	images, err := files.multiple(c.Ctx, "images")
	if err != nil {
		response.ParamError(c.Ctx, "无法读取包裹照片: "+err.Error())
		return
	}
	in.Photo = photo
	in.Images = images

	result, err := c.service().CreateVisit(c.Ctx.Request.Context(), p, in)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, result)
}

func (c *VisitController) gateInput() (services.GateInput, *uploads, bool) {
	in := services.GateInput{VehicleNumber: c.Ctx.PostForm("vehicle_number")}
	if s := c.Ctx.PostForm("surveillance_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || n == 0 {
			response.ParamError(c.Ctx, "无效的surveillance_id")
			return in, nil, false
		}
		id := uint(n)
		in.SurveillanceID = &id
	}

	files := &uploads{}
	photo, err := files.single(c.Ctx, "photo")
	if err != nil {
		files.Close()
		response.ParamError(c.Ctx, "无法读取照片: "+err.Error())
		return in, nil, false
	}
	in.Photo = photo
	return in, files, true
}

// 2. CheckIn 预约访客到达
// @Summary 预约访客签到
// @Description 在预约时间内为预约访客创建签到事件，审批单直接为已批准
// @Tags Visit
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "访客记录ID"
// @Param vehicle_number formData string false "车牌号"
// @Param surveillance_id formData int false "门岗摄像头ID"
// @Param photo formData file false "照片"
// @Success 200 {object} services.VisitResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /guard/visits/{id}/checkin [post]
func (c *VisitController) CheckIn() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	id, ok := idParam(c.Ctx, "id")
	if !ok {
		return
	}
	in, files, ok := c.gateInput()
	if !ok {
		return
	}
	defer files.Close()

	result, err := c.service().CheckInPreapproved(c.Ctx.Request.Context(), p, id, in)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, result)
}

// 3. CheckOut 访客离开
// @Summary 访客签退
// @Tags Visit
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "访客记录ID"
// @Param photo formData file false "照片"
// @Success 200 {object} models.CheckInOut
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /guard/visits/{id}/checkout [post]
func (c *VisitController) CheckOut() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	id, ok := idParam(c.Ctx, "id")
	if !ok {
		return
	}
	in, files, ok := c.gateInput()
	if !ok {
		return
	}
	defer files.Close()

	event, err := c.service().CheckOut(c.Ctx.Request.Context(), p, id, in)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, event)
}

// 4. ListPending 待审批的访客
// @Summary 待审批访客列表
// @Description 门岗看本小区，住户看自己房屋
// @Tags Visit
// @Produce json
// @Security BearerAuth
// @Param pageNum query int false "页码，默认为1"
// @Param pageSize query int false "每页条数，默认为20"
// @Success 200 {object} PageResponse
// @Router /guard/visits/pending [get]
// @Router /client/visits/pending [get]
func (c *VisitController) ListPending() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	q, ok := pageQuery(c.Ctx)
	if !ok {
		return
	}

	items, page, err := c.service().ListPending(c.Ctx.Request.Context(), p, q)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, PageResponse{Items: items, Pagination: page})
}

// 5. ListPreapproved 预约记录
// @Summary 预约列表
// @Description 住户看自己创建的，门岗看本小区仍有效的
// @Tags Visit
// @Produce json
// @Security BearerAuth
// @Param pageNum query int false "页码，默认为1"
// @Param pageSize query int false "每页条数，默认为20"
// @Success 200 {object} PageResponse
// @Router /guard/visits/preapproved [get]
// @Router /client/visits/preapproved [get]
func (c *VisitController) ListPreapproved() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	q, ok := pageQuery(c.Ctx)
	if !ok {
		return
	}

	items, page, err := c.service().ListPreapproved(c.Ctx.Request.Context(), p, q)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, PageResponse{Items: items, Pagination: page})
}

// 6. GetVisit 访客详情
// @Summary 访客详情
// @Tags Visit
// @Produce json
// @Security BearerAuth
// @Param id path int true "访客记录ID"
// @Success 200 {object} models.VisitRequest
// @Failure 404 {object} ErrorResponse
// @Router /guard/visits/{id} [get]
// @Router /client/visits/{id} [get]
func (c *VisitController) GetVisit() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	id, ok := idParam(c.Ctx, "id")
	if !ok {
		return
	}

	visit, err := c.service().GetVisit(c.Ctx.Request.Context(), p, id)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, visit)
}

// 7. DeleteVisit 删除误登记
// @Summary 删除访客登记
// @Description 只能删除门岗登记且所有审批单仍待审批的记录
// @Tags Visit
// @Produce json
// @Security BearerAuth
// @Param id path int true "访客记录ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /guard/visits/{id} [delete]
func (c *VisitController) DeleteVisit() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}
	id, ok := idParam(c.Ctx, "id")
	if !ok {
		return
	}

	if err := c.service().DeleteVisit(c.Ctx.Request.Context(), p, id); err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, gin.H{"id": id})
}

// 8. ResendNotifications 重新通知住户
// @Summary 重新通知
// @Description 为待审批的访客重新推送通知，同一分组只发一次
// @Tags Visit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ResendRequest true "访客记录ID列表"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /guard/visits/notify [post]
func (c *VisitController) ResendNotifications() {
	p, ok := principal(c.Ctx)
	if !ok {
		return
	}

	var req ResendRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "无效的请求参数: "+err.Error(), nil)
		return
	}

	sent, err := c.service().ResendNotifications(c.Ctx.Request.Context(), p, req.VisitIDs)
	if err != nil {
		response.Error(c.Ctx, err)
		return
	}
	response.Success(c.Ctx, gin.H{"notified": sent})
}
