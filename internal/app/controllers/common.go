package controllers

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"

	"merodocs-http-service/internal/app/middleware"
	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/error/response"
	"merodocs-http-service/internal/infrastructure/storage"
)

// ErrorResponse 表示错误响应
type ErrorResponse struct {
	Code    int         `json:"code" example:"106000"`
	Message string      `json:"message" example:"访客记录不存在"`
	Data    interface{} `json:"data"`
}

// PageResponse 分页列表
type PageResponse struct {
	Items      interface{}             `json:"items"`
	Pagination models.PaginationResult `json:"pagination"`
}

// principal 读取当前调用者，缺失时直接返回 401
func principal(ctx *gin.Context) (services.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(ctx)
	if !ok {
		response.Unauthorized(ctx)
		return services.Principal{}, false
	}
	return p, true
}

// idParam 解析路径中的ID
func idParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.ParamError(ctx, "无效的ID: "+ctx.Param(name))
		return 0, false
	}
	return uint(id), true
}

// pageQuery 解析分页参数
func pageQuery(ctx *gin.Context) (models.PaginationQuery, bool) {
	var q models.PaginationQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.FailWithMessage(ctx, code.ErrBind, "无效的分页参数: "+err.Error(), nil)
		return q, false
	}
	return q.Normalize(), true
}

// uploads 打开的上传文件，处理完后统一关闭
type uploads struct {
	closers []io.Closer
}

func (u *uploads) open(fh *multipart.FileHeader) (storage.File, error) {
	f, err := fh.Open()
	if err != nil {
		return storage.File{}, err
	}
	u.closers = append(u.closers, f)
	return storage.File{Name: fh.Filename, Reader: f}, nil
}

// single 打开表单中的单个文件，不存在时返回 nil
func (u *uploads) single(ctx *gin.Context, field string) (*storage.File, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil, nil
	}
	f, err := u.open(fh)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// multiple 打开表单中的多个同名文件
func (u *uploads) multiple(ctx *gin.Context, field string) ([]storage.File, error) {
	form, err := ctx.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}
	var files []storage.File
	for _, fh := range form.File[field] {
		f, err := u.open(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func (u *uploads) Close() {
	for _, c := range u.closers {
		_ = c.Close()
	}
	u.closers = nil
}
