package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/pkg/logger"
)

// Response 定义统一的响应格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code.ErrSuccess,
		Message: code.GetMessage(code.ErrSuccess),
		Data:    data,
	})
}

// Fail 失败响应
func Fail(c *gin.Context, errorCode int, data interface{}) {
	httpStatus := code.GetStatus(errorCode)
	message := code.GetMessage(errorCode)

	c.JSON(httpStatus, Response{
		Code:    errorCode,
		Message: message,
		Data:    data,
	})
}

// FailWithMessage 失败响应（自定义消息）
func FailWithMessage(c *gin.Context, errorCode int, message string, data interface{}) {
	httpStatus := code.GetStatus(errorCode)

	c.JSON(httpStatus, Response{
		Code:    errorCode,
		Message: message,
		Data:    data,
	})
}

// ParamError 参数错误响应
func ParamError(c *gin.Context, message string) {
	if message == "" {
		message = code.GetMessage(code.ErrValidation)
	}
	FailWithMessage(c, code.ErrValidation, message, nil)
}

// ServerError 服务器错误响应
func ServerError(c *gin.Context) {
	Fail(c, code.ErrUnknown, nil)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context) {
	Fail(c, code.ErrTokenInvalid, nil)
}

// Error 将服务层错误映射为统一响应；非业务错误记录日志并返回 500
func Error(c *gin.Context, err error) {
	var e *code.Error
	if errors.As(err, &e) {
		if e.Status() >= http.StatusInternalServerError {
			logger.WithFields(logger.Fields{"path": c.FullPath(), "code": e.Code}).WithError(err).Error("request failed")
		}
		FailWithMessage(c, e.Code, e.Message, nil)
		return
	}

	logger.WithFields(logger.Fields{"path": c.FullPath()}).WithError(err).Error("unexpected error")
	ServerError(c)
}
