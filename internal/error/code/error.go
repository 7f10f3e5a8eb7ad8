package code

import (
	"errors"
	"fmt"
)

// Error 带错误码的业务错误，由 response.Error 映射为 HTTP 响应
type Error struct {
	Code    int
	Message string
	cause   error
}

// New 创建业务错误，message 为空时使用错误码默认消息
func New(errCode int, message string) *Error {
	if message == "" {
		message = GetMessage(errCode)
	}
	return &Error{Code: errCode, Message: message}
}

// Wrap 创建携带底层原因的业务错误
func Wrap(errCode int, cause error) *Error {
	return &Error{Code: errCode, Message: GetMessage(errCode), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Status 返回错误码对应的HTTP状态码
func (e *Error) Status() int {
	return GetStatus(e.Code)
}

// NotFound 资源不存在
func NotFound(errCode int) *Error {
	return New(errCode, "")
}

// BadRequest 请求无效
func BadRequest(errCode int) *Error {
	return New(errCode, "")
}

// Conflict 资源冲突
func Conflict(errCode int) *Error {
	return New(errCode, "")
}

// Is 判断 err 链中是否包含指定错误码
func Is(err error, errCode int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == errCode
	}
	return false
}

// StatusOf 返回 err 对应的HTTP状态码，非业务错误为 500
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status()
	}
	return StatusInternalServerError
}
