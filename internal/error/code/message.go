package code

// 错误码消息映射
var codeMessageMap = map[int]string{
	// 通用错误码
	ErrSuccess:         "成功",
	ErrUnknown:         "未知错误",
	ErrBind:            "请求参数绑定错误",
	ErrValidation:      "请求参数验证错误",
	ErrTokenInvalid:    "无效的认证令牌",
	ErrTooManyRequests: "请求频率过高，请稍后再试",
	ErrNotFound:        "资源不存在",
	ErrConflict:        "资源冲突",
	ErrForbidden:       "无权访问",

	// 住户相关错误码
	ErrResidentNotFound:   "住户不存在",
	ErrFlatNotFound:       "房屋不存在",
	ErrFlatMismatch:       "部分房屋无效或无住户",
	ErrDeviceTokenInvalid: "推送令牌无效",
	ErrDeviceNotFound:     "推送设备不存在",

	// 数据库相关错误码
	ErrDatabase:       "数据库错误",
	ErrRecordNotFound: "记录不存在",

	// 访客相关错误码
	ErrVisitNotFound:       "访客记录不存在",
	ErrVisitKindInvalid:    "访客类型无效",
	ErrVisitDetailsInvalid: "访客详情与类型不符",
	ErrVisitNotDeletable:   "只能删除待审批的门岗登记",
	ErrVisitWindowClosed:   "不在预约有效时间内",
	ErrVisitNotCheckedIn:   "访客尚未签到",
	ErrImageRequired:       "缺少照片",
	ErrVisitSingleFlat:     "该类型只能选择一个房屋",

	// 服务商相关错误码
	ErrProviderNotFound:     "服务商不存在",
	ErrProviderKindMismatch: "服务商类型不符",
	ErrProviderAlreadyExist: "服务商已存在",
	ErrProviderRequired:     "缺少服务商",

	// 审批单相关错误码
	ErrTicketNotFound:         "审批单不存在",
	ErrTicketStateInvalid:     "审批单状态不允许该操作",
	ErrTicketAlreadyConfirmed: "已经确认过",
	ErrDeliveryNotExist:       "delivery does not exist",
	ErrParcelAlreadyCollected: "包裹已被领取",

	// 存储相关错误码
	ErrUploadFailed: "文件上传失败",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[int]int{
	// 通用错误码
	ErrSuccess:         StatusOK,
	ErrUnknown:         StatusInternalServerError,
	ErrBind:            StatusBadRequest,
	ErrValidation:      StatusBadRequest,
	ErrTokenInvalid:    StatusUnauthorized,
	ErrTooManyRequests: StatusTooManyRequests,
	ErrNotFound:        StatusNotFound,
	ErrConflict:        StatusConflict,
	ErrForbidden:       StatusForbidden,

	// 住户相关错误码
	ErrResidentNotFound:   StatusNotFound,
	ErrFlatNotFound:       StatusNotFound,
	ErrFlatMismatch:       StatusBadRequest,
	ErrDeviceTokenInvalid: StatusBadRequest,
	ErrDeviceNotFound:     StatusNotFound,

	// 数据库相关错误码
	ErrDatabase:       StatusInternalServerError,
	ErrRecordNotFound: StatusNotFound,

	// 访客相关错误码
	ErrVisitNotFound:       StatusNotFound,
	ErrVisitKindInvalid:    StatusBadRequest,
	ErrVisitDetailsInvalid: StatusBadRequest,
	ErrVisitNotDeletable:   StatusBadRequest,
	ErrVisitWindowClosed:   StatusBadRequest,
	ErrVisitNotCheckedIn:   StatusBadRequest,
	ErrImageRequired:       StatusBadRequest,
	ErrVisitSingleFlat:     StatusBadRequest,

	// 服务商相关错误码
	ErrProviderNotFound:     StatusNotFound,
	ErrProviderKindMismatch: StatusBadRequest,
	ErrProviderAlreadyExist: StatusConflict,
	ErrProviderRequired:     StatusBadRequest,

	// 审批单相关错误码
	ErrTicketNotFound:         StatusNotFound,
	ErrTicketStateInvalid:     StatusBadRequest,
	ErrTicketAlreadyConfirmed: StatusBadRequest,
	ErrDeliveryNotExist:       StatusBadRequest,
	ErrParcelAlreadyCollected: StatusBadRequest,

	// 存储相关错误码
	ErrUploadFailed: StatusInternalServerError,
}

// GetMessage 获取错误码对应的消息
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "未知错误"
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
