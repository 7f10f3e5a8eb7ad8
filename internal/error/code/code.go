package code

// HTTP状态码.
const (
	// StatusOK - 200: 成功.
	StatusOK = 200
	// StatusBadRequest - 400: 请求参数错误.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: 未授权.
	StatusUnauthorized = 401
	// StatusForbidden - 403: 禁止访问.
	StatusForbidden = 403
	// StatusNotFound - 404: 资源不存在.
	StatusNotFound = 404
	// StatusConflict - 409: 资源冲突.
	StatusConflict = 409
	// StatusTooManyRequests - 429: 请求过多.
	StatusTooManyRequests = 429
	// StatusInternalServerError - 500: 服务器内部错误.
	StatusInternalServerError = 500
	// StatusServiceUnavailable - 503: 服务不可用.
	StatusServiceUnavailable = 503
)

// 通用错误码 (100xxx).
const (
	// ErrSuccess - 200: 成功.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: 未知错误.
	ErrUnknown
	// ErrBind - 400: 请求参数绑定错误.
	ErrBind
	// ErrValidation - 400: 请求参数验证错误.
	ErrValidation
	// ErrTokenInvalid - 401: 令牌无效.
	ErrTokenInvalid
	// ErrTooManyRequests - 429: 请求频率过高.
	ErrTooManyRequests
	// ErrNotFound - 404: 资源不存在.
	ErrNotFound
	// ErrConflict - 409: 资源冲突.
	ErrConflict
	// ErrForbidden - 403: 角色无权访问.
	ErrForbidden
)

// 住户相关错误码 (103xxx).
const (
	// ErrResidentNotFound - 404: 住户不存在.
	ErrResidentNotFound int = iota + 103000
	// ErrFlatNotFound - 404: 房屋不存在.
	ErrFlatNotFound
	// ErrFlatMismatch - 400: 部分房屋无效.
	ErrFlatMismatch
	// ErrDeviceTokenInvalid - 400: 推送令牌无效.
	ErrDeviceTokenInvalid
	// ErrDeviceNotFound - 404: 推送设备不存在.
	ErrDeviceNotFound
)

// 数据库相关错误码 (105xxx).
const (
	// ErrDatabase - 500: 数据库错误.
	ErrDatabase int = iota + 105000
	// ErrRecordNotFound - 404: 记录不存在.
	ErrRecordNotFound
)

// 访客相关错误码 (106xxx).
const (
	// ErrVisitNotFound - 404: 访客记录不存在.
	ErrVisitNotFound int = iota + 106000
	// ErrVisitKindInvalid - 400: 访客类型无效.
	ErrVisitKindInvalid
	// ErrVisitDetailsInvalid - 400: 访客详情与类型不符.
	ErrVisitDetailsInvalid
	// ErrVisitNotDeletable - 400: 访客记录不可删除.
	ErrVisitNotDeletable
	// ErrVisitWindowClosed - 400: 不在预约时间内.
	ErrVisitWindowClosed
	// ErrVisitNotCheckedIn - 400: 访客未签到.
	ErrVisitNotCheckedIn
	// ErrImageRequired - 400: 缺少照片.
	ErrImageRequired
	// ErrVisitSingleFlat - 400: 该类型只能选择一个房屋.
	ErrVisitSingleFlat
)

// 服务商相关错误码 (107xxx).
const (
	// ErrProviderNotFound - 404: 服务商不存在.
	ErrProviderNotFound int = iota + 107000
	// ErrProviderKindMismatch - 400: 服务商类型不符.
	ErrProviderKindMismatch
	// ErrProviderAlreadyExist - 409: 服务商已存在.
	ErrProviderAlreadyExist
	// ErrProviderRequired - 400: 缺少服务商.
	ErrProviderRequired
)

// 审批单相关错误码 (108xxx).
const (
	// ErrTicketNotFound - 404: 审批单不存在.
	ErrTicketNotFound int = iota + 108000
	// ErrTicketStateInvalid - 400: 审批单状态不允许该操作.
	ErrTicketStateInvalid
	// ErrTicketAlreadyConfirmed - 400: 已确认.
	ErrTicketAlreadyConfirmed
	// ErrDeliveryNotExist - 400: 快递不存在.
	ErrDeliveryNotExist
	// ErrParcelAlreadyCollected - 400: 包裹已领取.
	ErrParcelAlreadyCollected
)

// 存储相关错误码 (110xxx).
const (
	// ErrUploadFailed - 500: 文件上传失败.
	ErrUploadFailed int = iota + 110000
)
