package models

import (
	"gopkg.in/guregu/null.v4"
	"gorm.io/datatypes"
)

// GateDirection 进出方向
type GateDirection string

const (
	GateCheckIn  GateDirection = "checkin"
	GateCheckOut GateDirection = "checkout"
)

// RequestType 门岗事件的业务类型
type RequestType string

const (
	RequestDelivery     RequestType = "delivery"
	RequestRide         RequestType = "ride"
	RequestGuest        RequestType = "guest"
	RequestService      RequestType = "service"
	RequestGuestMass    RequestType = "guestmass"
	RequestClient       RequestType = "client"
	RequestClientStaff  RequestType = "clientstaff"
	RequestAdminService RequestType = "adminservice"
)

// RequestTypeOf 访客类型对应的门岗事件类型
func RequestTypeOf(kind VisitKind) RequestType {
	switch kind {
	case VisitDelivery:
		return RequestDelivery
	case VisitRide:
		return RequestRide
	case VisitService:
		return RequestService
	default:
		return RequestGuest
	}
}

// CreatorType 登记人类型
type CreatorType string

const (
	CreatorGuard  CreatorType = "guard"
	CreatorClient CreatorType = "client"
)

// CheckInOut 门岗进出事件，创建时冻结房屋与户主快照
type CheckInOut struct {
	BaseModel
	ApartmentID    uint          `gorm:"index;not null" json:"apartment_id"`
	Type           GateDirection `gorm:"type:varchar(20);not null" json:"type"`
	RequestType    RequestType   `gorm:"type:varchar(20);not null" json:"request_type"`
	VisitRequestID *uint         `gorm:"index" json:"visit_request_id"`
	CreatedByType  CreatorType   `gorm:"type:varchar(20);not null" json:"created_by_type"`
	GuardID        null.Int      `json:"guard_id"`
	ClientID       null.Int      `json:"client_id"`
	VehicleNumber  string        `gorm:"type:varchar(20)" json:"vehicle_number"`
	ImageURL       string        `gorm:"type:varchar(255)" json:"image_url"`
	SurveillanceID null.Int      `json:"surveillance_id"`

	FlatJSON   datatypes.JSONType[[]FlatSnapshot]   `gorm:"column:flat_json" json:"flat_json"`
	ParentJSON datatypes.JSONType[[]ParentSnapshot] `gorm:"column:parent_json" json:"parent_json"`

	// Relations - 关联关系
	Flats        []Flat              `gorm:"many2many:check_in_out_flats;" json:"flats,omitempty"`
	Requests     []CheckInOutRequest `gorm:"foreignKey:CheckInOutID" json:"requests,omitempty"`
	VisitRequest *VisitRequest       `gorm:"foreignKey:VisitRequestID" json:"visit_request,omitempty"`
}

// TicketType 审批单类型
type TicketType string

const (
	TicketCheckIn TicketType = "checkin"
	TicketParcel  TicketType = "parcel"
)

// TicketStatus 审批状态，只能从 pending 变为终态
type TicketStatus string

const (
	TicketPending  TicketStatus = "pending"
	TicketApproved TicketStatus = "approved"
	TicketRejected TicketStatus = "rejected"
)

// CheckInOutRequest 每个房屋一张审批单；记录只增不删
type CheckInOutRequest struct {
	BaseModel
	CheckInOutID uint         `gorm:"index;not null" json:"check_in_out_id"`
	FlatID       uint         `gorm:"index;not null" json:"flat_id"`
	Type         TicketType   `gorm:"type:varchar(20);not null" json:"type"`
	Status       TicketStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	ApprovedByClientID null.Int  `json:"approved_by_client_id"`
	DecidedAt          null.Time `json:"decided_at"`

	IsCollected         bool      `gorm:"default:false" json:"is_collected"`
	CollectedByClientID null.Int  `json:"collected_by_client_id"`
	HandedOverByGuardID null.Int  `json:"handed_over_by_guard_id"`
	CollectedAt         null.Time `json:"collected_at"`

	HasUserConfirmed    bool      `gorm:"default:false" json:"has_user_confirmed"`
	ConfirmedByClientID null.Int  `json:"confirmed_by_client_id"`
	ConfirmedAt         null.Time `json:"confirmed_at"`

	HasGuardCheckedIn  bool      `gorm:"default:false" json:"has_guard_checked_in"`
	GuardCheckedInByID null.Int  `json:"guard_checked_in_by_id"`
	GuardCheckedInAt   null.Time `json:"guard_checked_in_at"`

	CheckInOut *CheckInOut `gorm:"foreignKey:CheckInOutID" json:"check_in_out,omitempty"`
	Flat       *Flat       `gorm:"foreignKey:FlatID" json:"flat,omitempty"`
}

// ParcelStatus 包裹审计状态
type ParcelStatus string

const (
	ParcelConfirmed ParcelStatus = "confirmed" // 门岗确认已放置
	ParcelCollected ParcelStatus = "collected" // 已交给住户
)

// ParcelHistory 包裹流转审计，每次状态变化一条
type ParcelHistory struct {
	BaseModel
	RequestID   uint         `gorm:"index;not null" json:"request_id"`
	FlatID      uint         `gorm:"index;not null" json:"flat_id"`
	ApartmentID uint         `gorm:"index;not null" json:"apartment_id"`
	Status      ParcelStatus `gorm:"type:varchar(20);not null" json:"status"`
	GuardID     null.Int     `json:"guard_id"`
	ClientID    null.Int     `json:"client_id"`

	Request *CheckInOutRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
}
