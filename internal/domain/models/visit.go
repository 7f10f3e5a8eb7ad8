package models

import (
	"gopkg.in/guregu/null.v4"
	"gorm.io/datatypes"
)

// VisitKind 访客类型
type VisitKind string

const (
	VisitGuest    VisitKind = "guest"
	VisitDelivery VisitKind = "delivery"
	VisitRide     VisitKind = "ride"
	VisitService  VisitKind = "service"
)

// Valid 是否为已知类型
func (k VisitKind) Valid() bool {
	switch k {
	case VisitGuest, VisitDelivery, VisitRide, VisitService:
		return true
	}
	return false
}

// MultiFlat 是否允许一次登记多个房屋
func (k VisitKind) MultiFlat() bool {
	return k == VisitGuest || k == VisitDelivery
}

// NeedsProvider 是否需要关联服务商
func (k VisitKind) NeedsProvider() bool {
	return k == VisitDelivery || k == VisitRide || k == VisitService
}

// VisitOrigin 登记来源
type VisitOrigin string

const (
	OriginManual      VisitOrigin = "manual"      // 门岗现场登记
	OriginPreapproved VisitOrigin = "preapproved" // 住户预约
)

// VisitStatus 访客记录状态
type VisitStatus string

const (
	VisitPending  VisitStatus = "pending"
	VisitApproved VisitStatus = "approved"
	VisitRejected VisitStatus = "rejected"
	VisitExpired  VisitStatus = "expired"
)

// VisitDetails 按类型区分的详情，只有与 Kind 对应的字段非空
type VisitDetails struct {
	Guest    *GuestDetails    `json:"guest,omitempty"`
	Delivery *DeliveryDetails `json:"delivery,omitempty"`
	Ride     *RideDetails     `json:"ride,omitempty"`
	Service  *ServiceDetails  `json:"service,omitempty"`
}

type GuestDetails struct {
	Total   int    `json:"total"`
	Purpose string `json:"purpose,omitempty"`
}

type DeliveryDetails struct {
	LeaveAtGate bool     `json:"leave_at_gate"`
	ParcelCount int      `json:"parcel_count"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
}

type RideDetails struct {
	VehicleType string `json:"vehicle_type,omitempty"`
}

type ServiceDetails struct {
	Purpose string `json:"purpose,omitempty"`
}

// MatchesKind 详情是否与类型一致
func (d VisitDetails) MatchesKind(kind VisitKind) bool {
	set := 0
	for _, present := range []bool{d.Guest != nil, d.Delivery != nil, d.Ride != nil, d.Service != nil} {
		if present {
			set++
		}
	}
	if set == 0 {
		return true
	}
	if set > 1 {
		return false
	}
	switch kind {
	case VisitGuest:
		return d.Guest != nil
	case VisitDelivery:
		return d.Delivery != nil
	case VisitRide:
		return d.Ride != nil
	case VisitService:
		return d.Service != nil
	}
	return false
}

// LeaveAtGate 是否为放在门岗的快递
func (d VisitDetails) LeaveAtGate() bool {
	return d.Delivery != nil && d.Delivery.LeaveAtGate
}

// VisitRequest 访客/快递/网约车/服务人员登记
type VisitRequest struct {
	BaseModel
	ApartmentID       uint        `gorm:"index;not null" json:"apartment_id"`
	Kind              VisitKind   `gorm:"type:varchar(20);not null;index" json:"kind"`
	Origin            VisitOrigin `gorm:"type:varchar(20);not null" json:"origin"`
	Status            VisitStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Name              string      `gorm:"type:varchar(100)" json:"name"`
	Contact           string      `gorm:"type:varchar(20)" json:"contact"`
	VehicleNumber     string      `gorm:"type:varchar(20)" json:"vehicle_number"`
	GroupID           string      `gorm:"type:varchar(64);index" json:"group_id"`
	ProviderID        *uint       `gorm:"index" json:"provider_id"`
	FromDate          null.Time   `json:"from_date"`
	ToDate            null.Time   `gorm:"index" json:"to_date"`
	CreatedByGuardID  null.Int    `json:"created_by_guard_id"`
	CreatedByClientID null.Int    `gorm:"index" json:"created_by_client_id"`

	Details datatypes.JSONType[VisitDetails] `json:"details"`

	// Relations - 关联关系
	Provider    *VisitProvider `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	Flats       []Flat         `gorm:"many2many:visit_request_flats;" json:"flats,omitempty"`
	CheckInOuts []CheckInOut   `gorm:"foreignKey:VisitRequestID" json:"check_in_outs,omitempty"`
}

// FlatIDs 关联房屋ID
func (v *VisitRequest) FlatIDs() []uint {
	ids := make([]uint, 0, len(v.Flats))
	for _, f := range v.Flats {
		ids = append(ids, f.ID)
	}
	return ids
}
