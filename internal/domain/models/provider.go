package models

import "gopkg.in/guregu/null.v4"

// VisitProvider 快递公司/出行平台/服务类型。
// ApartmentID 和 CreatedByClientID 都为空时为全局服务商。
type VisitProvider struct {
	BaseModel
	Name              string    `gorm:"type:varchar(100);not null;index" json:"name"`
	Kind              VisitKind `gorm:"type:varchar(20);not null;index" json:"kind"`
	ApartmentID       null.Int  `gorm:"index" json:"apartment_id"`
	CreatedByClientID null.Int  `gorm:"index" json:"created_by_client_id"`
	ImageURL          string    `gorm:"type:varchar(255)" json:"image_url"`
	Archive           bool      `gorm:"default:false" json:"archive"`
}

// IsGlobal 是否为全局服务商
func (p VisitProvider) IsGlobal() bool {
	return !p.ApartmentID.Valid && !p.CreatedByClientID.Valid
}
