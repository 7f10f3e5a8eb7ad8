package models

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// RecipientType 通知接收人类型
type RecipientType string

const (
	RecipientClient RecipientType = "client"
	RecipientGuard  RecipientType = "guard"
)

// Notification 站内通知记录，每个接收人一条
type Notification struct {
	BaseModel
	RecipientID   uint          `gorm:"index:idx_notification_recipient;not null" json:"recipient_id"`
	RecipientType RecipientType `gorm:"index:idx_notification_recipient;type:varchar(20);not null" json:"recipient_type"`
	ApartmentID   uint          `gorm:"index" json:"apartment_id"`
	FlatID        null.Int      `json:"flat_id"`
	Type          string        `gorm:"type:varchar(50);not null" json:"type"`
	Title         string        `gorm:"type:varchar(255)" json:"title"`
	Body          string        `gorm:"type:varchar(1000)" json:"body"`
	Path          string        `gorm:"type:varchar(255)" json:"path"`
	GroupKey      string        `gorm:"type:varchar(128)" json:"group_key,omitempty"`
	IsRead        bool          `gorm:"default:false" json:"is_read"`
}

// NotificationGroup 分组通知去重，同一个 Key 在 ExpiresAt 之前只发送一次
type NotificationGroup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"key"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
