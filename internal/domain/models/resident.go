package models

// ResidencyType 住户与房屋的关系
type ResidencyType string

const (
	ResidencyOwner        ResidencyType = "owner"
	ResidencyTenant       ResidencyType = "tenant"
	ResidencyOwnerFamily  ResidencyType = "owner_family"
	ResidencyTenantFamily ResidencyType = "tenant_family"
)

// Client 住户账号
type Client struct {
	BaseModel
	Name     string `gorm:"type:varchar(50);not null" json:"name"`
	Email    string `gorm:"type:varchar(100)" json:"email"`
	Phone    string `gorm:"type:varchar(20)" json:"phone"`
	ImageURL string `gorm:"type:varchar(255)" json:"image_url"`
	Archive  bool   `gorm:"default:false" json:"archive"`

	Devices []ClientDevice `gorm:"foreignKey:ClientID" json:"devices,omitempty"`
}

// FlatClient 住户当前的居住关系；Offline 或 Archive 的关系不接收通知
type FlatClient struct {
	BaseModel
	FlatID      uint          `gorm:"index;not null" json:"flat_id"`
	ClientID    uint          `gorm:"index;not null" json:"client_id"`
	ApartmentID uint          `gorm:"index;not null" json:"apartment_id"`
	Type        ResidencyType `gorm:"type:varchar(20);not null" json:"type"`
	Offline     bool          `gorm:"default:false" json:"offline"`
	Archive     bool          `gorm:"default:false" json:"archive"`

	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Flat   *Flat   `gorm:"foreignKey:FlatID" json:"flat,omitempty"`
}

// IsActive 是否为当前有效的居住关系
func (r FlatClient) IsActive() bool {
	return !r.Offline && !r.Archive && (r.Client == nil || !r.Client.Archive)
}

// ClientDevice 推送端点，一个住户可以有多个
type ClientDevice struct {
	BaseModel
	ClientID uint   `gorm:"index;not null" json:"client_id"`
	Token    string `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	Platform string `gorm:"type:varchar(20)" json:"platform"`
}
