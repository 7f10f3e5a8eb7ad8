package models

// Apartment 表示一个小区（租户）
type Apartment struct {
	BaseModel
	Name    string `gorm:"type:varchar(100);not null" json:"name"`
	Archive bool   `gorm:"default:false" json:"archive"`
}

// Block 表示楼栋
type Block struct {
	BaseModel
	Name        string `gorm:"type:varchar(50);not null" json:"name"`
	ApartmentID uint   `gorm:"index;not null" json:"apartment_id"`
	Archive     bool   `gorm:"default:false" json:"archive"`
}

// Floor 表示楼层
type Floor struct {
	BaseModel
	Name    string `gorm:"type:varchar(50);not null" json:"name"`
	BlockID uint   `gorm:"index;not null" json:"block_id"`

	Block *Block `gorm:"foreignKey:BlockID" json:"block,omitempty"`
}

// Flat 表示房屋（单元），访客登记的目标
type Flat struct {
	BaseModel
	Name        string `gorm:"type:varchar(50);not null" json:"name"`
	ApartmentID uint   `gorm:"index;not null" json:"apartment_id"`
	FloorID     uint   `gorm:"index;not null" json:"floor_id"`
	Archive     bool   `gorm:"default:false" json:"archive"`

	// Relations - 关联关系
	Floor     *Floor       `gorm:"foreignKey:FloorID" json:"floor,omitempty"`
	Residents []FlatClient `gorm:"foreignKey:FlatID" json:"residents,omitempty"`
}

// SurveillancePoint 门岗
type SurveillancePoint struct {
	BaseModel
	Name        string `gorm:"type:varchar(50);not null" json:"name"`
	ApartmentID uint   `gorm:"index;not null" json:"apartment_id"`
}

// Guard 门岗保安
type Guard struct {
	BaseModel
	Name        string `gorm:"type:varchar(50);not null" json:"name"`
	Phone       string `gorm:"type:varchar(20)" json:"phone"`
	ApartmentID uint   `gorm:"index;not null" json:"apartment_id"`
	Archive     bool   `gorm:"default:false" json:"archive"`
}
