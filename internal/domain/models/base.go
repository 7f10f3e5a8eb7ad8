package models

import "time"

type PaginationQuery struct {
	PageNum  int  `form:"pageNum" json:"pageNum"`
	PageSize int  `form:"pageSize" json:"pageSize"`
	Desc     bool `form:"desc" json:"desc"`
}

type PaginationResult struct {
	Total    int64 `form:"total" json:"total"`
	PageNum  int   `form:"pageNum" json:"pageNum"`
	PageSize int   `form:"pageSize" json:"pageSize"`
}

type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize 补全分页参数的默认值
func (q PaginationQuery) Normalize() PaginationQuery {
	if q.PageNum <= 0 {
		q.PageNum = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return q
}

// Offset 计算分页偏移量
func (q PaginationQuery) Offset() int {
	return (q.PageNum - 1) * q.PageSize
}

// Order 按ID排序方向
func (q PaginationQuery) Order(column string) string {
	if q.Desc {
		return column + " DESC"
	}
	return column + " ASC"
}

// NewPaginationResult 创建一个新的分页结果对象
func NewPaginationResult(total int64, pageNum, pageSize int) PaginationResult {
	return PaginationResult{
		Total:    total,
		PageNum:  pageNum,
		PageSize: pageSize,
	}
}

// AllModels 需要自动迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&Apartment{},
		&Block{},
		&Floor{},
		&Flat{},
		&Client{},
		&FlatClient{},
		&ClientDevice{},
		&Guard{},
		&SurveillancePoint{},
		&VisitProvider{},
		&VisitRequest{},
		&CheckInOut{},
		&CheckInOutRequest{},
		&ParcelHistory{},
		&Notification{},
		&NotificationGroup{},
	}
}
