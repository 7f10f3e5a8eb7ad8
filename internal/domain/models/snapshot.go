package models

// SnapshotVersion 快照结构版本，结构变化时递增
const SnapshotVersion = 1

// FlatSnapshot 创建门岗事件时冻结的房屋信息
type FlatSnapshot struct {
	Version int    `json:"v"`
	FlatID  uint   `json:"flat_id"`
	Name    string `json:"name"`
	Floor   string `json:"floor"`
	Block   string `json:"block"`
}

// ParentSnapshot 创建门岗事件时冻结的户主信息
type ParentSnapshot struct {
	Version  int           `json:"v"`
	FlatID   uint          `json:"flat_id"`
	ClientID uint          `json:"client_id"`
	Name     string        `json:"name"`
	Contact  string        `json:"contact"`
	ImageURL string        `json:"image_url,omitempty"`
	Type     ResidencyType `json:"type"`
}
