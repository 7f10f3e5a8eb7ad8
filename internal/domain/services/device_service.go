package services

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/error/code"
)

// InterfaceDeviceService defines the push endpoint registration interface
type InterfaceDeviceService interface {
	RegisterDevice(ctx context.Context, actor Principal, token, platform string) (*models.ClientDevice, error)
	RemoveDevice(ctx context.Context, actor Principal, token string) error
}

// DeviceService 住户推送端点
type DeviceService struct {
	DB *gorm.DB
}

// NewDeviceService 创建设备服务
func NewDeviceService(db *gorm.DB) InterfaceDeviceService {
	return &DeviceService{DB: db}
}

// 1 RegisterDevice 按 token 幂等；同一设备换账号登录时归属新账号
func (s *DeviceService) RegisterDevice(ctx context.Context, actor Principal, token, platform string) (*models.ClientDevice, error) {
	if !actor.IsClient() {
		return nil, code.NotFound(code.ErrResidentNotFound)
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, "+#/") {
		return nil, code.BadRequest(code.ErrDeviceTokenInvalid)
	}

	device := &models.ClientDevice{ClientID: actor.ID, Token: token, Platform: platform}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"client_id", "platform", "updated_at"}),
	}).Create(device).Error; err != nil {
		return nil, err
	}

	// upsert 时主键不一定回填
	var saved models.ClientDevice
	if err := s.DB.WithContext(ctx).Where("token = ?", token).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// 2 RemoveDevice 退出登录时移除
func (s *DeviceService) RemoveDevice(ctx context.Context, actor Principal, token string) error {
	res := s.DB.WithContext(ctx).
		Where("client_id = ? AND token = ?", actor.ID, strings.TrimSpace(token)).
		Delete(&models.ClientDevice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return code.NotFound(code.ErrDeviceNotFound)
	}
	return nil
}
