package services

import (
	"context"

	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
)

// RecipientSet 通知接收人与推送端点，均已去重
type RecipientSet struct {
	ClientIDs []uint
	Endpoints []string
}

func (r RecipientSet) Empty() bool {
	return len(r.ClientIDs) == 0
}

// InterfaceRecipientService defines the recipient resolver interface
type InterfaceRecipientService interface {
	ResolveForUnits(ctx context.Context, flatIDs []uint) (RecipientSet, error)
	ResolveGuards(ctx context.Context, apartmentID uint) ([]uint, error)
	ActiveFlatsOf(ctx context.Context, clientID uint) ([]uint, error)
	IsActiveResident(ctx context.Context, clientID, flatID uint) (bool, error)
}

// RecipientService 解析房屋当前住户及其设备
type RecipientService struct {
	DB *gorm.DB
}

// NewRecipientService 创建接收人解析服务
func NewRecipientService(db *gorm.DB) InterfaceRecipientService {
	return &RecipientService{DB: db}
}

// activeResidency 有效居住关系：未离线、未归档，且账号未归档
func activeResidency(db *gorm.DB) *gorm.DB {
	return db.Model(&models.FlatClient{}).
		Joins("JOIN clients ON clients.id = flat_clients.client_id").
		Where("flat_clients.offline = ? AND flat_clients.archive = ? AND clients.archive = ?", false, false, false)
}

// 1 ResolveForUnits 任一房屋的有效住户及其全部设备
func (s *RecipientService) ResolveForUnits(ctx context.Context, flatIDs []uint) (RecipientSet, error) {
	var set RecipientSet
	if len(flatIDs) == 0 {
		return set, nil
	}

	db := s.DB.WithContext(ctx)
	if err := activeResidency(db).
		Where("flat_clients.flat_id IN ?", flatIDs).
		Distinct().
		Order("flat_clients.client_id").
		Pluck("flat_clients.client_id", &set.ClientIDs).Error; err != nil {
		return RecipientSet{}, err
	}
	if len(set.ClientIDs) == 0 {
		return set, nil
	}

	var tokens []string
	if err := db.Model(&models.ClientDevice{}).
		Where("client_id IN ?", set.ClientIDs).
		Order("id").
		Pluck("token", &tokens).Error; err != nil {
		return RecipientSet{}, err
	}
	set.Endpoints = uniqueStrings(tokens)
	return set, nil
}

// 2 ResolveGuards 小区内未归档的门岗
func (s *RecipientService) ResolveGuards(ctx context.Context, apartmentID uint) ([]uint, error) {
	var ids []uint
	err := s.DB.WithContext(ctx).Model(&models.Guard{}).
		Where("apartment_id = ? AND archive = ?", apartmentID, false).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// 3 ActiveFlatsOf 住户当前有效居住的房屋
func (s *RecipientService) ActiveFlatsOf(ctx context.Context, clientID uint) ([]uint, error) {
	var ids []uint
	err := activeResidency(s.DB.WithContext(ctx)).
		Joins("JOIN flats ON flats.id = flat_clients.flat_id AND flats.archive = ?", false).
		Where("flat_clients.client_id = ?", clientID).
		Distinct().
		Order("flat_clients.flat_id").
		Pluck("flat_clients.flat_id", &ids).Error
	return ids, err
}

// 4 IsActiveResident 住户是否为房屋的有效住户
func (s *RecipientService) IsActiveResident(ctx context.Context, clientID, flatID uint) (bool, error) {
	var count int64
	err := activeResidency(s.DB.WithContext(ctx)).
		Where("flat_clients.client_id = ? AND flat_clients.flat_id = ?", clientID, flatID).
		Count(&count).Error
	return count > 0, err
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func uniqueUints(in []uint) []uint {
	seen := make(map[uint]struct{}, len(in))
	out := make([]uint, 0, len(in))
	for _, v := range in {
		if v == 0 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
