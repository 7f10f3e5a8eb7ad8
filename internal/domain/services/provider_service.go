package services

import (
	"context"
	"strings"

	"gopkg.in/guregu/null.v4"
	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/error/code"
)

// CreateProviderInput 新增服务商
type CreateProviderInput struct {
	Name     string
	Kind     models.VisitKind
	ImageURL string
}

// InterfaceProviderService defines the provider service interface
type InterfaceProviderService interface {
	CreateProvider(ctx context.Context, actor Principal, in CreateProviderInput) (*models.VisitProvider, error)
	ListProviders(ctx context.Context, actor Principal, kind models.VisitKind) ([]models.VisitProvider, error)
}

// ProviderService 服务商管理
type ProviderService struct {
	DB *gorm.DB
}

// NewProviderService 创建服务商服务
func NewProviderService(db *gorm.DB) InterfaceProviderService {
	return &ProviderService{DB: db}
}

// 1 CreateProvider 门岗创建的属于本小区，住户创建的只有自己可见。
// 可见范围内同类型同名视为重复。
func (s *ProviderService) CreateProvider(ctx context.Context, actor Principal, in CreateProviderInput) (*models.VisitProvider, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, code.New(code.ErrValidation, "名称不能为空")
	}
	if !in.Kind.NeedsProvider() {
		return nil, code.BadRequest(code.ErrVisitKindInvalid)
	}

	provider := &models.VisitProvider{
		Name:        name,
		Kind:        in.Kind,
		ApartmentID: null.IntFrom(int64(actor.ApartmentID)),
		ImageURL:    in.ImageURL,
	}
	if actor.IsClient() {
		provider.CreatedByClientID = null.IntFrom(int64(actor.ID))
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := visibleProviders(tx, actor).
			Where("kind = ? AND LOWER(name) = ?", in.Kind, strings.ToLower(name)).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return code.Conflict(code.ErrProviderAlreadyExist)
		}
		return tx.Create(provider).Error
	})
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// 2 ListProviders 全局、本小区以及自己创建的服务商
func (s *ProviderService) ListProviders(ctx context.Context, actor Principal, kind models.VisitKind) ([]models.VisitProvider, error) {
	query := visibleProviders(s.DB.WithContext(ctx), actor)
	if kind != "" {
		if !kind.NeedsProvider() {
			return nil, code.BadRequest(code.ErrVisitKindInvalid)
		}
		query = query.Where("kind = ?", kind)
	}

	var providers []models.VisitProvider
	if err := query.Order("name").Order("id").Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

// visibleProviders 未归档且对当前用户可见的服务商
func visibleProviders(db *gorm.DB, actor Principal) *gorm.DB {
	query := db.Model(&models.VisitProvider{}).Where("archive = ?", false)
	if actor.IsClient() {
		return query.Where("((apartment_id IS NULL AND created_by_client_id IS NULL) OR (apartment_id = ? AND created_by_client_id IS NULL) OR created_by_client_id = ?)",
			actor.ApartmentID, actor.ID)
	}
	return query.Where("((apartment_id IS NULL AND created_by_client_id IS NULL) OR (apartment_id = ? AND created_by_client_id IS NULL))",
		actor.ApartmentID)
}

func providerVisible(p models.VisitProvider, actor Principal) bool {
	if p.IsGlobal() {
		return true
	}
	if p.CreatedByClientID.Valid {
		return actor.IsClient() && uint(p.CreatedByClientID.Int64) == actor.ID
	}
	return p.ApartmentID.Valid && uint(p.ApartmentID.Int64) == actor.ApartmentID
}

// loadVisibleProvider 需要服务商的类型必须提供；不可见按不存在处理
func loadVisibleProvider(tx *gorm.DB, actor Principal, kind models.VisitKind, id *uint) (*models.VisitProvider, error) {
	if !kind.NeedsProvider() {
		return nil, nil
	}
	if id == nil || *id == 0 {
		return nil, code.BadRequest(code.ErrProviderRequired)
	}

	var p models.VisitProvider
	if err := tx.Where("id = ? AND archive = ?", *id, false).First(&p).Error; err != nil {
		if isNotFound(err) {
			return nil, code.NotFound(code.ErrProviderNotFound)
		}
		return nil, err
	}
	if !providerVisible(p, actor) {
		return nil, code.NotFound(code.ErrProviderNotFound)
	}
	if p.Kind != kind {
		return nil, code.BadRequest(code.ErrProviderKindMismatch)
	}
	return &p, nil
}
