package services

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
)

// InterfaceSnapshotService defines the snapshot capture interface
type InterfaceSnapshotService interface {
	Capture(ctx context.Context, tx *gorm.DB, flatIDs []uint) ([]models.FlatSnapshot, []models.ParentSnapshot, error)
}

// SnapshotService 在门岗事件创建时冻结房屋与户主信息；之后不再修改
type SnapshotService struct{}

// NewSnapshotService 创建快照服务
func NewSnapshotService() InterfaceSnapshotService {
	return &SnapshotService{}
}

// Capture 在调用方的事务内读取房屋与当前居住关系，按 flatIDs 顺序返回快照。
// 没有户主或租户的房屋不生成户主快照。
func (s *SnapshotService) Capture(ctx context.Context, tx *gorm.DB, flatIDs []uint) ([]models.FlatSnapshot, []models.ParentSnapshot, error) {
	if len(flatIDs) == 0 {
		return []models.FlatSnapshot{}, []models.ParentSnapshot{}, nil
	}

	var flats []models.Flat
	if err := tx.WithContext(ctx).
		Preload("Floor.Block").
		Preload("Residents", "offline = ? AND archive = ?", false, false).
		Preload("Residents.Client").
		Where("id IN ?", flatIDs).
		Find(&flats).Error; err != nil {
		return nil, nil, err
	}

	byID := make(map[uint]models.Flat, len(flats))
	for _, f := range flats {
		byID[f.ID] = f
	}

	flatSnaps := make([]models.FlatSnapshot, 0, len(flatIDs))
	parentSnaps := make([]models.ParentSnapshot, 0, len(flatIDs))
	for _, id := range flatIDs {
		flat, ok := byID[id]
		if !ok {
			continue
		}
		flatSnaps = append(flatSnaps, CaptureUnitSnapshot(flat))
		if parent := CaptureParentSnapshot(flat.ID, flat.Residents); parent != nil {
			parentSnaps = append(parentSnaps, *parent)
		}
	}
	return flatSnaps, parentSnaps, nil
}

// CaptureUnitSnapshot 房屋显示名、楼层、楼栋
func CaptureUnitSnapshot(flat models.Flat) models.FlatSnapshot {
	snap := models.FlatSnapshot{
		Version: models.SnapshotVersion,
		FlatID:  flat.ID,
		Name:    flat.Name,
	}
	if flat.Floor != nil {
		snap.Floor = flat.Floor.Name
		if flat.Floor.Block != nil {
			snap.Block = flat.Floor.Block.Name
		}
	}
	return snap
}

// residencyRank 越小越优先；家属不作为户主
func residencyRank(t models.ResidencyType) (int, bool) {
	switch t {
	case models.ResidencyOwner:
		return 0, true
	case models.ResidencyTenant:
		return 1, true
	}
	return 0, false
}

// CaptureParentSnapshot 选出户主：业主优先于租户，同类取最早的居住关系。
// 只有家属或没有有效住户时返回 nil。
func CaptureParentSnapshot(flatID uint, residencies []models.FlatClient) *models.ParentSnapshot {
	candidates := make([]models.FlatClient, 0, len(residencies))
	for _, r := range residencies {
		if r.Client == nil || !r.IsActive() {
			continue
		}
		if _, ok := residencyRank(r.Type); ok {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, _ := residencyRank(candidates[i].Type)
		rj, _ := residencyRank(candidates[j].Type)
		if ri != rj {
			return ri < rj
		}
		return candidates[i].ID < candidates[j].ID
	})

	top := candidates[0]
	return &models.ParentSnapshot{
		Version:  models.SnapshotVersion,
		FlatID:   flatID,
		ClientID: top.ClientID,
		Name:     top.Client.Name,
		Contact:  top.Client.Phone,
		ImageURL: top.Client.ImageURL,
		Type:     top.Type,
	}
}
