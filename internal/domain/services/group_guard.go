package services

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"merodocs-http-service/internal/domain/models"
)

const defaultGroupTTL = 24 * time.Hour

// GroupGuard 分组通知去重：有效期内同一个 key 只有第一次 Acquire 返回 true
type GroupGuard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	// Release 放弃已占用的 key，用于通知没能投递的情况
	Release(ctx context.Context, key string) error
}

// RedisGroupGuard 使用 SETNX，key 到期后可再次发送
type RedisGroupGuard struct {
	Redis InterfaceRedisService
	TTL   time.Duration
}

func NewRedisGroupGuard(redis InterfaceRedisService, ttl time.Duration) *RedisGroupGuard {
	if ttl <= 0 {
		ttl = defaultGroupTTL
	}
	return &RedisGroupGuard{Redis: redis, TTL: ttl}
}

func (g *RedisGroupGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return g.Redis.SetNX(ctx, "notify_group:"+key, 1, g.TTL)
}

func (g *RedisGroupGuard) Release(ctx context.Context, key string) error {
	return g.Redis.Delete(ctx, "notify_group:"+key)
}

// DBGroupGuard 依赖 notification_groups.key 唯一索引，过期的行会被重新占用
type DBGroupGuard struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time
}

func NewDBGroupGuard(db *gorm.DB, ttl time.Duration) *DBGroupGuard {
	if ttl <= 0 {
		ttl = defaultGroupTTL
	}
	return &DBGroupGuard{DB: db, TTL: ttl, Now: time.Now}
}

func (g *DBGroupGuard) Acquire(ctx context.Context, key string) (bool, error) {
	now := g.Now()
	db := g.DB.WithContext(ctx)

	// 先清掉过期的行；并发时只有一个 INSERT 能成功
	if err := db.Where(groupKeyEq(key)).
		Where(clause.Lte{Column: clause.Column{Name: "expires_at"}, Value: now}).
		Delete(&models.NotificationGroup{}).Error; err != nil {
		return false, err
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.NotificationGroup{Key: key, ExpiresAt: now.Add(g.TTL)})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (g *DBGroupGuard) Release(ctx context.Context, key string) error {
	return g.DB.WithContext(ctx).Where(groupKeyEq(key)).Delete(&models.NotificationGroup{}).Error
}

// key 在 MySQL 里是保留字，交给方言去加引号
func groupKeyEq(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}
