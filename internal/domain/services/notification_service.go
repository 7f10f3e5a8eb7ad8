package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/guregu/null.v4"
	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/infrastructure/live"
	"merodocs-http-service/internal/infrastructure/metrics"
	"merodocs-http-service/internal/infrastructure/push"
	"merodocs-http-service/internal/infrastructure/queue"
	"merodocs-http-service/pkg/logger"
)

const dispatchTimeout = 30 * time.Second

// NotificationPayload 通知内容
type NotificationPayload struct {
	Type        string
	Title       string
	Body        string
	Path        string
	GroupKey    string // 非空时同一 key 只发送一次
	Force       bool   // 忽略分组去重，用于重发
	ApartmentID uint
	FlatID      uint
	Live        bool
	Sound       bool
	Data        interface{} // 门岗实时面板附带的数据
}

// InterfaceNotificationService defines the notification dispatcher interface
type InterfaceNotificationService interface {
	Dispatch(ctx context.Context, payload NotificationPayload, recipients RecipientSet, blocking bool) error
	NotifyGuards(ctx context.Context, payload NotificationPayload, guardIDs []uint) error
	ListForClient(ctx context.Context, clientID uint, q models.PaginationQuery) ([]models.Notification, models.PaginationResult, error)
	MarkRead(ctx context.Context, clientID, notificationID uint) error
}

// NotificationService 保存站内通知并并发推送到设备
type NotificationService struct {
	DB          *gorm.DB
	Provider    push.Provider
	Queue       *queue.Manager
	Groups      GroupGuard
	Live        live.Broadcaster
	Metrics     *metrics.Metrics
	Concurrency int
}

// NewNotificationService 创建通知服务；q 为空时所有发送都同步执行
func NewNotificationService(db *gorm.DB, provider push.Provider, q *queue.Manager, groups GroupGuard, hub live.Broadcaster, m *metrics.Metrics, concurrency int) InterfaceNotificationService {
	if groups == nil {
		groups = NewDBGroupGuard(db, defaultGroupTTL)
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &NotificationService{
		DB:          db,
		Provider:    provider,
		Queue:       q,
		Groups:      groups,
		Live:        hub,
		Metrics:     m,
		Concurrency: concurrency,
	}
}

// 1 Dispatch 通知一组住户。blocking=false 时提交到后台队列立即返回，
// 后台错误只记录日志。分组去重在提交前同步完成，任务没能入队时释放分组。
func (s *NotificationService) Dispatch(ctx context.Context, payload NotificationPayload, recipients RecipientSet, blocking bool) error {
	if recipients.Empty() {
		return nil
	}

	claimed := false
	if payload.GroupKey != "" && !payload.Force {
		first, err := s.Groups.Acquire(ctx, payload.GroupKey)
		claimed = err == nil && first
		if err != nil {
			// 去重失败时宁可重复也不漏发
			logger.WithFields(logger.Fields{"group_key": payload.GroupKey}).WithError(err).Warn("group guard unavailable")
		} else if !first {
			s.Metrics.Suppressed()
			logger.WithFields(logger.Fields{"group_key": payload.GroupKey, "type": payload.Type}).Debug("group notification suppressed")
			return nil
		}
	}

	if blocking || s.Queue == nil {
		return s.deliver(ctx, payload, recipients)
	}

	err := s.Queue.Submit(queue.Task{
		Name:    "notification.dispatch",
		Fields:  logger.Fields{"type": payload.Type, "flat_id": payload.FlatID, "recipients": len(recipients.ClientIDs)},
		Timeout: dispatchTimeout,
		Run: func(ctx context.Context) error {
			return s.deliver(ctx, payload, recipients)
		},
	})
	if err != nil {
		s.Metrics.Dropped()
		if claimed {
			if rerr := s.Groups.Release(ctx, payload.GroupKey); rerr != nil {
				logger.WithFields(logger.Fields{"group_key": payload.GroupKey}).WithError(rerr).Warn("release group key failed")
			}
		}
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, payload NotificationPayload, recipients RecipientSet) error {
	rows := make([]models.Notification, 0, len(recipients.ClientIDs))
	for _, id := range recipients.ClientIDs {
		rows = append(rows, newNotification(payload, id, models.RecipientClient))
	}

	var persistErr error
	if len(rows) > 0 {
		if err := s.DB.WithContext(ctx).Create(&rows).Error; err != nil {
			persistErr = fmt.Errorf("persist notifications: %w", err)
			logger.WithFields(logger.Fields{"type": payload.Type}).WithError(err).Error("persist notifications failed")
		}
	}

	if s.Provider == nil || len(recipients.Endpoints) == 0 {
		return persistErr
	}

	msg := push.Message{
		Type:     payload.Type,
		Title:    payload.Title,
		Body:     payload.Body,
		Path:     payload.Path,
		GroupKey: payload.GroupKey,
		FlatID:   payload.FlatID,
		Live:     payload.Live,
		Sound:    payload.Sound,
	}

	var failed int64
	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for _, endpoint := range recipients.Endpoints {
		endpoint := endpoint
		g.Go(func() error {
			err := s.Provider.Send(ctx, endpoint, msg)
			s.Metrics.Pushed(s.Provider.Name(), err == nil)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				logger.WithFields(logger.Fields{"endpoint": endpoint, "type": payload.Type}).WithError(err).Warn("push failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		logger.WithFields(logger.Fields{"type": payload.Type, "failed": failed, "total": len(recipients.Endpoints)}).Warn("some pushes failed")
	}
	return persistErr
}

// 2 NotifyGuards 保存门岗通知并推送到实时面板
func (s *NotificationService) NotifyGuards(ctx context.Context, payload NotificationPayload, guardIDs []uint) error {
	if s.Live != nil {
		data := payload.Data
		if data == nil {
			data = map[string]interface{}{"title": payload.Title, "body": payload.Body, "flat_id": payload.FlatID}
		}
		s.Live.Broadcast(payload.ApartmentID, payload.Type, data)
	}

	if len(guardIDs) == 0 {
		return nil
	}
	rows := make([]models.Notification, 0, len(guardIDs))
	for _, id := range guardIDs {
		rows = append(rows, newNotification(payload, id, models.RecipientGuard))
	}
	return s.DB.WithContext(ctx).Create(&rows).Error
}

// 3 ListForClient 住户的站内通知
func (s *NotificationService) ListForClient(ctx context.Context, clientID uint, q models.PaginationQuery) ([]models.Notification, models.PaginationResult, error) {
	q = q.Normalize()
	q.Desc = true

	query := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND recipient_type = ?", clientID, models.RecipientClient)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	var items []models.Notification
	if err := query.Order(q.Order("id")).Offset(q.Offset()).Limit(q.PageSize).Find(&items).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}
	return items, models.NewPaginationResult(total, q.PageNum, q.PageSize), nil
}

// 4 MarkRead 标记已读
func (s *NotificationService) MarkRead(ctx context.Context, clientID, notificationID uint) error {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND recipient_type = ?", notificationID, clientID, models.RecipientClient).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return code.NotFound(code.ErrNotFound)
	}
	return nil
}

func newNotification(p NotificationPayload, recipientID uint, recipientType models.RecipientType) models.Notification {
	n := models.Notification{
		RecipientID:   recipientID,
		RecipientType: recipientType,
		ApartmentID:   p.ApartmentID,
		Type:          p.Type,
		Title:         p.Title,
		Body:          p.Body,
		Path:          p.Path,
		GroupKey:      p.GroupKey,
	}
	if p.FlatID != 0 {
		n.FlatID = null.IntFrom(int64(p.FlatID))
	}
	return n
}

// isNotFound gorm 未找到记录
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
