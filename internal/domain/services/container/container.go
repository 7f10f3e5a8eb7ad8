package container

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/infrastructure/config"
	"merodocs-http-service/internal/infrastructure/events"
	"merodocs-http-service/internal/infrastructure/live"
	"merodocs-http-service/internal/infrastructure/metrics"
	"merodocs-http-service/internal/infrastructure/push"
	"merodocs-http-service/internal/infrastructure/queue"
	"merodocs-http-service/internal/infrastructure/storage"
	"merodocs-http-service/pkg/logger"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config

	// 基础设施
	metrics   *metrics.Metrics
	queue     *queue.Manager
	hub       *live.Hub
	publisher events.Publisher
	pusher    push.Provider
	storage   storage.ObjectStorage

	// 基础服务
	jwtService   services.InterfaceJWTService
	redisService services.InterfaceRedisService

	// 业务服务
	snapshotService     services.InterfaceSnapshotService
	recipientService    services.InterfaceRecipientService
	notificationService services.InterfaceNotificationService
	visitService        services.InterfaceVisitService
	ticketService       services.InterfaceTicketService
	providerService     services.InterfaceProviderService
	deviceService       services.InterfaceDeviceService

	cancel context.CancelFunc
	mu     sync.RWMutex
}

// NewServiceContainer 创建新的服务容器；reg 为空时使用默认的 prometheus 注册表
func NewServiceContainer(db *gorm.DB, cfg *config.Config, reg prometheus.Registerer) (*ServiceContainer, error) {
	if db == nil {
		panic("数据库连接为空")
	}
	if cfg == nil {
		panic("配置为空")
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	container := &ServiceContainer{
		db:      db,
		config:  cfg,
		metrics: metrics.NewMetrics(reg),
	}
	if err := container.initializeServices(); err != nil {
		return nil, err
	}
	return container, nil
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 对象存储是登记流程的一部分，不可用时直接失败
	store, err := storage.New(ctx, c.config)
	if err != nil {
		return err
	}
	c.storage = store

	// 推送通道连接失败时退化为只写日志
	pusher, err := push.New(c.config)
	if err != nil {
		logger.Error("推送服务初始化失败: %v，将只记录日志", err)
		pusher = push.NewLogProvider()
	}
	c.pusher = pusher

	// Redis 只用于通知分组去重，不可用时使用数据库
	var groups services.GroupGuard
	if c.config.RedisEnabled() {
		c.redisService = services.NewRedisService(c.config)
		if err := c.redisService.Ping(ctx); err != nil {
			logger.Warning("Redis连接测试失败: %v，通知分组将使用数据库", err)
		} else {
			groups = services.NewRedisGroupGuard(c.redisService, c.config.NotificationGroupTTL)
		}
	}

	c.publisher = events.NoopPublisher{}
	if c.config.NATSURL != "" {
		bus, err := events.NewNATSEventBus(c.config.NATSURL)
		if err != nil {
			logger.Warning("NATS连接失败: %v，不发布领域事件", err)
		} else {
			c.publisher = bus
		}
	}

	c.hub = live.NewHub()
	c.queue = queue.NewManager(c.config.QueueWorkers, c.config.QueueSize)

	c.jwtService = services.NewJWTService(c.config)
	c.snapshotService = services.NewSnapshotService()
	c.recipientService = services.NewRecipientService(c.db)
	if groups == nil {
		groups = services.NewDBGroupGuard(c.db, c.config.NotificationGroupTTL)
	}
	c.notificationService = services.NewNotificationService(c.db, c.pusher, c.queue, groups, c.hub, c.metrics, c.config.PushConcurrency)
	c.visitService = services.NewVisitService(c.db, c.storage, c.snapshotService, c.recipientService, c.notificationService, c.publisher, c.metrics)
	c.ticketService = services.NewTicketService(c.db, c.recipientService, c.notificationService, c.publisher, c.metrics)
	c.providerService = services.NewProviderService(c.db)
	c.deviceService = services.NewDeviceService(c.db)
	return nil
}

// Start 启动后台任务：通知队列、实时面板、预约过期清理和连接池指标
func (c *ServiceContainer) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.queue.Start()
	go c.hub.Start(ctx)
	go c.visitService.RunExpiryLoop(ctx, c.config.ExpiryInterval)
	go c.collectPoolStats(ctx, 15*time.Second)
}

func (c *ServiceContainer) collectPoolStats(ctx context.Context, interval time.Duration) {
	sqlDB, err := c.db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := sqlDB.Stats()
			c.metrics.SetPoolStats(map[string]float64{
				"open":   float64(s.OpenConnections),
				"in_use": float64(s.InUse),
				"idle":   float64(s.Idle),
			})
		}
	}
}

// Close 停止后台任务，等待队列中的通知发送完
func (c *ServiceContainer) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	c.queue.Stop()
	if err := c.publisher.Close(); err != nil {
		logger.Warning("关闭事件总线失败: %v", err)
	}
	if closer, ok := c.pusher.(interface{ Close() }); ok {
		closer.Close()
	}
	if c.redisService != nil {
		_ = c.redisService.Close()
	}
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "jwt":
		return c.jwtService
	case "redis":
		return c.redisService
	case "metrics":
		return c.metrics
	case "live":
		return c.hub
	case "snapshot":
		return c.snapshotService
	case "recipient":
		return c.recipientService
	case "notification":
		return c.notificationService
	case "visit":
		return c.visitService
	case "ticket":
		return c.ticketService
	case "provider":
		return c.providerService
	case "device":
		return c.deviceService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Metrics 指标集合，供中间件使用
func (c *ServiceContainer) Metrics() *metrics.Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}
