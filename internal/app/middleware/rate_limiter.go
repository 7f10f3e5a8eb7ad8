package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/error/response"
)

// RateLimiterConfig 限流器配置
type RateLimiterConfig struct {
	Rate       float64                   // 每秒允许的请求数
	Burst      int                       // 允许的突发请求数
	ExpiryTime time.Duration             // 限流器空闲多久后回收
	LimitType  string                    // 限流类型: "ip", "path", "combined", "principal"
	KeyFunc    func(*gin.Context) string // 自定义键生成函数
}

// DefaultRateLimiterConfig 默认限流器配置
var DefaultRateLimiterConfig = RateLimiterConfig{
	Rate:       20,
	Burst:      40,
	ExpiryTime: 10 * time.Minute,
	LimitType:  "ip",
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore 按键保存令牌桶，空闲的定期回收
type limiterStore struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	expiry  time.Duration
	lastGC  time.Time
}

func newLimiterStore(cfg RateLimiterConfig) *limiterStore {
	return &limiterStore{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(cfg.Rate),
		burst:   cfg.Burst,
		expiry:  cfg.ExpiryTime,
		lastGC:  time.Now(),
	}
}

func (s *limiterStore) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expiry > 0 && now.Sub(s.lastGC) > s.expiry {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > s.expiry {
				delete(s.entries, k)
			}
		}
		s.lastGC = now
	}

	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func limiterKey(c *gin.Context, cfg RateLimiterConfig) string {
	switch cfg.LimitType {
	case "path":
		return c.Request.URL.Path
	case "combined":
		return c.ClientIP() + ":" + c.Request.URL.Path
	case "principal":
		// 认证之后使用，同一个门岗账号在多台设备上共享配额
		if p, ok := CurrentPrincipal(c); ok {
			return string(p.Role) + ":" + strconv.FormatUint(uint64(p.ID), 10)
		}
		return c.ClientIP()
	default:
		if cfg.KeyFunc != nil {
			return cfg.KeyFunc(c)
		}
		return c.ClientIP()
	}
}

// RateLimiter 创建限流中间件
func RateLimiter(config ...RateLimiterConfig) gin.HandlerFunc {
	var cfg RateLimiterConfig
	if len(config) > 0 {
		cfg = config[0]
	} else {
		cfg = DefaultRateLimiterConfig
	}

	// 确保配置有效
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRateLimiterConfig.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimiterConfig.Burst
	}
	if cfg.LimitType == "" {
		cfg.LimitType = DefaultRateLimiterConfig.LimitType
	}

	store := newLimiterStore(cfg)
	return func(c *gin.Context) {
		if !store.allow(limiterKey(c, cfg), time.Now()) {
			response.Fail(c, code.ErrTooManyRequests, nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// IPRateLimiter 按IP限流
func IPRateLimiter(rps float64, burst int) gin.HandlerFunc {
	return RateLimiter(RateLimiterConfig{
		Rate:       rps,
		Burst:      burst,
		ExpiryTime: DefaultRateLimiterConfig.ExpiryTime,
		LimitType:  "ip",
	})
}

// PrincipalRateLimiter 按调用者限流
func PrincipalRateLimiter(rps float64, burst int) gin.HandlerFunc {
	return RateLimiter(RateLimiterConfig{
		Rate:       rps,
		Burst:      burst,
		ExpiryTime: DefaultRateLimiterConfig.ExpiryTime,
		LimitType:  "principal",
	})
}
