package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"merodocs-http-service/internal/infrastructure/config"
)

// ErrTokenRole 令牌中的角色未知
var ErrTokenRole = errors.New("unknown role in token")

// InterfaceJWTService 定义JWT服务接口
type InterfaceJWTService interface {
	GenerateToken(p Principal, ttl time.Duration) (string, error)
	ExtractClaims(tokenString string) (*JWTClaims, error)
}

// JWTService 提供JWT相关服务；令牌由账号服务签发，这里负责校验
type JWTService struct {
	secretKey string
	issuer    string
}

// JWTClaims 定义JWT令牌的声明结构
type JWTClaims struct {
	UserID      uint   `json:"user_id"`
	Role        string `json:"role"`
	ApartmentID uint   `json:"apartment_id"`
	jwt.RegisteredClaims
}

// Principal 转换为调用者身份
func (c *JWTClaims) Principal() (Principal, error) {
	role := Role(c.Role)
	if role != RoleGuard && role != RoleClient {
		return Principal{}, ErrTokenRole
	}
	return Principal{ID: c.UserID, Role: role, ApartmentID: c.ApartmentID}, nil
}

// NewJWTService 创建一个新的JWT服务
func NewJWTService(cfg *config.Config) InterfaceJWTService {
	return &JWTService{
		secretKey: cfg.JWTSecretKey,
		issuer:    "merodocs-http-service",
	}
}

// 1 GenerateToken 生成JWT令牌
func (s *JWTService) GenerateToken(p Principal, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()

	claims := &JWTClaims{
		UserID:      p.ID,
		Role:        string(p.Role),
		ApartmentID: p.ApartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secretKey))
}

// 2 ExtractClaims 验证令牌并提取声明
func (s *JWTService) ExtractClaims(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
