package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/error/response"
)

const principalKey = "principal"

var jwtService services.InterfaceJWTService

// InitAuthMiddleware 初始化认证中间件
func InitAuthMiddleware(svc services.InterfaceJWTService) {
	jwtService = svc
}

// extractToken 从授权头中提取token
func extractToken(authHeader string) string {
	// 检查并移除 "Bearer " 前缀
	if len(authHeader) > 7 && strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return authHeader
}

// tokenFromRequest 浏览器的 websocket 无法设置请求头，允许使用 ?token=
func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return extractToken(h)
	}
	return c.Query("token")
}

func authenticate(role services.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			response.FailWithMessage(c, code.ErrTokenInvalid, "Authorization header is required", nil)
			c.Abort()
			return
		}

		claims, err := jwtService.ExtractClaims(tokenString)
		if err != nil {
			response.FailWithMessage(c, code.ErrTokenInvalid, "Invalid token: "+err.Error(), nil)
			c.Abort()
			return
		}

		p, err := claims.Principal()
		if err != nil {
			response.FailWithMessage(c, code.ErrTokenInvalid, "Invalid token claims", nil)
			c.Abort()
			return
		}
		if p.Role != role {
			response.FailWithMessage(c, code.ErrForbidden, "Insufficient permissions: requires "+string(role)+" role", nil)
			c.Abort()
			return
		}

		// 存储身份到上下文
		c.Set(principalKey, p)
		c.Set("userID", p.ID)
		c.Set("role", string(p.Role))
		c.Next()
	}
}

// AuthenticateGuard 验证门岗权限
func AuthenticateGuard() gin.HandlerFunc {
	return authenticate(services.RoleGuard)
}

// AuthenticateClient 验证住户权限
func AuthenticateClient() gin.HandlerFunc {
	return authenticate(services.RoleClient)
}

// CurrentPrincipal 读取认证中间件注入的身份
func CurrentPrincipal(c *gin.Context) (services.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return services.Principal{}, false
	}
	p, ok := v.(services.Principal)
	return p, ok
}

// SetPrincipal 写入身份，供测试和内部调用使用
func SetPrincipal(c *gin.Context, p services.Principal) {
	c.Set(principalKey, p)
}
