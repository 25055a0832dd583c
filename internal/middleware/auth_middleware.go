package middleware

import (
	"context"
	"errors"
	"strings"

	"newsportal/internal/services"
	"newsportal/pkg/jwt"
	"newsportal/pkg/logger"
	"newsportal/pkg/response"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// AuthMiddleware 认证与授权中间件
type AuthMiddleware struct {
	userService *services.UserService
	guard       *services.AuthorizationGuard
	jwtManager  *jwt.JWTManager
}

func NewAuthMiddleware(userService *services.UserService, guard *services.AuthorizationGuard, jwtManager *jwt.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		guard:       guard,
		jwtManager:  jwtManager,
	}
}

// Authenticate 校验token并加载主体，websocket等无法携带请求头的场景也使用它
func (m *AuthMiddleware) Authenticate(ctx context.Context, token string) (*services.Principal, error) {
	claims, err := m.jwtManager.VerifyToken(token)
	if err != nil {
		return nil, services.ErrUnauthenticated
	}
	principal, err := m.userService.LoadPrincipal(ctx, claims.UserID)
	if errors.Is(err, services.ErrNotFound) {
		return nil, services.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return principal, nil
}

// RequireLogin 要求登录且账号处于激活状态
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}
		if !m.login(c, token) {
			return
		}

		principal := GetPrincipal(c)
		if principal.Disabled {
			response.Unauthorized(c, "用户已被禁用")
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalLogin 携带token时加载主体，未携带时以匿名身份继续
func (m *AuthMiddleware) OptionalLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}
		if !m.login(c, token) {
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) login(c *gin.Context, token string) bool {
	principal, err := m.Authenticate(c.Request.Context(), token)
	if errors.Is(err, services.ErrUnauthenticated) {
		response.Unauthorized(c, "Token无效或已过期")
		c.Abort()
		return false
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("加载用户失败")
		response.ServerError(c, "加载用户失败")
		c.Abort()
		return false
	}

	c.Set(principalKey, principal)
	c.Set("user_id", principal.ID)
	return true
}

// RequirePermission 要求特定权限，admin 角色直接放行
func (m *AuthMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	return m.require(services.RequirePermission(permission), "权限不足：需要 "+permission+" 权限")
}

// RequireRole 要求特定角色
func (m *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return m.require(services.RequireRole(role), "权限不足：需要 "+role+" 角色")
}

func (m *AuthMiddleware) require(req services.Requirement, deniedMessage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := m.guard.Authorize(c.Request.Context(), GetPrincipal(c), req)
		if errors.Is(err, services.ErrUnauthenticated) {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}
		if err != nil {
			logger.GetLogger().WithError(err).Error("权限检查失败")
			response.ServerError(c, "权限检查失败")
			c.Abort()
			return
		}
		if decision != services.Allowed {
			response.Forbidden(c, deniedMessage)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetPrincipal 获取当前请求的主体，匿名请求返回 nil
func GetPrincipal(c *gin.Context) *services.Principal {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil
	}
	principal, _ := v.(*services.Principal)
	return principal
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authHeader[7:])
	return token, token != ""
}
