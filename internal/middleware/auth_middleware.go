package middleware

import (
	"strings"

	"fintrack/internal/models"
	"fintrack/internal/services"
	"fintrack/pkg/config"
	"fintrack/pkg/jwt"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 权限中间件
type AuthMiddleware struct {
	userService *services.UserService
	jwtManager  *jwt.JWTManager
	cookieName  string
}

func NewAuthMiddleware() *AuthMiddleware {
	return &AuthMiddleware{
		userService: services.NewUserService(),
		jwtManager:  jwt.GetJWTManager(),
		cookieName:  config.GetConfig().JWT.CookieName,
	}
}

// extractToken 取令牌：优先Authorization头，其次Cookie
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return authHeader[7:]
		}
		return ""
	}

	token, err := c.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return token
}

// RequireLogin 要求登录
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := m.extractToken(c)
		if tokenString == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		// 验证token
		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		// 获取用户信息
		user, err := m.userService.GetByID(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "用户不存在")
			c.Abort()
			return
		}

		// 检查用户状态
		if !user.IsActive() {
			response.Unauthorized(c, "用户已被禁用")
			c.Abort()
			return
		}

		// 将用户信息保存到上下文
		c.Set("user", user)
		c.Set("user_id", claims.UserID)
		c.Set("tenant_id", user.TenantID)
		c.Set("username", claims.Username)
		c.Set("claims", claims)

		c.Next()
	}
}

// RequireAdmin 要求管理员角色
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !user.(*models.User).IsAdmin() {
			response.Forbidden(c, "需要管理员权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireRole 要求指定角色之一（管理员始终放行）
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		userObj := user.(*models.User)
		if userObj.IsAdmin() {
			c.Next()
			return
		}

		for _, role := range roles {
			if userObj.Role == role {
				c.Next()
				return
			}
		}

		response.Forbidden(c, "权限不足：角色不符")
		c.Abort()
	}
}

// CurrentUser 从上下文取当前用户
func CurrentUser(c *gin.Context) *models.User {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	return user.(*models.User)
}
