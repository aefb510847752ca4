package handlers

import (
	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/pkg/config"
	"fintrack/pkg/jwt"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	userService *services.UserService
	permService *services.PermissionService
	jwtManager  *jwt.JWTManager
}

func NewAuthHandler(userService *services.UserService, permService *services.PermissionService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		permService: permService,
		jwtManager:  jwt.GetJWTManager(),
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 用户登录：返回令牌并写入Cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, err := h.userService.Authenticate(req.Username, req.Password)
	if err != nil {
		response.Unauthorized(c, "用户名或密码错误")
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.TenantID, user.Username, user.Role, user.Department)
	if err != nil {
		response.ServerError(c, "生成令牌失败")
		return
	}

	cfg := config.GetConfig()
	maxAge := int(h.jwtManager.GetTokenDuration().Seconds())
	c.SetCookie(cfg.JWT.CookieName, token, maxAge, "/", "", cfg.JWT.CookieSecure, true)

	response.Success(c, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout 用户登出：清除Cookie
// 令牌本身无状态，过期前在其他客户端仍然有效
func (h *AuthHandler) Logout(c *gin.Context) {
	cfg := config.GetConfig()
	c.SetCookie(cfg.JWT.CookieName, "", -1, "/", "", cfg.JWT.CookieSecure, true)
	response.SuccessWithMessage(c, "已登出", nil)
}

// Refresh 刷新令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	newToken, err := h.jwtManager.RefreshToken(req.Token)
	if err != nil {
		response.Unauthorized(c, "Token无效或已过期")
		return
	}

	cfg := config.GetConfig()
	maxAge := int(h.jwtManager.GetTokenDuration().Seconds())
	c.SetCookie(cfg.JWT.CookieName, newToken, maxAge, "/", "", cfg.JWT.CookieSecure, true)

	response.Success(c, gin.H{"token": newToken})
}

// Me 当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Unauthorized(c, "请先登录")
		return
	}
	response.Success(c, user)
}

// Permissions 当前用户的有效权限表
func (h *AuthHandler) Permissions(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	perms, err := h.permService.Resolve(user)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, perms)
}
