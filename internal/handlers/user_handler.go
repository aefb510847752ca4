package handlers

import (
	"strconv"

	"fintrack/internal/middleware"
	"fintrack/internal/models"
	"fintrack/internal/services"
	"fintrack/pkg/pagination"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户管理处理器（管理员入口）
type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// parseID 解析路径中的数字ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}

// parseQueryID 解析查询参数中的数字ID
func parseQueryID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		response.BadRequest(c, name+"格式错误")
		return 0, false
	}
	return uint(id), true
}

// Create 创建用户
func (h *UserHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req services.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	created, err := h.service.Create(user.TenantID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, created)
}

// GetAll 用户列表
func (h *UserHandler) GetAll(c *gin.Context) {
	user := middleware.CurrentUser(c)
	pageParams := pagination.ParsePageParams(c)

	users, total, err := h.service.List(user.TenantID,
		c.Query("role"), c.Query("status"), c.Query("department"), pageParams)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, users, pageInfo)
}

// GetByID 用户详情
func (h *UserHandler) GetByID(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	target, err := h.service.GetByID(id)
	if err != nil || target.TenantID != user.TenantID {
		response.NotFound(c, "用户不存在")
		return
	}
	response.Success(c, target)
}

// Update 更新用户
func (h *UserHandler) Update(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	updated, err := h.service.Update(user.TenantID, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, updated)
}

// Activate 激活用户
func (h *UserHandler) Activate(c *gin.Context) {
	h.setStatus(c, models.UserStatusActive)
}

// Deactivate 停用用户（软停用，不删除数据）
func (h *UserHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, models.UserStatusInactive)
}

// Lock 锁定用户
func (h *UserHandler) Lock(c *gin.Context) {
	h.setStatus(c, models.UserStatusLocked)
}

func (h *UserHandler) setStatus(c *gin.Context, status string) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	updated, err := h.service.SetStatus(user.TenantID, id, status)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, updated)
}

// ResetPassword 重置密码
func (h *UserHandler) ResetPassword(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req struct {
		NewPassword string `json:"new_password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	if err := h.service.ResetPassword(user.TenantID, id, req.NewPassword); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "密码已重置", nil)
}
