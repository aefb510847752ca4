package handlers

import (
	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// PermissionHandler 权限管理处理器（仅管理员）
type PermissionHandler struct {
	perms     *services.PermissionService
	templates *services.TemplateService
}

func NewPermissionHandler(perms *services.PermissionService, templates *services.TemplateService) *PermissionHandler {
	return &PermissionHandler{perms: perms, templates: templates}
}

// ========== 用户个体权限 ==========

// SetUserPermission 设置用户在某(模块,实体)上的权限，已存在则整体替换
func (h *PermissionHandler) SetUserPermission(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.GrantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	perm, err := h.perms.SetUserPermission(admin.TenantID, userID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, perm)
}

// GetUserPermissions 查询用户的个体权限列表
func (h *PermissionHandler) GetUserPermissions(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}

	perms, err := h.perms.GetUserPermissions(admin.TenantID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, perms)
}

// DeleteUserPermission 删除一条个体权限，该(模块,实体)回落到模板规则
func (h *PermissionHandler) DeleteUserPermission(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	permID, ok := parseID(c, "perm_id")
	if !ok {
		return
	}

	if err := h.perms.DeleteUserPermission(admin.TenantID, userID, permID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "权限已删除", nil)
}

// ========== 权限模板 ==========

// CreateTemplateRequest 创建模板请求
type CreateTemplateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateTemplate 创建权限模板
func (h *PermissionHandler) CreateTemplate(c *gin.Context) {
	admin := middleware.CurrentUser(c)

	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	template, err := h.templates.Create(admin.TenantID, req.Name, req.Description)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, template)
}

// GetTemplates 模板列表
func (h *PermissionHandler) GetTemplates(c *gin.Context) {
	admin := middleware.CurrentUser(c)

	templates, err := h.templates.List(admin.TenantID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, templates)
}

// GetTemplate 模板详情（含规则）
func (h *PermissionHandler) GetTemplate(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	template, err := h.templates.GetByID(admin.TenantID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, template)
}

// SetTemplateRule 写入模板内某(模块,实体)的规则
func (h *PermissionHandler) SetTemplateRule(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.GrantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rule, err := h.templates.SetRule(admin.TenantID, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, rule)
}

// DeleteTemplateRule 删除模板内一条规则
func (h *PermissionHandler) DeleteTemplateRule(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ruleID, ok := parseID(c, "rule_id")
	if !ok {
		return
	}

	if err := h.templates.DeleteRule(admin.TenantID, id, ruleID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "规则已删除", nil)
}

// DeleteTemplate 删除模板，有用户引用时拒绝
func (h *PermissionHandler) DeleteTemplate(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.templates.Delete(admin.TenantID, id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "模板已删除", nil)
}
