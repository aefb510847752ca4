package handlers

import (
	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// EntityHandler 实体注册表处理器（管理员入口）
type EntityHandler struct {
	service *services.EntityService
}

func NewEntityHandler(service *services.EntityService) *EntityHandler {
	return &EntityHandler{
		service: service,
	}
}

// Create 创建实体
func (h *EntityHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req services.CreateEntityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	entity, err := h.service.Create(user.TenantID, user.ID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entity)
}

// GetAll 实体列表，支持module过滤
func (h *EntityHandler) GetAll(c *gin.Context) {
	user := middleware.CurrentUser(c)
	includeArchived := c.Query("include_archived") == "true"

	entities, err := h.service.List(user.TenantID, c.Query("module"), includeArchived)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, entities)
}

// GetByID 实体详情（含启用字段）
func (h *EntityHandler) GetByID(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	entity, err := h.service.GetWithFields(user.TenantID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entity)
}

// Update 更新实体
func (h *EntityHandler) Update(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateEntityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	entity, err := h.service.Update(user.TenantID, user.ID, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entity)
}

// Toggle 启用/禁用实体
func (h *EntityHandler) Toggle(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	entity, err := h.service.Toggle(user.TenantID, user.ID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entity)
}

// Archive 归档实体
func (h *EntityHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

// Unarchive 恢复归档实体
func (h *EntityHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *EntityHandler) setArchived(c *gin.Context, archived bool) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	entity, err := h.service.SetArchived(user.TenantID, user.ID, id, archived)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entity)
}

// CloneEntityRequest 克隆实体请求
type CloneEntityRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// Clone 克隆实体定义
func (h *EntityHandler) Clone(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CloneEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	clone, err := h.service.Clone(user.TenantID, user.ID, id, req.Code, req.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, clone)
}
