package handlers

import (
	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// FieldHandler 自定义字段处理器（管理员入口）
type FieldHandler struct {
	service *services.FieldService
}

func NewFieldHandler(service *services.FieldService) *FieldHandler {
	return &FieldHandler{
		service: service,
	}
}

// Create 创建字段
func (h *FieldHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req services.CreateFieldInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	field, err := h.service.Create(user.TenantID, user.ID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, field)
}

// GetByEntity 某实体的字段列表
func (h *FieldHandler) GetByEntity(c *gin.Context) {
	user := middleware.CurrentUser(c)

	entityID, ok := parseQueryID(c, "entity_id")
	if !ok {
		return
	}
	includeDisabled := c.Query("include_disabled") == "true"

	fields, err := h.service.ListByEntity(user.TenantID, entityID, includeDisabled)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, fields)
}

// Update 更新字段
func (h *FieldHandler) Update(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateFieldInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	field, err := h.service.Update(user.TenantID, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, field)
}

// Toggle 启用/禁用字段
func (h *FieldHandler) Toggle(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	field, err := h.service.Toggle(user.TenantID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, field)
}

// ReorderRequest 字段重排请求
type ReorderRequest struct {
	EntityID uint   `json:"entity_id" binding:"required"`
	FieldIDs []uint `json:"field_ids" binding:"required"`
}

// Reorder 按给定顺序重排字段
func (h *FieldHandler) Reorder(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	if err := h.service.Reorder(user.TenantID, req.EntityID, req.FieldIDs); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "字段顺序已更新", nil)
}
