package handlers

import (
	"fintrack/internal/models"
	"fintrack/internal/services"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// TenantHandler 租户管理处理器（仅管理员）
type TenantHandler struct {
	service *services.TenantService
}

func NewTenantHandler(service *services.TenantService) *TenantHandler {
	return &TenantHandler{service: service}
}

// CreateTenantRequest 创建租户请求
type CreateTenantRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

// Create 创建租户
func (h *TenantHandler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	tenant, err := h.service.Create(req.Name, req.Code)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, tenant)
}

// GetAll 租户列表
func (h *TenantHandler) GetAll(c *gin.Context) {
	tenants, err := h.service.List()
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, tenants)
}

// GetByID 租户详情
func (h *TenantHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	tenant, err := h.service.GetByID(id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, tenant)
}

// Activate 激活租户
func (h *TenantHandler) Activate(c *gin.Context) {
	h.setStatus(c, models.TenantStatusActive)
}

// Deactivate 停用租户
func (h *TenantHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, models.TenantStatusInactive)
}

func (h *TenantHandler) setStatus(c *gin.Context, status string) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	tenant, err := h.service.SetStatus(id, status)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, tenant)
}
