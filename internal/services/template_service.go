package services

import (
	"errors"

	"fintrack/internal/database"
	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"

	"gorm.io/gorm"
)

// TemplateService 权限模板管理
type TemplateService struct {
	db    *gorm.DB
	perms *PermissionService
}

func NewTemplateService() *TemplateService {
	return &TemplateService{
		db:    database.GetDB(),
		perms: NewPermissionService(),
	}
}

// Create 创建权限模板
func (s *TemplateService) Create(tenantID uint, name, description string) (*models.PermissionTemplate, error) {
	var count int64
	s.db.Model(&models.PermissionTemplate{}).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		Count(&count)
	if count > 0 {
		return nil, apperrors.NewValidationError("模板名称已存在")
	}

	template := &models.PermissionTemplate{
		TenantID:    tenantID,
		Name:        name,
		Description: description,
	}
	if err := s.db.Create(template).Error; err != nil {
		return nil, err
	}
	return template, nil
}

// GetByID 获取模板及其规则
func (s *TemplateService) GetByID(tenantID, id uint) (*models.PermissionTemplate, error) {
	var template models.PermissionTemplate
	err := s.db.Where("id = ? AND tenant_id = ?", id, tenantID).
		Preload("Rules").
		First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &template, nil
}

// List 列出租户内模板
func (s *TemplateService) List(tenantID uint) ([]models.PermissionTemplate, error) {
	var templates []models.PermissionTemplate
	err := s.db.Where("tenant_id = ?", tenantID).Order("name").Find(&templates).Error
	return templates, err
}

// SetRule 写入（新建或整体替换）模板内某(模块,实体)的规则
func (s *TemplateService) SetRule(tenantID, templateID uint, input *GrantInput) (*models.TemplateRule, error) {
	if _, err := s.GetByID(tenantID, templateID); err != nil {
		return nil, err
	}

	columns, err := s.perms.validateGrantInput(tenantID, input)
	if err != nil {
		return nil, err
	}

	rule := models.TemplateRule{
		TemplateID: templateID,
		Module:     input.Module,
		EntityID:   input.EntityID,
		Access:     input.Access,
		CanCreate:  input.CanCreate,
		CanEdit:    input.CanEdit,
		CanDelete:  input.CanDelete,
		CanApprove: input.CanApprove,
		Scope:      input.Scope,
		Columns:    columns,
	}

	var existing models.TemplateRule
	err = s.db.Where("template_id = ? AND module = ? AND entity_id = ?", templateID, input.Module, input.EntityID).
		First(&existing).Error
	if err == nil {
		rule.ID = existing.ID
		rule.CreatedAt = existing.CreatedAt
		err = s.db.Save(&rule).Error
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.Create(&rule).Error
	}
	if err != nil {
		return nil, err
	}

	// 模板变更影响所有关联用户
	s.perms.InvalidateAll()
	return &rule, nil
}

// DeleteRule 删除模板规则
func (s *TemplateService) DeleteRule(tenantID, templateID, ruleID uint) error {
	if _, err := s.GetByID(tenantID, templateID); err != nil {
		return err
	}

	result := s.db.Where("id = ? AND template_id = ?", ruleID, templateID).
		Delete(&models.TemplateRule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	s.perms.InvalidateAll()
	return nil
}

// Delete 删除模板，有用户引用时拒绝
func (s *TemplateService) Delete(tenantID, id uint) error {
	if _, err := s.GetByID(tenantID, id); err != nil {
		return err
	}

	var count int64
	s.db.Model(&models.User{}).Where("template_id = ?", id).Count(&count)
	if count > 0 {
		return apperrors.NewValidationError("模板正在被用户使用，无法删除")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&models.TemplateRule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.PermissionTemplate{}, id).Error
	})
}
