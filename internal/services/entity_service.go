package services

import (
	"context"
	"errors"
	"strconv"

	"fintrack/internal/database"
	"fintrack/internal/models"
	"fintrack/pkg/cache"
	apperrors "fintrack/pkg/errors"
	"fintrack/pkg/logger"

	"gorm.io/gorm"
)

// EntityService 实体注册表管理
type EntityService struct {
	db    *gorm.DB
	cache *cache.RedisCache
	perms *PermissionService
}

func NewEntityService() *EntityService {
	return &EntityService{
		db:    database.GetDB(),
		cache: database.GetRedisCache(),
		perms: NewPermissionService(),
	}
}

// CreateEntityInput 创建实体参数
type CreateEntityInput struct {
	Module          string `json:"module" binding:"required"`
	Code            string `json:"code" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	Icon            string `json:"icon"`
	ApprovalEnabled bool   `json:"approval_enabled"`
}

// Create 创建实体
func (s *EntityService) Create(tenantID, actorID uint, input *CreateEntityInput) (*models.Entity, error) {
	var count int64
	s.db.Model(&models.Entity{}).
		Where("tenant_id = ? AND module = ? AND code = ?", tenantID, input.Module, input.Code).
		Count(&count)
	if count > 0 {
		return nil, apperrors.NewValidationError("同模块下实体代码已存在")
	}

	entity := &models.Entity{
		TenantID:        tenantID,
		Module:          input.Module,
		Code:            input.Code,
		Name:            input.Name,
		Description:     input.Description,
		Icon:            input.Icon,
		Enabled:         true,
		ApprovalEnabled: input.ApprovalEnabled,
		CreatedBy:       actorID,
		UpdatedBy:       actorID,
	}

	if err := s.db.Create(entity).Error; err != nil {
		return nil, err
	}
	return entity, nil
}

// GetByID 按ID获取实体
func (s *EntityService) GetByID(tenantID, id uint) (*models.Entity, error) {
	var entity models.Entity
	err := s.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &entity, nil
}

// GetWithFields 获取实体及其启用字段（按position排序），经Redis缓存
func (s *EntityService) GetWithFields(tenantID, id uint) (*models.Entity, error) {
	ctx := context.Background()
	cacheKey := strconv.FormatUint(uint64(id), 10)

	var cached models.Entity
	if err := s.cache.Get(ctx, &cached, "entity", cacheKey); err == nil && cached.TenantID == tenantID {
		return &cached, nil
	}

	var entity models.Entity
	err := s.db.Where("id = ? AND tenant_id = ?", id, tenantID).
		Preload("Fields", func(db *gorm.DB) *gorm.DB {
			return db.Where("enabled = ?", true).Order("position, id")
		}).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, &entity, "entity", cacheKey); err != nil {
		logger.GetLogger().Warnf("写入实体缓存失败: %v", err)
	}
	return &entity, nil
}

// List 按模块列出实体
func (s *EntityService) List(tenantID uint, module string, includeArchived bool) ([]models.Entity, error) {
	query := s.db.Where("tenant_id = ?", tenantID)
	if module != "" {
		query = query.Where("module = ?", module)
	}
	if !includeArchived {
		query = query.Where("archived = ?", false)
	}

	var entities []models.Entity
	err := query.Order("module, code").Find(&entities).Error
	return entities, err
}

// UpdateEntityInput 更新实体参数
type UpdateEntityInput struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Icon            *string `json:"icon"`
	ApprovalEnabled *bool   `json:"approval_enabled"`
}

// Update 更新实体元信息
func (s *EntityService) Update(tenantID, actorID, id uint, input *UpdateEntityInput) (*models.Entity, error) {
	entity, err := s.GetByID(tenantID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		entity.Name = *input.Name
	}
	if input.Description != nil {
		entity.Description = *input.Description
	}
	if input.Icon != nil {
		entity.Icon = *input.Icon
	}
	if input.ApprovalEnabled != nil {
		entity.ApprovalEnabled = *input.ApprovalEnabled
	}
	entity.UpdatedBy = actorID

	if err := s.db.Save(entity).Error; err != nil {
		return nil, err
	}

	s.invalidate(id)
	return entity, nil
}

// Toggle 启用/禁用实体
func (s *EntityService) Toggle(tenantID, actorID, id uint) (*models.Entity, error) {
	entity, err := s.GetByID(tenantID, id)
	if err != nil {
		return nil, err
	}

	entity.Enabled = !entity.Enabled
	entity.UpdatedBy = actorID
	if err := s.db.Save(entity).Error; err != nil {
		return nil, err
	}

	s.invalidate(id)
	return entity, nil
}

// SetArchived 归档/恢复实体，幂等
func (s *EntityService) SetArchived(tenantID, actorID, id uint, archived bool) (*models.Entity, error) {
	entity, err := s.GetByID(tenantID, id)
	if err != nil {
		return nil, err
	}

	if entity.Archived != archived {
		entity.Archived = archived
		entity.UpdatedBy = actorID
		if err := s.db.Save(entity).Error; err != nil {
			return nil, err
		}
		s.invalidate(id)
	}
	return entity, nil
}

// Clone 克隆实体定义（复制字段，不复制记录）
func (s *EntityService) Clone(tenantID, actorID, id uint, newCode, newName string) (*models.Entity, error) {
	source, err := s.GetByID(tenantID, id)
	if err != nil {
		return nil, err
	}

	var count int64
	s.db.Model(&models.Entity{}).
		Where("tenant_id = ? AND module = ? AND code = ?", tenantID, source.Module, newCode).
		Count(&count)
	if count > 0 {
		return nil, apperrors.NewValidationError("同模块下实体代码已存在")
	}

	var fields []models.CustomField
	if err := s.db.Where("entity_id = ?", id).Order("position, id").Find(&fields).Error; err != nil {
		return nil, err
	}

	clone := &models.Entity{
		TenantID:        tenantID,
		Module:          source.Module,
		Code:            newCode,
		Name:            newName,
		Description:     source.Description,
		Icon:            source.Icon,
		Enabled:         true,
		ApprovalEnabled: source.ApprovalEnabled,
		CreatedBy:       actorID,
		UpdatedBy:       actorID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(clone).Error; err != nil {
			return err
		}
		for _, f := range fields {
			copied := models.CustomField{
				EntityID: clone.ID,
				Key:      f.Key,
				Label:    f.Label,
				Type:     f.Type,
				Position: f.Position,
				Required: f.Required,
				ReadOnly: f.ReadOnly,
				Visible:  f.Visible,
				System:   f.System,
				Enabled:  f.Enabled,
				Options:  f.Options,
				Rules:    f.Rules,
			}
			if err := tx.Create(&copied).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return clone, nil
}

// invalidate 实体定义变更后失效相关缓存
func (s *EntityService) invalidate(entityID uint) {
	ctx := context.Background()
	if err := s.cache.Delete(ctx, "entity", strconv.FormatUint(uint64(entityID), 10)); err != nil {
		logger.GetLogger().Warnf("失效实体缓存失败: %v", err)
	}
	// 列级权限依赖字段注册表，一并失效权限缓存
	s.perms.InvalidateAll()
}
