package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"fintrack/internal/database"
	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FieldService 自定义字段管理
type FieldService struct {
	db       *gorm.DB
	entities *EntityService
}

func NewFieldService() *FieldService {
	return &FieldService{
		db:       database.GetDB(),
		entities: NewEntityService(),
	}
}

// CreateFieldInput 创建字段参数
type CreateFieldInput struct {
	EntityID uint               `json:"entity_id" binding:"required"`
	Key      string             `json:"key" binding:"required"`
	Label    string             `json:"label" binding:"required"`
	Type     string             `json:"type" binding:"required"`
	Position int                `json:"position"`
	Required bool               `json:"required"`
	ReadOnly bool               `json:"read_only"`
	Visible  *bool              `json:"visible"`
	Options  []string           `json:"options"`
	Rules    *models.FieldRules `json:"rules"`
}

// Create 为实体创建字段
func (s *FieldService) Create(tenantID, actorID uint, input *CreateFieldInput) (*models.CustomField, error) {
	if _, err := s.entities.GetByID(tenantID, input.EntityID); err != nil {
		return nil, err
	}

	if !models.ValidFieldTypes[input.Type] {
		return nil, apperrors.NewValidationError("非法的字段类型: " + input.Type)
	}

	// 字段键在实体内唯一
	var count int64
	s.db.Model(&models.CustomField{}).
		Where("entity_id = ? AND key = ?", input.EntityID, input.Key).
		Count(&count)
	if count > 0 {
		return nil, apperrors.NewValidationError("字段键已存在: " + input.Key)
	}

	if input.Type == models.FieldTypeSelect && len(input.Options) == 0 {
		return nil, apperrors.NewValidationError("select类型字段必须提供可选值")
	}

	field := &models.CustomField{
		EntityID: input.EntityID,
		Key:      input.Key,
		Label:    input.Label,
		Type:     input.Type,
		Position: input.Position,
		Required: input.Required,
		ReadOnly: input.ReadOnly,
		Visible:  true,
		Enabled:  true,
	}
	if input.Visible != nil {
		field.Visible = *input.Visible
	}

	if len(input.Options) > 0 {
		data, err := json.Marshal(input.Options)
		if err != nil {
			return nil, fmt.Errorf("序列化可选值失败: %v", err)
		}
		field.Options = datatypes.JSON(data)
	}
	if input.Rules != nil {
		data, err := json.Marshal(input.Rules)
		if err != nil {
			return nil, fmt.Errorf("序列化校验规则失败: %v", err)
		}
		field.Rules = datatypes.JSON(data)
	}

	if err := s.db.Create(field).Error; err != nil {
		return nil, err
	}

	s.entities.invalidate(input.EntityID)
	return field, nil
}

// getOwned 获取字段并校验其实体属于当前租户
func (s *FieldService) getOwned(tenantID, fieldID uint) (*models.CustomField, error) {
	var field models.CustomField
	err := s.db.Joins("JOIN entities ON entities.id = custom_fields.entity_id").
		Where("custom_fields.id = ? AND entities.tenant_id = ?", fieldID, tenantID).
		First(&field).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &field, nil
}

// ListByEntity 按实体列出字段，position排序
func (s *FieldService) ListByEntity(tenantID, entityID uint, includeDisabled bool) ([]models.CustomField, error) {
	if _, err := s.entities.GetByID(tenantID, entityID); err != nil {
		return nil, err
	}

	query := s.db.Where("entity_id = ?", entityID)
	if !includeDisabled {
		query = query.Where("enabled = ?", true)
	}

	var fields []models.CustomField
	err := query.Order("position, id").Find(&fields).Error
	return fields, err
}

// UpdateFieldInput 更新字段参数（键和类型不可变更，避免破坏存量数据）
type UpdateFieldInput struct {
	Label    *string            `json:"label"`
	Required *bool              `json:"required"`
	ReadOnly *bool              `json:"read_only"`
	Visible  *bool              `json:"visible"`
	Options  []string           `json:"options"`
	Rules    *models.FieldRules `json:"rules"`
}

// Update 更新字段
func (s *FieldService) Update(tenantID, fieldID uint, input *UpdateFieldInput) (*models.CustomField, error) {
	field, err := s.getOwned(tenantID, fieldID)
	if err != nil {
		return nil, err
	}

	if input.Label != nil {
		field.Label = *input.Label
	}
	if input.Required != nil {
		field.Required = *input.Required
	}
	if input.ReadOnly != nil {
		field.ReadOnly = *input.ReadOnly
	}
	if input.Visible != nil {
		field.Visible = *input.Visible
	}
	if input.Options != nil {
		data, err := json.Marshal(input.Options)
		if err != nil {
			return nil, fmt.Errorf("序列化可选值失败: %v", err)
		}
		field.Options = datatypes.JSON(data)
	}
	if input.Rules != nil {
		data, err := json.Marshal(input.Rules)
		if err != nil {
			return nil, fmt.Errorf("序列化校验规则失败: %v", err)
		}
		field.Rules = datatypes.JSON(data)
	}

	if err := s.db.Save(field).Error; err != nil {
		return nil, err
	}

	s.entities.invalidate(field.EntityID)
	return field, nil
}

// Toggle 启用/禁用字段，系统字段拒绝禁用
func (s *FieldService) Toggle(tenantID, fieldID uint) (*models.CustomField, error) {
	field, err := s.getOwned(tenantID, fieldID)
	if err != nil {
		return nil, err
	}

	if field.System && field.Enabled {
		return nil, apperrors.NewValidationError("系统字段不可禁用")
	}

	field.Enabled = !field.Enabled
	if err := s.db.Save(field).Error; err != nil {
		return nil, err
	}

	s.entities.invalidate(field.EntityID)
	return field, nil
}

// Reorder 按给定ID顺序重排实体字段
func (s *FieldService) Reorder(tenantID, entityID uint, orderedIDs []uint) error {
	fields, err := s.ListByEntity(tenantID, entityID, true)
	if err != nil {
		return err
	}

	known := make(map[uint]bool, len(fields))
	for _, f := range fields {
		known[f.ID] = true
	}
	for _, id := range orderedIDs {
		if !known[id] {
			return apperrors.NewValidationError(fmt.Sprintf("字段 %d 不属于该实体", id))
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for position, id := range orderedIDs {
			if err := tx.Model(&models.CustomField{}).
				Where("id = ?", id).
				Update("position", position).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.entities.invalidate(entityID)
	return nil
}
