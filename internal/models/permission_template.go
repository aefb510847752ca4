package models

import (
	"gorm.io/datatypes"
)

// PermissionTemplate 可复用的命名权限模板，分配给用户后作为权限基线
type PermissionTemplate struct {
	BaseModel
	TenantID    uint   `json:"tenant_id" gorm:"not null;index"`
	Name        string `json:"name" gorm:"not null;size:100"`
	Description string `json:"description" gorm:"size:255"`

	Rules []TemplateRule `json:"rules,omitempty" gorm:"foreignKey:TemplateID"`
}

// TableName 表名
func (t *PermissionTemplate) TableName() string {
	return "permission_templates"
}

// TemplateRule 模板内单个(模块,实体)的权限规则，形状与UserPermission一致
type TemplateRule struct {
	BaseModel
	TemplateID uint           `json:"template_id" gorm:"not null;index;uniqueIndex:idx_rule_template_module_entity"`
	Module     string         `json:"module" gorm:"not null;size:50;uniqueIndex:idx_rule_template_module_entity"`
	EntityID   uint           `json:"entity_id" gorm:"not null;uniqueIndex:idx_rule_template_module_entity"`
	Access     bool           `json:"access" gorm:"default:false"`
	CanCreate  bool           `json:"can_create" gorm:"default:false"`
	CanEdit    bool           `json:"can_edit" gorm:"default:false"`
	CanDelete  bool           `json:"can_delete" gorm:"default:false"`
	CanApprove bool           `json:"can_approve" gorm:"default:false"`
	Scope      string         `json:"scope" gorm:"default:'own';size:20"`
	Columns    datatypes.JSON `json:"columns" gorm:"type:jsonb"`
}

// TableName 表名
func (r *TemplateRule) TableName() string {
	return "template_rules"
}

// ToGrant 转换为有效权限单元
func (r *TemplateRule) ToGrant() EntityGrant {
	return EntityGrant{
		Access:     r.Access,
		CanCreate:  r.CanCreate,
		CanEdit:    r.CanEdit,
		CanDelete:  r.CanDelete,
		CanApprove: r.CanApprove,
		Scope:      r.Scope,
		Columns:    parseColumns(r.Columns),
	}
}
