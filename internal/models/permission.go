package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// ColumnPermission 列级权限
type ColumnPermission struct {
	View bool `json:"view"`
	Edit bool `json:"edit"`
}

// ColumnMap 字段key -> 列级权限
type ColumnMap map[string]ColumnPermission

// 行范围常量：own只能看自己创建的，department看同部门，all无过滤
const (
	ScopeOwn        = "own"
	ScopeDepartment = "department"
	ScopeAll        = "all"
)

// ValidScopes 合法范围集合
var ValidScopes = map[string]bool{
	ScopeOwn:        true,
	ScopeDepartment: true,
	ScopeAll:        true,
}

// EntityGrant 单个(模块,实体)上的有效权限，解析结果的基本单元
type EntityGrant struct {
	Access     bool      `json:"access"`
	CanCreate  bool      `json:"can_create"`
	CanEdit    bool      `json:"can_edit"`
	CanDelete  bool      `json:"can_delete"`
	CanApprove bool      `json:"can_approve"`
	Scope      string    `json:"scope"`
	Columns    ColumnMap `json:"columns,omitempty"` // 为空表示所有列可见可编辑
}

// UserPermission 用户个体权限，按(用户,模块,实体)覆盖模板设置
type UserPermission struct {
	BaseModel
	UserID     uint           `json:"user_id" gorm:"not null;index;uniqueIndex:idx_perm_user_module_entity"`
	Module     string         `json:"module" gorm:"not null;size:50;uniqueIndex:idx_perm_user_module_entity"`
	EntityID   uint           `json:"entity_id" gorm:"not null;uniqueIndex:idx_perm_user_module_entity"`
	Access     bool           `json:"access" gorm:"default:false"`
	CanCreate  bool           `json:"can_create" gorm:"default:false"`
	CanEdit    bool           `json:"can_edit" gorm:"default:false"`
	CanDelete  bool           `json:"can_delete" gorm:"default:false"`
	CanApprove bool           `json:"can_approve" gorm:"default:false"`
	Scope      string         `json:"scope" gorm:"default:'own';size:20"`
	Columns    datatypes.JSON `json:"columns" gorm:"type:jsonb"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName 表名
func (p *UserPermission) TableName() string {
	return "user_permissions"
}

// ToGrant 转换为有效权限单元
func (p *UserPermission) ToGrant() EntityGrant {
	return EntityGrant{
		Access:     p.Access,
		CanCreate:  p.CanCreate,
		CanEdit:    p.CanEdit,
		CanDelete:  p.CanDelete,
		CanApprove: p.CanApprove,
		Scope:      p.Scope,
		Columns:    parseColumns(p.Columns),
	}
}

// parseColumns 解析列级权限JSON
func parseColumns(data datatypes.JSON) ColumnMap {
	if len(data) == 0 {
		return nil
	}
	columns := make(ColumnMap)
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil
	}
	return columns
}
