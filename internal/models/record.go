package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Record 业务数据记录，载荷为实体字段约束下的键值文档
type Record struct {
	BaseModel
	TenantID  uint           `json:"tenant_id" gorm:"not null;index"`
	Module    string         `json:"module" gorm:"not null;size:50;index"`
	EntityID  uint           `json:"entity_id" gorm:"not null;index"`
	Data      datatypes.JSON `json:"data" gorm:"type:jsonb"`
	Status    string         `json:"status" gorm:"not null;default:'draft';size:20;index"`
	Version   int            `json:"version" gorm:"not null;default:1"` // 每次内容变更或状态流转+1
	Starred   bool           `json:"starred" gorm:"default:false"`
	Archived  bool           `json:"archived" gorm:"default:false"`
	IsDeleted bool           `json:"is_deleted" gorm:"default:false;index"`
	CreatedBy uint           `json:"created_by" gorm:"index"`
	UpdatedBy uint           `json:"updated_by"`

	Entity *Entity `json:"entity,omitempty" gorm:"foreignKey:EntityID"`
}

// TableName 表名
func (r *Record) TableName() string {
	return "records"
}

// 记录状态常量
const (
	RecordStatusDraft     = "draft"
	RecordStatusSubmitted = "submitted"
	RecordStatusApproved  = "approved"
	RecordStatusRejected  = "rejected"
)

// Payload 解析数据载荷
func (r *Record) Payload() map[string]interface{} {
	payload := make(map[string]interface{})
	if len(r.Data) > 0 {
		_ = json.Unmarshal(r.Data, &payload)
	}
	return payload
}
