package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog 活动日志，只追加不修改，保留期外由定时任务清理
type ActivityLog struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	TenantID  uint           `json:"tenant_id" gorm:"not null;index"`
	UserID    uint           `json:"user_id" gorm:"not null;index"`
	Username  string         `json:"username" gorm:"size:50"`
	Module    string         `json:"module" gorm:"size:50;index"`
	EntityID  uint           `json:"entity_id" gorm:"index"`
	RecordID  uint           `json:"record_id" gorm:"index"`
	Action    string         `json:"action" gorm:"not null;size:30;index"`
	Changes   datatypes.JSON `json:"changes" gorm:"type:jsonb"` // 字段级差异列表
	Comment   string         `json:"comment" gorm:"size:500"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
}

// TableName 表名
func (l *ActivityLog) TableName() string {
	return "activity_logs"
}

// FieldChange 单字段差异
type FieldChange struct {
	Field string      `json:"field"`
	Old   interface{} `json:"old"`
	New   interface{} `json:"new"`
}

// 活动动作常量
const (
	ActionCreate    = "create"
	ActionUpdate    = "update"
	ActionDelete    = "delete"
	ActionRestore   = "restore"
	ActionClone     = "clone"
	ActionStar      = "star"
	ActionUnstar    = "unstar"
	ActionArchive   = "archive"
	ActionUnarchive = "unarchive"
	ActionSubmit    = "submit"
	ActionApprove   = "approve"
	ActionReject    = "reject"
	ActionImport    = "import"
	ActionExport    = "export"
	ActionLogin     = "login"
)
