package models

import (
	"time"

	"gorm.io/datatypes"
)

// RecordVersion 记录的不可变版本快照，按(record_id, version)唯一
// 只插入不更新，用于历史追溯和回滚展示
type RecordVersion struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	RecordID  uint           `json:"record_id" gorm:"not null;index;uniqueIndex:idx_version_record_version"`
	Version   int            `json:"version" gorm:"not null;uniqueIndex:idx_version_record_version"`
	Data      datatypes.JSON `json:"data" gorm:"type:jsonb"`
	Status    string         `json:"status" gorm:"not null;size:20"`
	Comment   string         `json:"comment" gorm:"size:500"` // 审批意见
	CreatedBy uint           `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName 表名
func (v *RecordVersion) TableName() string {
	return "record_versions"
}
