package models

// Tenant 租户模型，所有业务数据按租户隔离
type Tenant struct {
	BaseModel
	Name   string `json:"name" gorm:"not null;size:100"`
	Code   string `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Status string `json:"status" gorm:"default:'active';size:20"`
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}

// 租户状态常量
const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)
