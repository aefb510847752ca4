package models

// Entity 实体模型，描述某业务模块下可跟踪的业务对象类型
type Entity struct {
	BaseModel
	TenantID        uint   `json:"tenant_id" gorm:"not null;index;uniqueIndex:idx_entity_tenant_module_code"`
	Module          string `json:"module" gorm:"not null;size:50;index;uniqueIndex:idx_entity_tenant_module_code"`
	Code            string `json:"code" gorm:"not null;size:50;uniqueIndex:idx_entity_tenant_module_code"`
	Name            string `json:"name" gorm:"not null;size:100"`
	Description     string `json:"description" gorm:"size:255"`
	Icon            string `json:"icon" gorm:"size:50"`
	Enabled         bool   `json:"enabled" gorm:"default:true"`
	ApprovalEnabled bool   `json:"approval_enabled" gorm:"default:false"` // 是否启用审批流
	Archived        bool   `json:"archived" gorm:"default:false"`
	CreatedBy       uint   `json:"created_by"`
	UpdatedBy       uint   `json:"updated_by"`

	Fields []CustomField `json:"fields,omitempty" gorm:"foreignKey:EntityID"`
}

// TableName 表名
func (e *Entity) TableName() string {
	return "entities"
}

// 内置业务模块常量（模块本身是开放字符串，这两个由种子数据创建）
const (
	ModuleRealEstate = "re"
	ModuleExpense    = "expense"
)
