package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// CustomField 自定义字段，属于某个实体
type CustomField struct {
	BaseModel
	EntityID uint   `json:"entity_id" gorm:"not null;index;uniqueIndex:idx_field_entity_key"`
	Key      string `json:"key" gorm:"not null;size:50;uniqueIndex:idx_field_entity_key"`
	Label    string `json:"label" gorm:"not null;size:100"`
	Type     string `json:"type" gorm:"not null;size:20"`
	Position int    `json:"position" gorm:"default:0"`
	Required bool   `json:"required" gorm:"default:false"`
	ReadOnly bool   `json:"read_only" gorm:"default:false"`
	Visible  bool   `json:"visible" gorm:"default:true"`
	System   bool   `json:"system" gorm:"default:false"` // 系统字段不可禁用
	Enabled  bool   `json:"enabled" gorm:"default:true"`

	Options datatypes.JSON `json:"options" gorm:"type:jsonb"` // select类型的可选值列表
	Rules   datatypes.JSON `json:"rules" gorm:"type:jsonb"`   // 校验规则

	Entity *Entity `json:"entity,omitempty" gorm:"foreignKey:EntityID"`
}

// TableName 表名
func (f *CustomField) TableName() string {
	return "custom_fields"
}

// 字段类型常量
const (
	FieldTypeText    = "text"
	FieldTypeNumber  = "number"
	FieldTypeDate    = "date"
	FieldTypeBoolean = "boolean"
	FieldTypeSelect  = "select"
	FieldTypeFile    = "file"
)

// ValidFieldTypes 合法字段类型集合
var ValidFieldTypes = map[string]bool{
	FieldTypeText:    true,
	FieldTypeNumber:  true,
	FieldTypeDate:    true,
	FieldTypeBoolean: true,
	FieldTypeSelect:  true,
	FieldTypeFile:    true,
}

// FieldRules 字段校验规则
type FieldRules struct {
	Min       *float64 `json:"min,omitempty"`        // number最小值 / text最小长度
	Max       *float64 `json:"max,omitempty"`        // number最大值 / text最大长度
	Pattern   string   `json:"pattern,omitempty"`    // text正则约束
	FileTypes []string `json:"file_types,omitempty"` // file允许的扩展名
}

// ParseRules 解析校验规则，无规则时返回零值
func (f *CustomField) ParseRules() FieldRules {
	var rules FieldRules
	if len(f.Rules) > 0 {
		_ = json.Unmarshal(f.Rules, &rules)
	}
	return rules
}

// OptionValues 解析select类型的可选值
func (f *CustomField) OptionValues() []string {
	var options []string
	if len(f.Options) > 0 {
		_ = json.Unmarshal(f.Options, &options)
	}
	return options
}
