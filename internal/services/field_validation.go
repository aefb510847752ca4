package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"

	"gorm.io/datatypes"
)

// 日期字段接受的输入格式
var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
}

// ValidatePayload 按实体字段定义校验并规范化载荷
// 返回只包含已定义且启用字段的规范化JSON；任何违规以字段级明细聚合返回
func ValidatePayload(fields []models.CustomField, payload map[string]interface{}) (datatypes.JSON, error) {
	verr := apperrors.NewValidationError("字段校验失败")
	normalized := make(map[string]interface{}, len(payload))

	known := make(map[string]models.CustomField, len(fields))
	for _, f := range fields {
		if f.Enabled {
			known[f.Key] = f
		}
	}

	// 拒绝未定义的字段键，不信任任意输入
	for key := range payload {
		if _, ok := known[key]; !ok {
			verr.AddField(key, "未定义的字段")
		}
	}

	for key, field := range known {
		raw, present := payload[key]
		if !present || raw == nil || raw == "" {
			if field.Required {
				verr.AddField(key, "必填字段缺失")
			}
			continue
		}

		value, err := normalizeValue(field, raw)
		if err != nil {
			verr.AddField(key, err.Error())
			continue
		}
		normalized[key] = value
	}

	if verr.HasFields() {
		return nil, verr
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("序列化载荷失败: %v", err)
	}
	return datatypes.JSON(data), nil
}

// normalizeValue 按字段类型转换并校验单个值
func normalizeValue(field models.CustomField, raw interface{}) (interface{}, error) {
	rules := field.ParseRules()

	switch field.Type {
	case models.FieldTypeText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("必须是文本")
		}
		if rules.Min != nil && float64(len(s)) < *rules.Min {
			return nil, fmt.Errorf("长度不能小于%d", int(*rules.Min))
		}
		if rules.Max != nil && float64(len(s)) > *rules.Max {
			return nil, fmt.Errorf("长度不能大于%d", int(*rules.Max))
		}
		if rules.Pattern != "" {
			re, err := regexp.Compile(rules.Pattern)
			if err == nil && !re.MatchString(s) {
				return nil, fmt.Errorf("格式不符合要求")
			}
		}
		return s, nil

	case models.FieldTypeNumber:
		n, err := toNumber(raw)
		if err != nil {
			return nil, err
		}
		if rules.Min != nil && n < *rules.Min {
			return nil, fmt.Errorf("不能小于%v", *rules.Min)
		}
		if rules.Max != nil && n > *rules.Max {
			return nil, fmt.Errorf("不能大于%v", *rules.Max)
		}
		return n, nil

	case models.FieldTypeDate:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("必须是日期字符串")
		}
		for _, format := range dateFormats {
			if t, err := time.Parse(format, s); err == nil {
				return t.Format("2006-01-02"), nil
			}
		}
		return nil, fmt.Errorf("日期格式无效")

	case models.FieldTypeBoolean:
		b, ok := raw.(bool)
		if ok {
			return b, nil
		}
		if s, ok := raw.(string); ok {
			if parsed, err := strconv.ParseBool(s); err == nil {
				return parsed, nil
			}
		}
		return nil, fmt.Errorf("必须是布尔值")

	case models.FieldTypeSelect:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("必须是文本选项")
		}
		options := field.OptionValues()
		for _, opt := range options {
			if opt == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("取值不在可选范围内")

	case models.FieldTypeFile:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("必须是文件引用")
		}
		if len(rules.FileTypes) > 0 {
			ext := strings.ToLower(strings.TrimPrefix(fileExt(s), "."))
			allowed := false
			for _, t := range rules.FileTypes {
				if strings.ToLower(strings.TrimPrefix(t, ".")) == ext {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, fmt.Errorf("文件类型不允许")
			}
		}
		return s, nil

	default:
		return nil, fmt.Errorf("未知的字段类型: %s", field.Type)
	}
}

// toNumber 将任意数值输入统一为float64
func toNumber(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("必须是数字")
		}
		return n, nil
	default:
		return 0, fmt.Errorf("必须是数字")
	}
}

// fileExt 取文件扩展名（含点）
func fileExt(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}

// DiffPayloads 计算新旧载荷的字段级差异
func DiffPayloads(oldPayload, newPayload map[string]interface{}) []models.FieldChange {
	var changes []models.FieldChange

	keys := make(map[string]bool, len(oldPayload)+len(newPayload))
	for k := range oldPayload {
		keys[k] = true
	}
	for k := range newPayload {
		keys[k] = true
	}

	for key := range keys {
		oldVal := oldPayload[key]
		newVal := newPayload[key]
		if !valueEqual(oldVal, newVal) {
			changes = append(changes, models.FieldChange{Field: key, Old: oldVal, New: newVal})
		}
	}
	return changes
}

// valueEqual 通过JSON序列化比较两个值
func valueEqual(a, b interface{}) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}
