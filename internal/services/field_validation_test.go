package services

import (
	"encoding/json"
	"errors"
	"testing"

	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func mustRules(t *testing.T, rules models.FieldRules) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal(rules)
	require.NoError(t, err)
	return datatypes.JSON(data)
}

func mustOptions(t *testing.T, options []string) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal(options)
	require.NoError(t, err)
	return datatypes.JSON(data)
}

func textField(key string, required bool) models.CustomField {
	return models.CustomField{Key: key, Label: key, Type: models.FieldTypeText, Required: required, Enabled: true}
}

func asValidationError(t *testing.T, err error) *apperrors.ValidationError {
	t.Helper()
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	return verr
}

func TestValidatePayload_UnknownKeyRejected(t *testing.T) {
	fields := []models.CustomField{textField("title", true)}

	_, err := ValidatePayload(fields, map[string]interface{}{
		"title":  "项目A",
		"bogus":  "x",
		"bogus2": 1,
	})

	verr := asValidationError(t, err)
	assert.Contains(t, verr.Fields, "bogus")
	assert.Contains(t, verr.Fields, "bogus2")
}

func TestValidatePayload_RequiredMissing(t *testing.T) {
	fields := []models.CustomField{textField("title", true)}

	_, err := ValidatePayload(fields, map[string]interface{}{})
	verr := asValidationError(t, err)
	assert.Contains(t, verr.Fields, "title")

	// 空字符串等同缺失
	_, err = ValidatePayload(fields, map[string]interface{}{"title": ""})
	verr = asValidationError(t, err)
	assert.Contains(t, verr.Fields, "title")
}

func TestValidatePayload_DisabledFieldTreatedAsUnknown(t *testing.T) {
	fields := []models.CustomField{
		{Key: "legacy", Label: "旧字段", Type: models.FieldTypeText, Enabled: false},
	}

	_, err := ValidatePayload(fields, map[string]interface{}{"legacy": "x"})
	verr := asValidationError(t, err)
	assert.Contains(t, verr.Fields, "legacy")
}

func TestValidatePayload_TextRules(t *testing.T) {
	minLen, maxLen := 2.0, 5.0
	fields := []models.CustomField{
		{Key: "code", Label: "编码", Type: models.FieldTypeText, Enabled: true,
			Rules: mustRules(t, models.FieldRules{Min: &minLen, Max: &maxLen, Pattern: "^[a-z]+$"})},
	}

	_, err := ValidatePayload(fields, map[string]interface{}{"code": "abc"})
	assert.NoError(t, err)

	_, err = ValidatePayload(fields, map[string]interface{}{"code": "a"})
	assert.Error(t, err)

	_, err = ValidatePayload(fields, map[string]interface{}{"code": "abcdef"})
	assert.Error(t, err)

	_, err = ValidatePayload(fields, map[string]interface{}{"code": "ABC"})
	assert.Error(t, err)

	_, err = ValidatePayload(fields, map[string]interface{}{"code": 123})
	assert.Error(t, err)
}

func TestValidatePayload_NumberRules(t *testing.T) {
	min := 0.0
	fields := []models.CustomField{
		{Key: "amount", Label: "金额", Type: models.FieldTypeNumber, Enabled: true,
			Rules: mustRules(t, models.FieldRules{Min: &min})},
	}

	data, err := ValidatePayload(fields, map[string]interface{}{"amount": 12.5})
	require.NoError(t, err)

	var normalized map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &normalized))
	assert.Equal(t, 12.5, normalized["amount"])

	// 字符串形式的数字也接受（导入场景）
	_, err = ValidatePayload(fields, map[string]interface{}{"amount": "3.14"})
	assert.NoError(t, err)

	_, err = ValidatePayload(fields, map[string]interface{}{"amount": -1})
	assert.Error(t, err)

	_, err = ValidatePayload(fields, map[string]interface{}{"amount": "not-a-number"})
	assert.Error(t, err)
}

func TestValidatePayload_DateNormalized(t *testing.T) {
	fields := []models.CustomField{
		{Key: "signed_at", Label: "签约日期", Type: models.FieldTypeDate, Enabled: true},
	}

	data, err := ValidatePayload(fields, map[string]interface{}{"signed_at": "2026-08-01"})
	require.NoError(t, err)
	var normalized map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &normalized))
	assert.Equal(t, "2026-08-01", normalized["signed_at"])

	// RFC3339输入统一规范化为日期
	data, err = ValidatePayload(fields, map[string]interface{}{"signed_at": "2026-08-01T10:30:00Z"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &normalized))
	assert.Equal(t, "2026-08-01", normalized["signed_at"])

	_, err = ValidatePayload(fields, map[string]interface{}{"signed_at": "08/01/2026"})
	assert.Error(t, err)
}

func TestValidatePayload_Boolean(t *testing.T) {
	fields := []models.CustomField{
		{Key: "active", Label: "在营", Type: models.FieldTypeBoolean, Enabled: true},
	}

	_, err := ValidatePayload(fields, map[string]interface{}{"active": true})
	assert.NoError(t, err)

	// 字符串形式也接受（导入场景）
	data, err := ValidatePayload(fields, map[string]interface{}{"active": "true"})
	require.NoError(t, err)
	var normalized map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &normalized))
	assert.Equal(t, true, normalized["active"])

	_, err = ValidatePayload(fields, map[string]interface{}{"active": "maybe"})
	assert.Error(t, err)
}

func TestValidatePayload_Select(t *testing.T) {
	fields := []models.CustomField{
		{Key: "region", Label: "区域", Type: models.FieldTypeSelect, Enabled: true,
			Options: mustOptions(t, []string{"华北", "华东"})},
	}

	_, err := ValidatePayload(fields, map[string]interface{}{"region": "华北"})
	assert.NoError(t, err)

	_, err = ValidatePayload(fields, map[string]interface{}{"region": "海外"})
	assert.Error(t, err)
}

func TestValidatePayload_FileTypes(t *testing.T) {
	fields := []models.CustomField{
		{Key: "receipt", Label: "票据", Type: models.FieldTypeFile, Enabled: true,
			Rules: mustRules(t, models.FieldRules{FileTypes: []string{"pdf", "jpg"}})},
	}

	_, err := ValidatePayload(fields, map[string]interface{}{"receipt": "invoice.PDF"})
	assert.NoError(t, err)

	_, err = ValidatePayload(fields, map[string]interface{}{"receipt": "script.exe"})
	assert.Error(t, err)

	_, err = ValidatePayload(fields, map[string]interface{}{"receipt": "noextension"})
	assert.Error(t, err)
}

func TestDiffPayloads(t *testing.T) {
	oldPayload := map[string]interface{}{"title": "A", "amount": 10.0, "gone": "x"}
	newPayload := map[string]interface{}{"title": "A", "amount": 20.0, "added": "y"}

	changes := DiffPayloads(oldPayload, newPayload)

	byField := make(map[string]models.FieldChange, len(changes))
	for _, c := range changes {
		byField[c.Field] = c
	}

	assert.Len(t, changes, 3)
	assert.Equal(t, 10.0, byField["amount"].Old)
	assert.Equal(t, 20.0, byField["amount"].New)
	assert.Nil(t, byField["added"].Old)
	assert.Nil(t, byField["gone"].New)
	assert.NotContains(t, byField, "title")
}

func TestDiffPayloads_NoChanges(t *testing.T) {
	payload := map[string]interface{}{"title": "A"}
	assert.Empty(t, DiffPayloads(payload, map[string]interface{}{"title": "A"}))
}
