package services

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"fintrack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

func importFields() []models.CustomField {
	return []models.CustomField{
		{Key: "title", Label: "项目名称", Type: models.FieldTypeText, Enabled: true},
		{Key: "amount", Label: "金额", Type: models.FieldTypeNumber, Enabled: true},
		{Key: "legacy", Label: "旧字段", Type: models.FieldTypeText, Enabled: false},
	}
}

func TestParseCSVRows(t *testing.T) {
	csvData := "title,amount\n差旅,100\n采购,200\n"

	rows, err := ParseCSVRows(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"title", "amount"}, rows[0])
	assert.Equal(t, []string{"差旅", "100"}, rows[1])
}

func TestParseCSVRows_RaggedRowsAllowed(t *testing.T) {
	csvData := "title,amount\n只有名称\n"

	rows, err := ParseCSVRows(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"只有名称"}, rows[1])
}

func TestMapHeader(t *testing.T) {
	fields := importFields()

	t.Run("按字段键匹配", func(t *testing.T) {
		mapping := MapHeader([]string{"title", "amount"}, fields)

		assert.Equal(t, map[int]string{0: "title", 1: "amount"}, mapping)
	})

	t.Run("按标签匹配且忽略大小写和空白", func(t *testing.T) {
		mapping := MapHeader([]string{" 项目名称 ", "金额", "TITLE"}, fields)

		assert.Equal(t, "title", mapping[0])
		assert.Equal(t, "amount", mapping[1])
		assert.Equal(t, "title", mapping[2])
	})

	t.Run("无法识别与禁用字段的列被忽略", func(t *testing.T) {
		mapping := MapHeader([]string{"未知列", "legacy", "旧字段"}, fields)

		assert.Empty(t, mapping)
	})
}

func TestRowToPayload(t *testing.T) {
	mapping := map[int]string{0: "title", 1: "amount"}

	t.Run("按映射取值并去除空白", func(t *testing.T) {
		payload := RowToPayload([]string{" 差旅 ", "100"}, mapping)

		assert.Equal(t, map[string]interface{}{"title": "差旅", "amount": "100"}, payload)
	})

	t.Run("空单元格不进入载荷", func(t *testing.T) {
		payload := RowToPayload([]string{"差旅", ""}, mapping)

		assert.Equal(t, map[string]interface{}{"title": "差旅"}, payload)
	})

	t.Run("短行不越界", func(t *testing.T) {
		payload := RowToPayload([]string{"差旅"}, mapping)

		assert.Equal(t, map[string]interface{}{"title": "差旅"}, payload)
	})
}
