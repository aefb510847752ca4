package services

import (
	"encoding/json"
	"testing"

	"fintrack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func exportFields() []models.CustomField {
	return []models.CustomField{
		{Key: "title", Label: "项目名称", Type: models.FieldTypeText, Position: 0, Enabled: true, Visible: true},
		{Key: "amount", Label: "金额", Type: models.FieldTypeNumber, Position: 1, Enabled: true, Visible: true},
		{Key: "internal_note", Label: "内部备注", Type: models.FieldTypeText, Position: 2, Enabled: true, Visible: false},
		{Key: "legacy", Label: "旧字段", Type: models.FieldTypeText, Position: 3, Enabled: false, Visible: true},
	}
}

func recordWithPayload(t *testing.T, payload map[string]interface{}) models.Record {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.Record{Data: datatypes.JSON(data)}
}

func TestExportColumns(t *testing.T) {
	t.Run("过滤禁用与不可见字段", func(t *testing.T) {
		columns := ExportColumns(exportFields(), models.EntityGrant{Access: true})

		require.Len(t, columns, 2)
		assert.Equal(t, "title", columns[0].Key)
		assert.Equal(t, "amount", columns[1].Key)
	})

	t.Run("列级查看权限进一步裁剪", func(t *testing.T) {
		grant := models.EntityGrant{
			Access:  true,
			Columns: models.ColumnMap{"title": {View: true}},
		}

		columns := ExportColumns(exportFields(), grant)
		require.Len(t, columns, 1)
		assert.Equal(t, "title", columns[0].Key)
	})
}

func TestBuildExportTable(t *testing.T) {
	columns := ExportColumns(exportFields(), models.EntityGrant{Access: true})

	t.Run("表头为字段标签", func(t *testing.T) {
		table := BuildExportTable(columns, nil)

		require.Len(t, table, 1)
		assert.Equal(t, []string{"项目名称", "金额"}, table[0])
	})

	t.Run("记录值按列顺序填充", func(t *testing.T) {
		records := []models.Record{
			recordWithPayload(t, map[string]interface{}{"title": "差旅报销", "amount": 1234.5}),
			recordWithPayload(t, map[string]interface{}{"title": "缺金额"}),
		}

		table := BuildExportTable(columns, records)

		require.Len(t, table, 3)
		assert.Equal(t, []string{"差旅报销", "1234.5"}, table[1])
		assert.Equal(t, []string{"缺金额", ""}, table[2])
	})
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "文本", cellString("文本"))
	assert.Equal(t, "42", cellString(42.0))
	assert.Equal(t, "3.14", cellString(3.14))
	assert.Equal(t, "true", cellString(true))
}

func TestWriteCSV_EmptyResultIsHeaderOnly(t *testing.T) {
	columns := ExportColumns(exportFields(), models.EntityGrant{Access: true})
	table := BuildExportTable(columns, nil)

	data, err := WriteCSV(table)
	require.NoError(t, err)
	assert.Equal(t, "项目名称,金额\n", string(data))
}

func TestWriteXLSX_RoundTripRows(t *testing.T) {
	table := [][]string{
		{"项目名称", "金额"},
		{"差旅报销", "1234.5"},
	}

	data, err := WriteXLSX("支出项目", table)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// 写出的工作簿可以被导入端解析回相同的行
	rows, err := ParseXLSXRows(bytesReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, table[0], rows[0])
	assert.Equal(t, table[1], rows[1])
}
