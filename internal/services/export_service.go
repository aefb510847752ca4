package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"fintrack/internal/database"
	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// 导出格式常量
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)

// ExportService 记录导出
type ExportService struct {
	db       *gorm.DB
	entities *EntityService
	perms    *PermissionService
	activity *ActivityService
}

func NewExportService() *ExportService {
	return &ExportService{
		db:       database.GetDB(),
		entities: NewEntityService(),
		perms:    NewPermissionService(),
		activity: NewActivityService(),
	}
}

// ExportResult 导出产物
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportColumns 确定导出列：启用且可见的字段，经列级查看权限过滤，position排序
func ExportColumns(fields []models.CustomField, grant models.EntityGrant) []models.CustomField {
	columns := make([]models.CustomField, 0, len(fields))
	for _, f := range fields {
		if !f.Enabled || !f.Visible {
			continue
		}
		if !CanViewColumn(grant, f.Key) {
			continue
		}
		columns = append(columns, f)
	}
	return columns
}

// BuildExportTable 组装表格：首行为字段标签，后续行为记录值
// 记录为空时仅产出表头行
func BuildExportTable(columns []models.CustomField, records []models.Record) [][]string {
	table := make([][]string, 0, len(records)+1)

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Label
	}
	table = append(table, header)

	for _, record := range records {
		payload := record.Payload()
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cellString(payload[col.Key])
		}
		table = append(table, row)
	}
	return table
}

// cellString 将载荷值转为导出单元格文本
func cellString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// WriteCSV 写出CSV
func WriteCSV(table [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(table); err != nil {
		return nil, err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteXLSX 写出Excel工作簿
func WriteXLSX(sheetName string, table [][]string) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if sheetName == "" {
		sheetName = "Sheet1"
	}
	index, err := file.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	file.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		_ = file.DeleteSheet("Sheet1")
	}

	for rowIdx, row := range table {
		for colIdx, cell := range row {
			cellName, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return nil, err
			}
			if err := file.SetCellValue(sheetName, cellName, cell); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export 导出某实体下权限过滤后的全部匹配记录
func (s *ExportService) Export(user *models.User, filter RecordFilter, format string) (*ExportResult, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatXLSX {
		return nil, apperrors.NewValidationError("不支持的导出格式: " + format)
	}

	entity, err := s.entities.GetWithFields(user.TenantID, filter.EntityID)
	if err != nil {
		return nil, err
	}
	// module过滤与实体所属模块不一致视为未找到
	if filter.Module != "" && filter.Module != entity.Module {
		return nil, apperrors.ErrNotFound
	}

	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, err
	}
	grant := perms.Grant(entity.Module, entity.ID)
	if !grant.Access {
		return nil, apperrors.ErrForbidden
	}

	query := s.db.Model(&models.Record{}).
		Where("tenant_id = ? AND entity_id = ? AND is_deleted = ?", user.TenantID, entity.ID, false)
	if !perms.IsAdmin {
		query = s.perms.ApplyScope(query, grant, user)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OwnerID > 0 {
		query = query.Where("created_by = ?", filter.OwnerID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if filter.Starred != nil {
		query = query.Where("starred = ?", *filter.Starred)
	}
	if filter.Archived != nil {
		query = query.Where("archived = ?", *filter.Archived)
	}

	var records []models.Record
	if err := query.Order("created_at").Find(&records).Error; err != nil {
		return nil, err
	}

	columns := ExportColumns(entity.Fields, grant)
	table := BuildExportTable(columns, records)

	timestamp := time.Now().Format("20060102_150405")
	result := &ExportResult{}

	switch format {
	case ExportFormatCSV:
		data, err := WriteCSV(table)
		if err != nil {
			return nil, err
		}
		result.Data = data
		result.Filename = fmt.Sprintf("%s_%s_%s.csv", entity.Module, entity.Code, timestamp)
		result.ContentType = "text/csv"
	case ExportFormatXLSX:
		data, err := WriteXLSX(entity.Name, table)
		if err != nil {
			return nil, err
		}
		result.Data = data
		result.Filename = fmt.Sprintf("%s_%s_%s.xlsx", entity.Module, entity.Code, timestamp)
		result.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	batchID := uuid.New().String()
	s.activity.LogEntry(user.TenantID, user, entity.Module, entity.ID, 0,
		models.ActionExport, nil, fmt.Sprintf("导出 %d 条记录, 批次 %s", len(records), batchID))

	return result, nil
}
