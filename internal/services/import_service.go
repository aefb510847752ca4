package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"fintrack/internal/database"
	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ImportService 记录导入：解析CSV/Excel，逐行校验并入库
type ImportService struct {
	db       *gorm.DB
	entities *EntityService
	records  *RecordService
	activity *ActivityService
}

func NewImportService() *ImportService {
	return &ImportService{
		db:       database.GetDB(),
		entities: NewEntityService(),
		records:  NewRecordService(),
		activity: NewActivityService(),
	}
}

// RowError 单行导入失败原因，行号从1开始计数（不含表头）
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult 导入结果：逐行报告，不因单行失败中止
type ImportResult struct {
	Created int        `json:"created"`
	Errors  []RowError `json:"errors"`
}

// ParseCSVRows 解析CSV内容为行
func ParseCSVRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewValidationError("CSV解析失败: " + err.Error())
	}
	return rows, nil
}

// ParseXLSXRows 解析Excel首个工作表为行
func ParseXLSXRows(r io.Reader) ([][]string, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewValidationError("Excel解析失败: " + err.Error())
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewValidationError("工作簿中没有工作表")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewValidationError("读取工作表失败: " + err.Error())
	}
	return rows, nil
}

// MapHeader 将表头映射到字段键：优先匹配字段键，其次匹配标签
// 返回 列下标 -> 字段键；无法识别的列被忽略
func MapHeader(header []string, fields []models.CustomField) map[int]string {
	byKey := make(map[string]string, len(fields))
	byLabel := make(map[string]string, len(fields))
	for _, f := range fields {
		if !f.Enabled {
			continue
		}
		byKey[strings.ToLower(f.Key)] = f.Key
		byLabel[strings.ToLower(f.Label)] = f.Key
	}

	mapping := make(map[int]string)
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if key, ok := byKey[name]; ok {
			mapping[i] = key
			continue
		}
		if key, ok := byLabel[name]; ok {
			mapping[i] = key
		}
	}
	return mapping
}

// RowToPayload 按表头映射将一行转换为载荷
func RowToPayload(row []string, mapping map[int]string) map[string]interface{} {
	payload := make(map[string]interface{}, len(mapping))
	for idx, key := range mapping {
		if idx >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[idx])
		if value == "" {
			continue
		}
		payload[key] = value
	}
	return payload
}

// Import 导入一批行数据到指定实体
// 首行必须是表头；有效行创建为draft记录，行间互不影响
func (s *ImportService) Import(user *models.User, entityID uint, rows [][]string) (*ImportResult, error) {
	entity, err := s.entities.GetWithFields(user.TenantID, entityID)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, apperrors.NewValidationError("文件为空")
	}

	mapping := MapHeader(rows[0], entity.Fields)
	if len(mapping) == 0 {
		return nil, apperrors.NewValidationError("表头与实体字段无法匹配")
	}

	result := &ImportResult{Errors: []RowError{}}
	for i, row := range rows[1:] {
		rowNum := i + 1
		payload := RowToPayload(row, mapping)
		if len(payload) == 0 {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Reason: "空行"})
			continue
		}

		_, err := s.records.Create(user, &CreateRecordInput{EntityID: entityID, Data: payload})
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		result.Created++
	}

	batchID := uuid.New().String()
	s.activity.LogEntry(user.TenantID, user, entity.Module, entity.ID, 0,
		models.ActionImport, nil,
		fmt.Sprintf("导入成功 %d 条, 失败 %d 条, 批次 %s", result.Created, len(result.Errors), batchID))

	return result, nil
}
