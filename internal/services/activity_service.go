package services

import (
	"encoding/json"
	"time"

	"fintrack/internal/database"
	"fintrack/internal/models"
	"fintrack/pkg/logger"
	"fintrack/pkg/pagination"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityService 活动日志服务，只追加
type ActivityService struct {
	db *gorm.DB
}

func NewActivityService() *ActivityService {
	return &ActivityService{
		db: database.GetDB(),
	}
}

// LogEntry 追加一条活动日志
// 日志失败只记warning不阻断业务写入
func (s *ActivityService) LogEntry(tenantID uint, user *models.User, module string, entityID, recordID uint, action string, changes []models.FieldChange, comment string) {
	var changesJSON datatypes.JSON
	if len(changes) > 0 {
		if data, err := json.Marshal(changes); err == nil {
			changesJSON = datatypes.JSON(data)
		}
	}

	entry := &models.ActivityLog{
		TenantID: tenantID,
		UserID:   user.ID,
		Username: user.Username,
		Module:   module,
		EntityID: entityID,
		RecordID: recordID,
		Action:   action,
		Changes:  changesJSON,
		Comment:  comment,
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.WithTenant(tenantID).Warnf("写入活动日志失败: %v", err)
	}
}

// ActivityFilter 日志查询过滤条件
type ActivityFilter struct {
	Module   string
	EntityID uint
	Action   string
	UserID   uint
	RecordID uint
	From     *time.Time
	To       *time.Time
}

// List 查询活动日志（仅管理员入口调用）
func (s *ActivityService) List(tenantID uint, filter ActivityFilter, page *pagination.PageParams) ([]models.ActivityLog, int64, error) {
	query := s.db.Model(&models.ActivityLog{}).Where("tenant_id = ?", tenantID)

	if filter.Module != "" {
		query = query.Where("module = ?", filter.Module)
	}
	if filter.EntityID > 0 {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.RecordID > 0 {
		query = query.Where("record_id = ?", filter.RecordID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.ActivityLog
	err := query.Order("created_at DESC").
		Offset(page.GetOffset()).
		Limit(page.GetLimit()).
		Find(&logs).Error
	return logs, total, err
}

// DailySummary 按天聚合的动作统计，用于仪表盘图表
type DailySummary struct {
	Day    string `json:"day"`
	Module string `json:"module"`
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// Summary 日粒度的 模块x动作 计数聚合
func (s *ActivityService) Summary(tenantID uint, from, to time.Time) ([]DailySummary, error) {
	var results []DailySummary
	err := s.db.Model(&models.ActivityLog{}).
		Select("to_char(created_at, 'YYYY-MM-DD') AS day, module, action, count(*) AS count").
		Where("tenant_id = ? AND created_at >= ? AND created_at <= ?", tenantID, from, to).
		Group("day, module, action").
		Order("day").
		Scan(&results).Error
	return results, err
}

// PurgeBefore 删除保留期之前的日志，返回删除条数
func (s *ActivityService) PurgeBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	return result.RowsAffected, result.Error
}
