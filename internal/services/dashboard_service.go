package services

import (
	"time"

	"fintrack/internal/database"
	"fintrack/internal/models"

	"gorm.io/gorm"
)

// DashboardService 仪表盘统计
type DashboardService struct {
	db       *gorm.DB
	entities *EntityService
	perms    *PermissionService
	activity *ActivityService
}

func NewDashboardService() *DashboardService {
	return &DashboardService{
		db:       database.GetDB(),
		entities: NewEntityService(),
		perms:    NewPermissionService(),
		activity: NewActivityService(),
	}
}

// EntityStats 单实体的记录状态分布
type EntityStats struct {
	Module    string `json:"module"`
	EntityID  uint   `json:"entity_id"`
	Entity    string `json:"entity"`
	Draft     int64  `json:"draft"`
	Submitted int64  `json:"submitted"`
	Approved  int64  `json:"approved"`
	Rejected  int64  `json:"rejected"`
	Total     int64  `json:"total"`
}

// DashboardStats 仪表盘统计数据
type DashboardStats struct {
	Entities       []EntityStats        `json:"entities"`
	RecentActivity []models.ActivityLog `json:"recent_activity"`
}

// statusCount 状态计数查询结果
type statusCount struct {
	EntityID uint
	Status   string
	Count    int64
}

// Stats 按请求者可访问的实体统计记录状态分布，附近期活动
func (s *DashboardService) Stats(user *models.User) (*DashboardStats, error) {
	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, err
	}

	entities, err := s.entities.List(user.TenantID, "", false)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{Entities: []EntityStats{}}

	for _, entity := range entities {
		grant := perms.Grant(entity.Module, entity.ID)
		if !grant.Access {
			continue
		}

		query := s.db.Model(&models.Record{}).
			Where("tenant_id = ? AND entity_id = ? AND is_deleted = ?", user.TenantID, entity.ID, false)
		if !perms.IsAdmin {
			query = s.perms.ApplyScope(query, grant, user)
		}

		var counts []statusCount
		if err := query.Select("entity_id, status, count(*) AS count").
			Group("entity_id, status").
			Scan(&counts).Error; err != nil {
			return nil, err
		}

		es := EntityStats{Module: entity.Module, EntityID: entity.ID, Entity: entity.Name}
		for _, c := range counts {
			switch c.Status {
			case models.RecordStatusDraft:
				es.Draft = c.Count
			case models.RecordStatusSubmitted:
				es.Submitted = c.Count
			case models.RecordStatusApproved:
				es.Approved = c.Count
			case models.RecordStatusRejected:
				es.Rejected = c.Count
			}
			es.Total += c.Count
		}
		stats.Entities = append(stats.Entities, es)
	}

	// 近期活动只对管理员展示全量，普通用户只看自己的
	activityQuery := s.db.Where("tenant_id = ?", user.TenantID)
	if !user.IsAdmin() {
		activityQuery = activityQuery.Where("user_id = ?", user.ID)
	}
	if err := activityQuery.Order("created_at DESC").Limit(10).
		Find(&stats.RecentActivity).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// CalendarItem 日历视图条目：某记录的某个日期字段值
type CalendarItem struct {
	RecordID uint   `json:"record_id"`
	EntityID uint   `json:"entity_id"`
	Module   string `json:"module"`
	Field    string `json:"field"`
	Label    string `json:"label"`
	Date     string `json:"date"`
	Status   string `json:"status"`
}

// Calendar 收集给定月份内所有日期字段命中的记录
func (s *DashboardService) Calendar(user *models.User, year int, month time.Month) ([]CalendarItem, error) {
	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, err
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	entities, err := s.entities.List(user.TenantID, "", false)
	if err != nil {
		return nil, err
	}

	items := []CalendarItem{}
	for _, entity := range entities {
		grant := perms.Grant(entity.Module, entity.ID)
		if !grant.Access {
			continue
		}

		full, err := s.entities.GetWithFields(user.TenantID, entity.ID)
		if err != nil {
			return nil, err
		}

		var dateFields []models.CustomField
		for _, f := range full.Fields {
			if f.Type == models.FieldTypeDate && CanViewColumn(grant, f.Key) {
				dateFields = append(dateFields, f)
			}
		}
		if len(dateFields) == 0 {
			continue
		}

		query := s.db.Where("tenant_id = ? AND entity_id = ? AND is_deleted = ?", user.TenantID, entity.ID, false)
		if !perms.IsAdmin {
			query = s.perms.ApplyScope(query, grant, user)
		}

		var records []models.Record
		if err := query.Find(&records).Error; err != nil {
			return nil, err
		}

		for _, record := range records {
			payload := record.Payload()
			for _, f := range dateFields {
				value, ok := payload[f.Key].(string)
				if !ok {
					continue
				}
				day, err := time.Parse("2006-01-02", value)
				if err != nil {
					continue
				}
				if day.Before(start) || !day.Before(end) {
					continue
				}
				items = append(items, CalendarItem{
					RecordID: record.ID,
					EntityID: entity.ID,
					Module:   entity.Module,
					Field:    f.Key,
					Label:    f.Label,
					Date:     value,
					Status:   record.Status,
				})
			}
		}
	}

	return items, nil
}
