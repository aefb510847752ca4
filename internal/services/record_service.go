package services

import (
	"errors"
	"fmt"
	"time"

	"fintrack/internal/database"
	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"
	"fintrack/pkg/pagination"

	"gorm.io/gorm"
)

// RecordService 通用业务记录服务
type RecordService struct {
	db       *gorm.DB
	entities *EntityService
	perms    *PermissionService
	activity *ActivityService
	hub      *EventHub
}

func NewRecordService() *RecordService {
	return &RecordService{
		db:       database.GetDB(),
		entities: NewEntityService(),
		perms:    NewPermissionService(),
		activity: NewActivityService(),
		hub:      GetEventHub(),
	}
}

// CreateRecordInput 创建记录参数
type CreateRecordInput struct {
	EntityID uint                   `json:"entity_id" binding:"required"`
	Data     map[string]interface{} `json:"data" binding:"required"`
}

// Create 创建记录，初始状态draft、版本1
func (s *RecordService) Create(user *models.User, input *CreateRecordInput) (*models.Record, error) {
	entity, err := s.entities.GetWithFields(user.TenantID, input.EntityID)
	if err != nil {
		return nil, err
	}
	if !entity.Enabled || entity.Archived {
		return nil, apperrors.NewValidationError("实体已禁用或归档")
	}

	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, err
	}
	if !perms.CanCreate(entity.Module, entity.ID) {
		return nil, apperrors.ErrForbidden
	}

	data, err := ValidatePayload(entity.Fields, input.Data)
	if err != nil {
		return nil, err
	}

	record := &models.Record{
		TenantID:  user.TenantID,
		Module:    entity.Module,
		EntityID:  entity.ID,
		Data:      data,
		Status:    models.RecordStatusDraft,
		Version:   1,
		CreatedBy: user.ID,
		UpdatedBy: user.ID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return tx.Create(&models.RecordVersion{
			RecordID:  record.ID,
			Version:   record.Version,
			Data:      record.Data,
			Status:    record.Status,
			CreatedBy: user.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.activity.LogEntry(user.TenantID, user, entity.Module, entity.ID, record.ID,
		models.ActionCreate, nil, "")
	s.publish(record, models.ActionCreate, user)

	return record, nil
}

// BulkItemResult 批量创建的单项结果
type BulkItemResult struct {
	Index    int    `json:"index"`
	Success  bool   `json:"success"`
	RecordID uint   `json:"record_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BulkCreate 批量创建：逐项独立提交，单项失败不回滚已插入项
func (s *RecordService) BulkCreate(user *models.User, entityID uint, payloads []map[string]interface{}) []BulkItemResult {
	results := make([]BulkItemResult, 0, len(payloads))
	for i, payload := range payloads {
		record, err := s.Create(user, &CreateRecordInput{EntityID: entityID, Data: payload})
		if err != nil {
			results = append(results, BulkItemResult{Index: i, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, BulkItemResult{Index: i, Success: true, RecordID: record.ID})
	}
	return results
}

// getOwned 获取租户内的记录
func (s *RecordService) getOwned(tenantID, id uint) (*models.Record, error) {
	var record models.Record
	err := s.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// scopeAllows 单条记录是否落在请求者的行范围内
func (s *RecordService) scopeAllows(grant models.EntityGrant, user *models.User, record *models.Record) bool {
	switch grant.Scope {
	case models.ScopeAll:
		return true
	case models.ScopeDepartment:
		if record.CreatedBy == user.ID {
			return true
		}
		var creator models.User
		if err := s.db.Select("department").First(&creator, record.CreatedBy).Error; err != nil {
			return false
		}
		return creator.Department == user.Department
	default:
		return record.CreatedBy == user.ID
	}
}

// GetByID 读取单条记录，读取不改变版本号
func (s *RecordService) GetByID(user *models.User, id uint) (*models.Record, error) {
	record, err := s.getOwned(user.TenantID, id)
	if err != nil {
		return nil, err
	}
	if record.IsDeleted && !user.IsAdmin() {
		return nil, apperrors.ErrNotFound
	}

	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, err
	}
	grant := perms.Grant(record.Module, record.EntityID)
	if !grant.Access {
		return nil, apperrors.ErrForbidden
	}
	if !perms.IsAdmin && !s.scopeAllows(grant, user, record) {
		return nil, apperrors.ErrForbidden
	}

	return record, nil
}

// RecordFilter 记录列表过滤条件
type RecordFilter struct {
	Module         string
	EntityID       uint
	Status         string
	OwnerID        uint
	From           *time.Time
	To             *time.Time
	Starred        *bool
	Archived       *bool
	IncludeDeleted bool // 仅管理员生效
}

// List 分页列出记录，先套权限范围过滤，再套业务过滤
func (s *RecordService) List(user *models.User, filter RecordFilter, page *pagination.PageParams, sort string) ([]models.Record, int64, error) {
	if filter.EntityID == 0 {
		return nil, 0, apperrors.NewValidationError("必须指定实体")
	}

	entity, err := s.entities.GetByID(user.TenantID, filter.EntityID)
	if err != nil {
		return nil, 0, err
	}
	// module过滤与实体所属模块不一致视为未找到
	if filter.Module != "" && filter.Module != entity.Module {
		return nil, 0, apperrors.ErrNotFound
	}

	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, 0, err
	}
	grant := perms.Grant(entity.Module, entity.ID)
	if !grant.Access {
		return nil, 0, apperrors.ErrForbidden
	}

	query := s.db.Model(&models.Record{}).
		Where("tenant_id = ? AND entity_id = ?", user.TenantID, entity.ID)

	if !perms.IsAdmin {
		query = s.perms.ApplyScope(query, grant, user)
	}

	// 软删除的记录默认排除，管理员可显式包含
	if !(filter.IncludeDeleted && user.IsAdmin()) {
		query = query.Where("is_deleted = ?", false)
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

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if sort == "" {
		sort = "created_at DESC"
	}

	var records []models.Record
	err = query.Order(sort).
		Offset(page.GetOffset()).
		Limit(page.GetLimit()).
		Find(&records).Error
	return records, total, err
}

// UpdateRecordInput 更新记录参数
type UpdateRecordInput struct {
	Data    map[string]interface{} `json:"data" binding:"required"`
	Version int                    `json:"version" binding:"required"` // 客户端读到的版本，乐观并发检查
}

// Update 全量替换载荷：重新校验、CAS版本检查、版本+1并快照
// rejected的记录被编辑后隐式回到draft
func (s *RecordService) Update(user *models.User, id uint, input *UpdateRecordInput) (*models.Record, error) {
	record, err := s.getOwned(user.TenantID, id)
	if err != nil {
		return nil, err
	}
	if record.IsDeleted {
		return nil, apperrors.ErrNotFound
	}

	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, err
	}
	grant := perms.Grant(record.Module, record.EntityID)
	if !grant.Access || !grant.CanEdit {
		if !perms.IsAdmin {
			return nil, apperrors.ErrForbidden
		}
	}
	if !perms.IsAdmin && !s.scopeAllows(grant, user, record) {
		return nil, apperrors.ErrForbidden
	}

	// 审批中/已通过的记录锁定内容，需走工作流或克隆
	if record.Status == models.RecordStatusSubmitted || record.Status == models.RecordStatusApproved {
		return nil, apperrors.NewInvalidTransition(record.Status, record.Status, "该状态下内容不可编辑")
	}

	entity, err := s.entities.GetWithFields(user.TenantID, record.EntityID)
	if err != nil {
		return nil, err
	}

	// 只读字段与列级编辑权限：非管理员不可改动受限列
	oldPayload := record.Payload()
	if !perms.IsAdmin {
		for _, f := range entity.Fields {
			if f.ReadOnly || !CanEditColumn(grant, f.Key) {
				if !valueEqual(oldPayload[f.Key], input.Data[f.Key]) {
					return nil, apperrors.NewValidationError("字段不可编辑").AddField(f.Key, "无编辑权限")
				}
			}
		}
	}

	data, err := ValidatePayload(entity.Fields, input.Data)
	if err != nil {
		return nil, err
	}

	newStatus := record.Status
	if record.Status == models.RecordStatusRejected {
		newStatus = models.RecordStatusDraft
	}

	newVersion := input.Version + 1
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 版本比对写入，不匹配说明已被并发修改
		result := tx.Model(&models.Record{}).
			Where("id = ? AND version = ?", record.ID, input.Version).
			Updates(map[string]interface{}{
				"data":       data,
				"status":     newStatus,
				"version":    newVersion,
				"updated_by": user.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrConflict
		}

		return tx.Create(&models.RecordVersion{
			RecordID:  record.ID,
			Version:   newVersion,
			Data:      data,
			Status:    newStatus,
			CreatedBy: user.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	record.Data = data
	record.Status = newStatus
	record.Version = newVersion
	record.UpdatedBy = user.ID

	changes := DiffPayloads(oldPayload, record.Payload())
	s.activity.LogEntry(user.TenantID, user, record.Module, record.EntityID, record.ID,
		models.ActionUpdate, changes, "")
	s.publish(record, models.ActionUpdate, user)

	return record, nil
}

// SoftDelete 软删除，可恢复
func (s *RecordService) SoftDelete(user *models.User, id uint) error {
	record, err := s.getOwned(user.TenantID, id)
	if err != nil {
		return err
	}

	// 权限先于幂等判断，无权限的调用一律403
	perms, err := s.perms.Resolve(user)
	if err != nil {
		return err
	}
	grant := perms.Grant(record.Module, record.EntityID)
	if !perms.IsAdmin {
		if !grant.Access || !grant.CanDelete || !s.scopeAllows(grant, user, record) {
			return apperrors.ErrForbidden
		}
	}

	if record.IsDeleted {
		return nil
	}

	if err := s.db.Model(record).Updates(map[string]interface{}{
		"is_deleted": true,
		"updated_by": user.ID,
	}).Error; err != nil {
		return err
	}

	s.activity.LogEntry(user.TenantID, user, record.Module, record.EntityID, record.ID,
		models.ActionDelete, nil, "")
	s.publish(record, models.ActionDelete, user)
	return nil
}

// Restore 恢复软删除的记录，仅管理员；重复恢复为幂等空操作
func (s *RecordService) Restore(user *models.User, id uint) (*models.Record, error) {
	if !user.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	record, err := s.getOwned(user.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !record.IsDeleted {
		return record, nil
	}

	if err := s.db.Model(record).Updates(map[string]interface{}{
		"is_deleted": false,
		"updated_by": user.ID,
	}).Error; err != nil {
		return nil, err
	}
	record.IsDeleted = false

	s.activity.LogEntry(user.TenantID, user, record.Module, record.EntityID, record.ID,
		models.ActionRestore, nil, "")
	s.publish(record, models.ActionRestore, user)
	return record, nil
}

// Clone 克隆记录：载荷复制为新draft，版本历史独立
func (s *RecordService) Clone(user *models.User, id uint) (*models.Record, error) {
	source, err := s.GetByID(user, id)
	if err != nil {
		return nil, err
	}

	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, err
	}
	if !perms.CanCreate(source.Module, source.EntityID) {
		return nil, apperrors.ErrForbidden
	}

	clone := &models.Record{
		TenantID:  user.TenantID,
		Module:    source.Module,
		EntityID:  source.EntityID,
		Data:      source.Data,
		Status:    models.RecordStatusDraft,
		Version:   1,
		CreatedBy: user.ID,
		UpdatedBy: user.ID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(clone).Error; err != nil {
			return err
		}
		return tx.Create(&models.RecordVersion{
			RecordID:  clone.ID,
			Version:   1,
			Data:      clone.Data,
			Status:    clone.Status,
			CreatedBy: user.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.activity.LogEntry(user.TenantID, user, clone.Module, clone.EntityID, clone.ID,
		models.ActionClone, nil, fmt.Sprintf("克隆自记录 %d", source.ID))
	s.publish(clone, models.ActionClone, user)
	return clone, nil
}

// SetStarred 星标开关，无其他副作用，幂等
func (s *RecordService) SetStarred(user *models.User, id uint, starred bool) (*models.Record, error) {
	record, err := s.GetByID(user, id)
	if err != nil {
		return nil, err
	}

	if record.Starred == starred {
		return record, nil
	}

	if err := s.db.Model(record).Update("starred", starred).Error; err != nil {
		return nil, err
	}
	record.Starred = starred

	action := models.ActionStar
	if !starred {
		action = models.ActionUnstar
	}
	s.activity.LogEntry(user.TenantID, user, record.Module, record.EntityID, record.ID,
		action, nil, "")
	return record, nil
}

// SetArchived 归档开关，幂等
func (s *RecordService) SetArchived(user *models.User, id uint, archived bool) (*models.Record, error) {
	record, err := s.GetByID(user, id)
	if err != nil {
		return nil, err
	}

	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, err
	}
	if !perms.CanEdit(record.Module, record.EntityID) {
		return nil, apperrors.ErrForbidden
	}

	if record.Archived == archived {
		return record, nil
	}

	if err := s.db.Model(record).Updates(map[string]interface{}{
		"archived":   archived,
		"updated_by": user.ID,
	}).Error; err != nil {
		return nil, err
	}
	record.Archived = archived

	action := models.ActionArchive
	if !archived {
		action = models.ActionUnarchive
	}
	s.activity.LogEntry(user.TenantID, user, record.Module, record.EntityID, record.ID,
		action, nil, "")
	s.publish(record, action, user)
	return record, nil
}

// ListVersions 列出记录的版本历史，新版本在前
func (s *RecordService) ListVersions(user *models.User, id uint) ([]models.RecordVersion, error) {
	if _, err := s.GetByID(user, id); err != nil {
		return nil, err
	}

	var versions []models.RecordVersion
	err := s.db.Where("record_id = ?", id).Order("version DESC").Find(&versions).Error
	return versions, err
}

// publish 提交后发布变更事件
func (s *RecordService) publish(record *models.Record, action string, user *models.User) {
	s.hub.Publish(RecordEvent{
		TenantID: record.TenantID,
		Module:   record.Module,
		EntityID: record.EntityID,
		RecordID: record.ID,
		Action:   action,
		Version:  record.Version,
		ActorID:  user.ID,
		Actor:    user.Username,
	})
}
