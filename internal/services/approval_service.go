package services

import (
	"fintrack/internal/database"
	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"

	"gorm.io/gorm"
)

// ApprovalService 审批工作流：draft -> submitted -> approved/rejected
type ApprovalService struct {
	db       *gorm.DB
	entities *EntityService
	perms    *PermissionService
	records  *RecordService
	activity *ActivityService
	hub      *EventHub
}

func NewApprovalService() *ApprovalService {
	return &ApprovalService{
		db:       database.GetDB(),
		entities: NewEntityService(),
		perms:    NewPermissionService(),
		records:  NewRecordService(),
		activity: NewActivityService(),
		hub:      GetEventHub(),
	}
}

// Submit 提交审批：仅draft且实体启用审批，操作者需create或edit权限
func (s *ApprovalService) Submit(user *models.User, recordID uint) (*models.Record, error) {
	return s.transition(user, recordID, models.ActionSubmit, "", func(record *models.Record, entity *models.Entity, perms *EffectivePermissions) error {
		if !entity.ApprovalEnabled {
			return apperrors.NewValidationError("该实体未启用审批流")
		}
		grant := perms.Grant(record.Module, record.EntityID)
		if !grant.Access || (!grant.CanCreate && !grant.CanEdit) {
			return apperrors.ErrForbidden
		}
		return nil
	})
}

// Approve 审批通过：仅submitted，操作者需审批能力，意见可选
func (s *ApprovalService) Approve(user *models.User, recordID uint, comment string) (*models.Record, error) {
	return s.transition(user, recordID, models.ActionApprove, comment, func(record *models.Record, entity *models.Entity, perms *EffectivePermissions) error {
		if !perms.CanApprove(record.Module, record.EntityID) {
			return apperrors.ErrForbidden
		}
		return nil
	})
}

// Reject 审批驳回：仅submitted，必须给出驳回理由
func (s *ApprovalService) Reject(user *models.User, recordID uint, comment string) (*models.Record, error) {
	if comment == "" {
		return nil, apperrors.NewValidationError("驳回必须填写理由")
	}
	return s.transition(user, recordID, models.ActionReject, comment, func(record *models.Record, entity *models.Entity, perms *EffectivePermissions) error {
		if !perms.CanApprove(record.Module, record.EntityID) {
			return apperrors.ErrForbidden
		}
		return nil
	})
}

// transition 执行一次状态流转：校验、CAS版本+1、快照、日志、事件
func (s *ApprovalService) transition(user *models.User, recordID uint, action, comment string,
	authorize func(*models.Record, *models.Entity, *EffectivePermissions) error) (*models.Record, error) {

	record, err := s.records.getOwned(user.TenantID, recordID)
	if err != nil {
		return nil, err
	}
	if record.IsDeleted {
		return nil, apperrors.ErrNotFound
	}

	target := TransitionTarget(action)
	if err := CheckTransition(record.Status, target); err != nil {
		return nil, err
	}

	entity, err := s.entities.GetByID(user.TenantID, record.EntityID)
	if err != nil {
		return nil, err
	}

	perms, err := s.perms.Resolve(user)
	if err != nil {
		return nil, err
	}
	if !perms.IsAdmin {
		if err := authorize(record, entity, perms); err != nil {
			return nil, err
		}
		grant := perms.Grant(record.Module, record.EntityID)
		// 提交走行范围检查，审批动作不受own范围限制
		if action == models.ActionSubmit && !s.records.scopeAllows(grant, user, record) {
			return nil, apperrors.ErrForbidden
		}
	}

	oldStatus := record.Status
	newVersion := record.Version + 1

	err = s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Record{}).
			Where("id = ? AND version = ?", record.ID, record.Version).
			Updates(map[string]interface{}{
				"status":     target,
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
			Data:      record.Data,
			Status:    target,
			Comment:   comment,
			CreatedBy: user.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	record.Status = target
	record.Version = newVersion
	record.UpdatedBy = user.ID

	changes := []models.FieldChange{{Field: "status", Old: oldStatus, New: target}}
	s.activity.LogEntry(user.TenantID, user, record.Module, record.EntityID, record.ID,
		action, changes, comment)
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

	return record, nil
}
