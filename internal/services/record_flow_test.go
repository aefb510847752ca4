package services

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"fintrack/internal/database"
	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"
	"fintrack/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 跨测试递增的ID序列，避免不同测试库之间的缓存键撞车
var flowSeq uint32

func nextFlowID() uint {
	return uint(atomic.AddUint32(&flowSeq, 1))
}

// newFlowDB 为当前测试挂载独立的内存库并替换全局连接
func newFlowDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:flow%d?mode=memory&cache=shared", nextFlowID())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Entity{},
		&models.CustomField{},
		&models.Record{},
		&models.RecordVersion{},
		&models.PermissionTemplate{},
		&models.TemplateRule{},
		&models.UserPermission{},
		&models.ActivityLog{},
	))
	database.DB = db
	return db
}

func newFlowEntity(t *testing.T, db *gorm.DB, tenantID uint, approval bool) *models.Entity {
	t.Helper()
	entity := &models.Entity{
		BaseModel:       models.BaseModel{ID: nextFlowID()},
		TenantID:        tenantID,
		Module:          models.ModuleRealEstate,
		Code:            "dealer",
		Name:            "经销商",
		Enabled:         true,
		ApprovalEnabled: approval,
	}
	require.NoError(t, db.Create(entity).Error)

	fields := []models.CustomField{
		{BaseModel: models.BaseModel{ID: nextFlowID()}, EntityID: entity.ID,
			Key: "name", Label: "名称", Type: models.FieldTypeText,
			Required: true, Visible: true, Enabled: true},
		{BaseModel: models.BaseModel{ID: nextFlowID()}, EntityID: entity.ID,
			Key: "region", Label: "区域", Type: models.FieldTypeText,
			Visible: true, Enabled: true, Position: 1},
	}
	require.NoError(t, db.Create(&fields).Error)
	return entity
}

func newFlowUser(t *testing.T, db *gorm.DB, tenantID uint, role, dept string) *models.User {
	t.Helper()
	id := nextFlowID()
	user := &models.User{
		BaseModel:    models.BaseModel{ID: id},
		TenantID:     tenantID,
		Username:     fmt.Sprintf("u%d_%s", id, role),
		Email:        fmt.Sprintf("u%d@test.local", id),
		PasswordHash: "x",
		Name:         role,
		Department:   dept,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func grantFlow(t *testing.T, db *gorm.DB, user *models.User, entity *models.Entity, grant models.EntityGrant) {
	t.Helper()
	if grant.Scope == "" {
		grant.Scope = models.ScopeOwn
	}
	require.NoError(t, db.Create(&models.UserPermission{
		BaseModel:  models.BaseModel{ID: nextFlowID()},
		UserID:     user.ID,
		Module:     entity.Module,
		EntityID:   entity.ID,
		Access:     grant.Access,
		CanCreate:  grant.CanCreate,
		CanEdit:    grant.CanEdit,
		CanDelete:  grant.CanDelete,
		CanApprove: grant.CanApprove,
		Scope:      grant.Scope,
	}).Error)
}

func snapshotVersions(t *testing.T, db *gorm.DB, recordID uint) []models.RecordVersion {
	t.Helper()
	var versions []models.RecordVersion
	require.NoError(t, db.Where("record_id = ?", recordID).Order("version").Find(&versions).Error)
	return versions
}

func TestRecordUpdateVersioning(t *testing.T) {
	db := newFlowDB(t)
	tenantID := nextFlowID()
	entity := newFlowEntity(t, db, tenantID, false)
	admin := newFlowUser(t, db, tenantID, models.RoleAdmin, "管理部")

	svc := NewRecordService()

	record, err := svc.Create(admin, &CreateRecordInput{
		EntityID: entity.ID,
		Data:     map[string]interface{}{"name": "华北一号"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusDraft, record.Status)
	assert.Equal(t, 1, record.Version)

	t.Run("每次更新版本严格加一并留快照", func(t *testing.T) {
		updated, err := svc.Update(admin, record.ID, &UpdateRecordInput{
			Data:    map[string]interface{}{"name": "华北一号", "region": "华北"},
			Version: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)

		updated, err = svc.Update(admin, record.ID, &UpdateRecordInput{
			Data:    map[string]interface{}{"name": "华北二号", "region": "华北"},
			Version: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.Version)

		versions := snapshotVersions(t, db, record.ID)
		require.Len(t, versions, 3)
		for i, v := range versions {
			assert.Equal(t, i+1, v.Version)
		}
	})

	t.Run("读取不改版本", func(t *testing.T) {
		got, err := svc.GetByID(admin, record.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Version)
		assert.Len(t, snapshotVersions(t, db, record.ID), 3)
	})

	t.Run("过期版本写入返回冲突", func(t *testing.T) {
		_, err := svc.Update(admin, record.ID, &UpdateRecordInput{
			Data:    map[string]interface{}{"name": "并发改动"},
			Version: 1,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))

		// 数据库状态不变：版本仍为3，快照未增加
		got, err := svc.GetByID(admin, record.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Version)
		assert.Equal(t, "华北二号", got.Payload()["name"])
		assert.Len(t, snapshotVersions(t, db, record.ID), 3)
	})
}

func TestApprovalRoundTrip(t *testing.T) {
	db := newFlowDB(t)
	tenantID := nextFlowID()
	entity := newFlowEntity(t, db, tenantID, true)

	employee := newFlowUser(t, db, tenantID, models.RoleEmployee, "销售部")
	grantFlow(t, db, employee, entity, models.EntityGrant{
		Access: true, CanCreate: true, CanEdit: true, Scope: models.ScopeOwn,
	})
	approver := newFlowUser(t, db, tenantID, models.RoleAccounts, "财务部")
	grantFlow(t, db, approver, entity, models.EntityGrant{
		Access: true, CanApprove: true, Scope: models.ScopeAll,
	})

	records := NewRecordService()
	approvals := NewApprovalService()

	record, err := records.Create(employee, &CreateRecordInput{
		EntityID: entity.ID,
		Data:     map[string]interface{}{"name": "华东经销商"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, record.Version)

	// draft -> submitted
	record, err = approvals.Submit(employee, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusSubmitted, record.Status)
	assert.Equal(t, 2, record.Version)

	t.Run("驳回必须填写理由", func(t *testing.T) {
		_, err := approvals.Reject(approver, record.ID, "")
		require.Error(t, err)
		var vErr *apperrors.ValidationError
		assert.ErrorAs(t, err, &vErr)

		got, err := records.GetByID(approver, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RecordStatusSubmitted, got.Status)
		assert.Equal(t, 2, got.Version)
	})

	// submitted -> rejected
	record, err = approvals.Reject(approver, record.ID, "材料不全")
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusRejected, record.Status)
	assert.Equal(t, 3, record.Version)

	// rejected记录被编辑后回到draft
	record, err = records.Update(employee, record.ID, &UpdateRecordInput{
		Data:    map[string]interface{}{"name": "华东经销商", "region": "华东"},
		Version: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusDraft, record.Status)
	assert.Equal(t, 4, record.Version)

	// 再次提交并通过
	record, err = approvals.Submit(employee, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, record.Version)

	record, err = approvals.Approve(approver, record.ID, "核对无误")
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusApproved, record.Status)
	assert.Equal(t, 6, record.Version)

	t.Run("快照逐版本留痕且带审批意见", func(t *testing.T) {
		versions := snapshotVersions(t, db, record.ID)
		require.Len(t, versions, 6)
		statuses := make([]string, 0, len(versions))
		for _, v := range versions {
			statuses = append(statuses, v.Status)
		}
		assert.Equal(t, []string{
			models.RecordStatusDraft,
			models.RecordStatusSubmitted,
			models.RecordStatusRejected,
			models.RecordStatusDraft,
			models.RecordStatusSubmitted,
			models.RecordStatusApproved,
		}, statuses)
		assert.Equal(t, "材料不全", versions[2].Comment)
		assert.Equal(t, "核对无误", versions[5].Comment)
	})

	t.Run("终态不可再流转", func(t *testing.T) {
		_, err := approvals.Submit(employee, record.ID)
		require.Error(t, err)
		var tErr *apperrors.InvalidTransitionError
		assert.ErrorAs(t, err, &tErr)
	})
}

func TestRecordSoftDeleteAndRestore(t *testing.T) {
	db := newFlowDB(t)
	tenantID := nextFlowID()
	entity := newFlowEntity(t, db, tenantID, false)
	admin := newFlowUser(t, db, tenantID, models.RoleAdmin, "管理部")
	outsider := newFlowUser(t, db, tenantID, models.RoleEmployee, "销售部")

	svc := NewRecordService()
	record, err := svc.Create(admin, &CreateRecordInput{
		EntityID: entity.ID,
		Data:     map[string]interface{}{"name": "待删除"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(admin, record.ID))

	t.Run("无权限删除已删记录仍返回403", func(t *testing.T) {
		err := svc.SoftDelete(outsider, record.ID)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("管理员重复删除幂等", func(t *testing.T) {
		assert.NoError(t, svc.SoftDelete(admin, record.ID))
	})

	t.Run("仅管理员可恢复", func(t *testing.T) {
		_, err := svc.Restore(outsider, record.ID)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("重复恢复幂等", func(t *testing.T) {
		restored, err := svc.Restore(admin, record.ID)
		require.NoError(t, err)
		assert.False(t, restored.IsDeleted)

		restored, err = svc.Restore(admin, record.ID)
		require.NoError(t, err)
		assert.False(t, restored.IsDeleted)

		// 空操作不追加活动日志
		var count int64
		require.NoError(t, db.Model(&models.ActivityLog{}).
			Where("record_id = ? AND action = ?", record.ID, models.ActionRestore).
			Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})
}

func TestRecordListModuleFilter(t *testing.T) {
	db := newFlowDB(t)
	tenantID := nextFlowID()
	entity := newFlowEntity(t, db, tenantID, false)
	admin := newFlowUser(t, db, tenantID, models.RoleAdmin, "管理部")

	svc := NewRecordService()
	_, err := svc.Create(admin, &CreateRecordInput{
		EntityID: entity.ID,
		Data:     map[string]interface{}{"name": "列表项"},
	})
	require.NoError(t, err)

	page := &pagination.PageParams{Page: 1, PageSize: 50}

	t.Run("模块匹配正常返回", func(t *testing.T) {
		list, total, err := svc.List(admin,
			RecordFilter{EntityID: entity.ID, Module: entity.Module}, page, "")
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Len(t, list, 1)
	})

	t.Run("模块与实体不符按未找到处理", func(t *testing.T) {
		_, _, err := svc.List(admin,
			RecordFilter{EntityID: entity.ID, Module: models.ModuleExpense}, page, "")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestExportHonorsStarredAndArchived(t *testing.T) {
	db := newFlowDB(t)
	tenantID := nextFlowID()
	entity := newFlowEntity(t, db, tenantID, false)
	admin := newFlowUser(t, db, tenantID, models.RoleAdmin, "管理部")

	records := NewRecordService()
	starredRec, err := records.Create(admin, &CreateRecordInput{
		EntityID: entity.ID,
		Data:     map[string]interface{}{"name": "星标项"},
	})
	require.NoError(t, err)
	_, err = records.SetStarred(admin, starredRec.ID, true)
	require.NoError(t, err)

	_, err = records.Create(admin, &CreateRecordInput{
		EntityID: entity.ID,
		Data:     map[string]interface{}{"name": "普通项"},
	})
	require.NoError(t, err)

	starred := true
	export := NewExportService()
	result, err := export.Export(admin,
		RecordFilter{EntityID: entity.ID, Starred: &starred}, ExportFormatCSV)
	require.NoError(t, err)

	rows, err := ParseCSVRows(bytes.NewReader(result.Data))
	require.NoError(t, err)
	require.Len(t, rows, 2) // 表头 + 星标项
	assert.Contains(t, rows[1], "星标项")

	t.Run("归档过滤生效", func(t *testing.T) {
		archived := true
		result, err := export.Export(admin,
			RecordFilter{EntityID: entity.ID, Archived: &archived}, ExportFormatCSV)
		require.NoError(t, err)
		rows, err := ParseCSVRows(bytes.NewReader(result.Data))
		require.NoError(t, err)
		assert.Len(t, rows, 1) // 没有归档记录，只剩表头
	})
}

func TestImportPartialRowFailure(t *testing.T) {
	db := newFlowDB(t)
	tenantID := nextFlowID()
	entity := newFlowEntity(t, db, tenantID, false)
	admin := newFlowUser(t, db, tenantID, models.RoleAdmin, "管理部")

	importer := NewImportService()
	rows := [][]string{
		{"名称", "区域"},
		{"经销商甲", "华北"},
		{"", "华南"}, // 缺必填字段
		{"经销商乙", "华东"},
	}

	result, err := importer.Import(admin, entity.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)

	var count int64
	require.NoError(t, db.Model(&models.Record{}).
		Where("entity_id = ?", entity.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
