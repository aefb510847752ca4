package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"fintrack/internal/database"
	"fintrack/internal/models"
	"fintrack/pkg/cache"
	apperrors "fintrack/pkg/errors"
	"fintrack/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PermissionService 权限解析与个体权限管理
// 解析结果按用户缓存在Redis中，TTL内可能短暂滞后，变更时显式失效
type PermissionService struct {
	db    *gorm.DB
	cache *cache.RedisCache
}

func NewPermissionService() *PermissionService {
	return &PermissionService{
		db:    database.GetDB(),
		cache: database.GetRedisCache(),
	}
}

// Resolve 解析用户的有效权限表
func (s *PermissionService) Resolve(user *models.User) (*EffectivePermissions, error) {
	// 管理员无条件全量权限，不读权限表
	if user.IsAdmin() {
		return &EffectivePermissions{IsAdmin: true, Grants: map[string]models.EntityGrant{}}, nil
	}

	ctx := context.Background()
	cacheKey := strconv.FormatUint(uint64(user.ID), 10)

	var cached EffectivePermissions
	if err := s.cache.Get(ctx, &cached, "perms", cacheKey); err == nil {
		return &cached, nil
	} else if err != cache.ErrMiss {
		logger.GetLogger().Warnf("读取权限缓存失败: %v", err)
	}

	var templateRules []models.TemplateRule
	if user.TemplateID != nil {
		if err := s.db.Where("template_id = ?", *user.TemplateID).Find(&templateRules).Error; err != nil {
			return nil, err
		}
	}

	var userPerms []models.UserPermission
	if err := s.db.Where("user_id = ?", user.ID).Find(&userPerms).Error; err != nil {
		return nil, err
	}

	perms := &EffectivePermissions{
		IsAdmin: false,
		Grants:  ResolveGrants(templateRules, userPerms),
	}

	if err := s.cache.Set(ctx, perms, "perms", cacheKey); err != nil {
		logger.GetLogger().Warnf("写入权限缓存失败: %v", err)
	}

	return perms, nil
}

// ApplyScope 按权限范围追加行过滤
func (s *PermissionService) ApplyScope(query *gorm.DB, grant models.EntityGrant, user *models.User) *gorm.DB {
	switch grant.Scope {
	case models.ScopeAll:
		return query
	case models.ScopeDepartment:
		// 创建人与请求者同部门
		return query.Where("created_by IN (?)",
			s.db.Model(&models.User{}).Select("id").
				Where("tenant_id = ? AND department = ?", user.TenantID, user.Department))
	default:
		// own 或缺省：只看自己创建的
		return query.Where("created_by = ?", user.ID)
	}
}

// InvalidateUser 失效单个用户的权限缓存
func (s *PermissionService) InvalidateUser(userID uint) {
	ctx := context.Background()
	if err := s.cache.Delete(ctx, "perms", strconv.FormatUint(uint64(userID), 10)); err != nil {
		logger.GetLogger().Warnf("失效权限缓存失败: %v", err)
	}
}

// InvalidateAll 失效全部权限缓存（模板、实体或字段变更后调用）
func (s *PermissionService) InvalidateAll() {
	ctx := context.Background()
	if err := s.cache.DeletePattern(ctx, "perms:*"); err != nil {
		logger.GetLogger().Warnf("批量失效权限缓存失败: %v", err)
	}
}

// ========== 用户个体权限CRUD ==========

// GrantInput 权限写入参数
type GrantInput struct {
	Module     string           `json:"module" binding:"required"`
	EntityID   uint             `json:"entity_id" binding:"required"`
	Access     bool             `json:"access"`
	CanCreate  bool             `json:"can_create"`
	CanEdit    bool             `json:"can_edit"`
	CanDelete  bool             `json:"can_delete"`
	CanApprove bool             `json:"can_approve"`
	Scope      string           `json:"scope"`
	Columns    models.ColumnMap `json:"columns"`
}

// validateGrantInput 写入时校验：范围合法、实体存在、列键在字段注册表内
func (s *PermissionService) validateGrantInput(tenantID uint, input *GrantInput) (datatypes.JSON, error) {
	if input.Scope == "" {
		input.Scope = models.ScopeOwn
	}
	if !models.ValidScopes[input.Scope] {
		return nil, apperrors.NewValidationError("非法的权限范围: " + input.Scope)
	}

	var entity models.Entity
	err := s.db.Where("id = ? AND tenant_id = ? AND module = ?", input.EntityID, tenantID, input.Module).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	if len(input.Columns) == 0 {
		return nil, nil
	}

	var fields []models.CustomField
	if err := s.db.Where("entity_id = ?", entity.ID).Find(&fields).Error; err != nil {
		return nil, err
	}
	knownKeys := make(map[string]bool, len(fields))
	for _, f := range fields {
		knownKeys[f.Key] = true
	}

	verr := apperrors.NewValidationError("列权限包含未定义字段")
	for key := range input.Columns {
		if !knownKeys[key] {
			verr.AddField(key, "字段不存在")
		}
	}
	if verr.HasFields() {
		return nil, verr
	}

	data, err := json.Marshal(input.Columns)
	if err != nil {
		return nil, fmt.Errorf("序列化列权限失败: %v", err)
	}
	return datatypes.JSON(data), nil
}

// SetUserPermission 写入（新建或整体替换）某用户在某(模块,实体)上的权限
func (s *PermissionService) SetUserPermission(tenantID, userID uint, input *GrantInput) (*models.UserPermission, error) {
	columns, err := s.validateGrantInput(tenantID, input)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.Where("id = ? AND tenant_id = ?", userID, tenantID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	perm := models.UserPermission{
		UserID:     userID,
		Module:     input.Module,
		EntityID:   input.EntityID,
		Access:     input.Access,
		CanCreate:  input.CanCreate,
		CanEdit:    input.CanEdit,
		CanDelete:  input.CanDelete,
		CanApprove: input.CanApprove,
		Scope:      input.Scope,
		Columns:    columns,
	}

	// 同(用户,模块,实体)已有则整体替换
	var existing models.UserPermission
	err = s.db.Where("user_id = ? AND module = ? AND entity_id = ?", userID, input.Module, input.EntityID).
		First(&existing).Error
	if err == nil {
		perm.ID = existing.ID
		perm.CreatedAt = existing.CreatedAt
		err = s.db.Save(&perm).Error
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.Create(&perm).Error
	}
	if err != nil {
		return nil, err
	}

	s.InvalidateUser(userID)
	return &perm, nil
}

// GetUserPermissions 列出某用户的全部个体权限
func (s *PermissionService) GetUserPermissions(tenantID, userID uint) ([]models.UserPermission, error) {
	var user models.User
	if err := s.db.Where("id = ? AND tenant_id = ?", userID, tenantID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	var perms []models.UserPermission
	err := s.db.Where("user_id = ?", userID).Order("module, entity_id").Find(&perms).Error
	return perms, err
}

// DeleteUserPermission 删除某条个体权限，用户回落到模板基线
func (s *PermissionService) DeleteUserPermission(tenantID, userID, permID uint) error {
	var perm models.UserPermission
	err := s.db.Joins("JOIN users ON users.id = user_permissions.user_id").
		Where("user_permissions.id = ? AND user_permissions.user_id = ? AND users.tenant_id = ?", permID, userID, tenantID).
		First(&perm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return err
	}

	if err := s.db.Delete(&models.UserPermission{}, perm.ID).Error; err != nil {
		return err
	}

	s.InvalidateUser(userID)
	return nil
}
