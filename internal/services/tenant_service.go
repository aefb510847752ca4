package services

import (
	"errors"

	"fintrack/internal/database"
	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"

	"gorm.io/gorm"
)

// TenantService 租户管理
type TenantService struct {
	db *gorm.DB
}

func NewTenantService() *TenantService {
	return &TenantService{
		db: database.GetDB(),
	}
}

// GetByID 按ID获取租户
func (s *TenantService) GetByID(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.First(&tenant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// GetByCode 按代码获取租户
func (s *TenantService) GetByCode(code string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.Where("code = ?", code).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// Create 创建租户
func (s *TenantService) Create(name, code string) (*models.Tenant, error) {
	var count int64
	s.db.Model(&models.Tenant{}).Where("code = ?", code).Count(&count)
	if count > 0 {
		return nil, apperrors.NewValidationError("租户代码已存在")
	}

	tenant := &models.Tenant{
		Name:   name,
		Code:   code,
		Status: models.TenantStatusActive,
	}
	if err := s.db.Create(tenant).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

// List 列出全部租户
func (s *TenantService) List() ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.Order("code").Find(&tenants).Error
	return tenants, err
}

// SetStatus 启用/停用租户
func (s *TenantService) SetStatus(id uint, status string) (*models.Tenant, error) {
	if status != models.TenantStatusActive && status != models.TenantStatusInactive {
		return nil, apperrors.NewValidationError("非法的租户状态: " + status)
	}

	tenant, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if tenant.Status != status {
		tenant.Status = status
		if err := s.db.Save(tenant).Error; err != nil {
			return nil, err
		}
	}
	return tenant, nil
}
