package services

import (
	"errors"
	"time"

	"fintrack/internal/database"
	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"
	"fintrack/pkg/pagination"

	"gorm.io/gorm"
)

// UserService 用户管理与认证
type UserService struct {
	db    *gorm.DB
	perms *PermissionService
}

func NewUserService() *UserService {
	return &UserService{
		db:    database.GetDB(),
		perms: NewPermissionService(),
	}
}

// Authenticate 校验登录凭证
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, err
	}

	if !user.CheckPassword(password) {
		return nil, apperrors.ErrUnauthorized
	}
	if !user.IsActive() {
		return nil, apperrors.ErrForbidden
	}

	now := time.Now()
	s.db.Model(&user).Update("last_login_at", now)
	user.LastLoginAt = &now

	return &user, nil
}

// GetByID 按ID获取用户
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUserInput 创建用户参数
type CreateUserInput struct {
	Username   string `json:"username" binding:"required,min=3,max=50"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	Name       string `json:"name" binding:"required"`
	Department string `json:"department"`
	Role       string `json:"role" binding:"required"`
	TemplateID *uint  `json:"template_id"`
}

// Create 创建用户（仅管理员入口调用）
func (s *UserService) Create(tenantID uint, input *CreateUserInput) (*models.User, error) {
	if !models.ValidRoles[input.Role] {
		return nil, apperrors.NewValidationError("非法的角色: " + input.Role)
	}

	var count int64
	s.db.Model(&models.User{}).
		Where("username = ? OR email = ?", input.Username, input.Email).
		Count(&count)
	if count > 0 {
		return nil, apperrors.NewValidationError("用户名或邮箱已存在")
	}

	if input.TemplateID != nil {
		var template models.PermissionTemplate
		err := s.db.Where("id = ? AND tenant_id = ?", *input.TemplateID, tenantID).First(&template).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.NewValidationError("权限模板不存在")
			}
			return nil, err
		}
	}

	user := &models.User{
		TenantID:   tenantID,
		Username:   input.Username,
		Email:      input.Email,
		Name:       input.Name,
		Department: input.Department,
		Role:       input.Role,
		Status:     models.UserStatusActive,
		TemplateID: input.TemplateID,
	}
	if err := user.SetPassword(input.Password); err != nil {
		return nil, err
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// List 分页列出租户内用户
func (s *UserService) List(tenantID uint, role, status, department string, page *pagination.PageParams) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{}).Where("tenant_id = ?", tenantID)

	if role != "" {
		query = query.Where("role = ?", role)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if department != "" {
		query = query.Where("department = ?", department)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := query.Order("username").
		Offset(page.GetOffset()).
		Limit(page.GetLimit()).
		Find(&users).Error
	return users, total, err
}

// UpdateUserInput 更新用户参数
type UpdateUserInput struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Department *string `json:"department"`
	Role       *string `json:"role"`
	TemplateID *uint   `json:"template_id"`
}

// Update 更新用户信息
func (s *UserService) Update(tenantID, id uint, input *UpdateUserInput) (*models.User, error) {
	user, err := s.getOwned(tenantID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.Department != nil {
		user.Department = *input.Department
	}
	if input.Role != nil {
		if !models.ValidRoles[*input.Role] {
			return nil, apperrors.NewValidationError("非法的角色: " + *input.Role)
		}
		user.Role = *input.Role
	}
	if input.TemplateID != nil {
		user.TemplateID = input.TemplateID
	}

	if err := s.db.Save(user).Error; err != nil {
		return nil, err
	}

	// 角色/模板变更影响有效权限
	s.perms.InvalidateUser(user.ID)
	return user, nil
}

// getOwned 校验用户属于当前租户
func (s *UserService) getOwned(tenantID, id uint) (*models.User, error) {
	var user models.User
	err := s.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SetStatus 激活/停用/锁定用户，软操作不删数据
func (s *UserService) SetStatus(tenantID, id uint, status string) (*models.User, error) {
	if status != models.UserStatusActive && status != models.UserStatusInactive && status != models.UserStatusLocked {
		return nil, apperrors.NewValidationError("非法的用户状态: " + status)
	}

	user, err := s.getOwned(tenantID, id)
	if err != nil {
		return nil, err
	}

	if user.Status != status {
		user.Status = status
		if err := s.db.Save(user).Error; err != nil {
			return nil, err
		}
	}
	return user, nil
}

// ResetPassword 重置密码
func (s *UserService) ResetPassword(tenantID, id uint, newPassword string) error {
	user, err := s.getOwned(tenantID, id)
	if err != nil {
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	return s.db.Model(user).Update("password_hash", user.PasswordHash).Error
}
