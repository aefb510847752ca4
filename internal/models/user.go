package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User 用户模型
type User struct {
	BaseModel
	TenantID     uint       `json:"tenant_id" gorm:"not null;index"`
	Username     string     `json:"username" gorm:"unique;not null;size:50;index"`
	Email        string     `json:"email" gorm:"unique;not null;size:100;index"`
	PasswordHash string     `json:"-" gorm:"not null;size:255"`
	Name         string     `json:"name" gorm:"not null;size:100"`
	Department   string     `json:"department" gorm:"size:100;index"`
	Role         string     `json:"role" gorm:"not null;size:20;index"`
	Status       string     `json:"status" gorm:"default:'active';size:20"`
	TemplateID   *uint      `json:"template_id" gorm:"index"` // 分配的权限模板
	LastLoginAt  *time.Time `json:"last_login_at"`

	Tenant   *Tenant             `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Template *PermissionTemplate `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// 用户角色常量
const (
	RoleAdmin     = "admin"
	RoleHR        = "hr"
	RoleEmployee  = "employee"
	RoleAccounts  = "accounts"
	RoleSupport   = "support"
	RoleMarketing = "marketing"
)

// ValidRoles 合法角色集合
var ValidRoles = map[string]bool{
	RoleAdmin:     true,
	RoleHR:        true,
	RoleEmployee:  true,
	RoleAccounts:  true,
	RoleSupport:   true,
	RoleMarketing: true,
}

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// IsAdmin 是否管理员，管理员绕过权限解析
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive 是否活跃状态
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
