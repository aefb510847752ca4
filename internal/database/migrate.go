package database

import (
	"fintrack/internal/models"
	"fintrack/pkg/logger"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
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
	)

	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}
