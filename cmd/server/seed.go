package main

import (
	"encoding/json"
	"fmt"

	"fintrack/internal/database"
	"fintrack/internal/models"
	"fintrack/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	db := database.GetDB()

	// 1. 创建默认租户
	tenant, err := createDefaultTenant(db)
	if err != nil {
		return fmt.Errorf("创建默认租户失败: %v", err)
	}

	// 2. 创建默认管理员用户
	admin, err := createDefaultAdmin(db, tenant)
	if err != nil {
		return fmt.Errorf("创建默认管理员失败: %v", err)
	}

	// 3. 创建示例业务模块与实体
	entities, err := createDefaultEntities(db, tenant, admin)
	if err != nil {
		return fmt.Errorf("创建示例实体失败: %v", err)
	}

	// 4. 创建默认权限模板
	if err := createDefaultTemplate(db, tenant, entities); err != nil {
		return fmt.Errorf("创建默认权限模板失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDefaultTenant 创建默认租户
func createDefaultTenant(db *gorm.DB) (*models.Tenant, error) {
	var tenant models.Tenant
	err := db.Where("code = ?", "default").First(&tenant).Error
	if err == nil {
		logger.GetLogger().Info("默认租户已存在，跳过创建")
		return &tenant, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	tenant = models.Tenant{
		Name:   "默认租户",
		Code:   "default",
		Status: models.TenantStatusActive,
	}
	if err := db.Create(&tenant).Error; err != nil {
		return nil, err
	}

	logger.GetLogger().Info("默认租户创建成功")
	return &tenant, nil
}

// createDefaultAdmin 创建默认管理员用户
func createDefaultAdmin(db *gorm.DB, tenant *models.Tenant) (*models.User, error) {
	var admin models.User
	err := db.Where("username = ?", "admin").First(&admin).Error
	if err == nil {
		logger.GetLogger().Info("默认管理员已存在，跳过创建")
		return &admin, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	admin = models.User{
		TenantID: tenant.ID,
		Username: "admin",
		Email:    "admin@fintrack.local",
		Name:     "系统管理员",
		Role:     models.RoleAdmin,
		Status:   models.UserStatusActive,
	}
	if err := admin.SetPassword("Admin@123"); err != nil {
		return nil, err
	}
	if err := db.Create(&admin).Error; err != nil {
		return nil, err
	}

	logger.GetLogger().Warn("默认管理员创建成功（用户名admin，请尽快修改初始密码）")
	return &admin, nil
}

// seedEntity 种子实体定义
type seedEntity struct {
	Module          string
	Code            string
	Name            string
	Description     string
	Icon            string
	ApprovalEnabled bool
	Fields          []seedField
}

// seedField 种子字段定义
type seedField struct {
	Key      string
	Label    string
	Type     string
	Required bool
	Options  []string
	Rules    *models.FieldRules
}

// createDefaultEntities 创建示例业务模块与实体（房产经销商/支出项目）
func createDefaultEntities(db *gorm.DB, tenant *models.Tenant, admin *models.User) (map[string]*models.Entity, error) {
	seeds := []seedEntity{
		{
			Module:          models.ModuleRealEstate,
			Code:            "dealer",
			Name:            "经销商",
			Description:     "房产经销商档案",
			Icon:            "building",
			ApprovalEnabled: true,
			Fields: []seedField{
				{Key: "name", Label: "名称", Type: models.FieldTypeText, Required: true},
				{Key: "contact", Label: "联系电话", Type: models.FieldTypeText},
				{Key: "region", Label: "区域", Type: models.FieldTypeSelect, Options: []string{"华北", "华东", "华南", "西部"}},
				{Key: "signed_at", Label: "签约日期", Type: models.FieldTypeDate},
				{Key: "active", Label: "在营", Type: models.FieldTypeBoolean},
			},
		},
		{
			Module:          models.ModuleExpense,
			Code:            "project",
			Name:            "支出项目",
			Description:     "项目支出跟踪",
			Icon:            "wallet",
			ApprovalEnabled: true,
			Fields: []seedField{
				{Key: "title", Label: "项目名称", Type: models.FieldTypeText, Required: true},
				{Key: "amount", Label: "金额", Type: models.FieldTypeNumber, Required: true,
					Rules: &models.FieldRules{Min: float64Ptr(0)}},
				{Key: "incurred_on", Label: "发生日期", Type: models.FieldTypeDate, Required: true},
				{Key: "category", Label: "类别", Type: models.FieldTypeSelect,
					Options: []string{"差旅", "采购", "推广", "其他"}},
				{Key: "receipt", Label: "票据", Type: models.FieldTypeFile,
					Rules: &models.FieldRules{FileTypes: []string{"pdf", "jpg", "png"}}},
			},
		},
	}

	created := make(map[string]*models.Entity, len(seeds))
	for _, seed := range seeds {
		entity, err := createSeedEntity(db, tenant, admin, seed)
		if err != nil {
			return nil, err
		}
		created[seed.Module+":"+seed.Code] = entity
	}
	return created, nil
}

// createSeedEntity 创建单个种子实体及其系统字段
func createSeedEntity(db *gorm.DB, tenant *models.Tenant, admin *models.User, seed seedEntity) (*models.Entity, error) {
	var entity models.Entity
	err := db.Where("tenant_id = ? AND module = ? AND code = ?", tenant.ID, seed.Module, seed.Code).
		First(&entity).Error
	if err == nil {
		return &entity, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	entity = models.Entity{
		TenantID:        tenant.ID,
		Module:          seed.Module,
		Code:            seed.Code,
		Name:            seed.Name,
		Description:     seed.Description,
		Icon:            seed.Icon,
		Enabled:         true,
		ApprovalEnabled: seed.ApprovalEnabled,
		CreatedBy:       admin.ID,
		UpdatedBy:       admin.ID,
	}

	return &entity, db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entity).Error; err != nil {
			return err
		}
		for i, f := range seed.Fields {
			field := models.CustomField{
				EntityID: entity.ID,
				Key:      f.Key,
				Label:    f.Label,
				Type:     f.Type,
				Position: i,
				Required: f.Required,
				Visible:  true,
				System:   true,
				Enabled:  true,
			}
			if len(f.Options) > 0 {
				options, err := json.Marshal(f.Options)
				if err != nil {
					return err
				}
				field.Options = datatypes.JSON(options)
			}
			if f.Rules != nil {
				rules, err := json.Marshal(f.Rules)
				if err != nil {
					return err
				}
				field.Rules = datatypes.JSON(rules)
			}
			if err := tx.Create(&field).Error; err != nil {
				return err
			}
		}
		logger.GetLogger().Infof("种子实体创建成功: %s/%s", seed.Module, seed.Code)
		return nil
	})
}

// createDefaultTemplate 创建默认权限模板：种子实体上own范围的读写
func createDefaultTemplate(db *gorm.DB, tenant *models.Tenant, entities map[string]*models.Entity) error {
	var count int64
	db.Model(&models.PermissionTemplate{}).
		Where("tenant_id = ? AND name = ?", tenant.ID, "默认员工模板").Count(&count)
	if count > 0 {
		logger.GetLogger().Info("默认权限模板已存在，跳过创建")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		template := models.PermissionTemplate{
			TenantID:    tenant.ID,
			Name:        "默认员工模板",
			Description: "种子实体上本人范围的增改权限",
		}
		if err := tx.Create(&template).Error; err != nil {
			return err
		}

		for _, entity := range entities {
			rule := models.TemplateRule{
				TemplateID: template.ID,
				Module:     entity.Module,
				EntityID:   entity.ID,
				Access:     true,
				CanCreate:  true,
				CanEdit:    true,
				Scope:      models.ScopeOwn,
			}
			if err := tx.Create(&rule).Error; err != nil {
				return err
			}
		}
		logger.GetLogger().Info("默认权限模板创建成功")
		return nil
	})
}

func float64Ptr(v float64) *float64 {
	return &v
}
