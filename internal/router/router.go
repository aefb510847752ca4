package router

import (
	"time"

	"fintrack/internal/handlers"
	"fintrack/internal/middleware"
	"fintrack/internal/services"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter() *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	registerRoutes(router)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine) {

	auth := middleware.NewAuthMiddleware()

	// 服务层
	userService := services.NewUserService()
	tenantService := services.NewTenantService()
	permService := services.NewPermissionService()
	entityService := services.NewEntityService()
	fieldService := services.NewFieldService()
	recordService := services.NewRecordService()
	approvalService := services.NewApprovalService()
	exportService := services.NewExportService()
	importService := services.NewImportService()
	activityService := services.NewActivityService()
	dashboardService := services.NewDashboardService()
	templateService := services.NewTemplateService()

	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// 认证路由（登录/刷新无需认证）
		authHandler := handlers.NewAuthHandler(userService, permService)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
			authGroup.GET("/permissions", auth.RequireLogin(), authHandler.Permissions)
		}

		// 用户管理（仅管理员）
		userHandler := handlers.NewUserHandler(userService)
		permHandler := handlers.NewPermissionHandler(permService, templateService)
		users := api.Group("/users", auth.RequireLogin(), auth.RequireAdmin())
		{
			users.POST("", userHandler.Create)
			users.GET("", userHandler.GetAll)
			users.GET("/:id", userHandler.GetByID)
			users.PUT("/:id", userHandler.Update)
			users.POST("/:id/activate", userHandler.Activate)
			users.POST("/:id/deactivate", userHandler.Deactivate)
			users.POST("/:id/lock", userHandler.Lock)
			users.POST("/:id/reset-password", userHandler.ResetPassword)

			// 用户个体权限
			users.GET("/:id/permissions", permHandler.GetUserPermissions)
			users.PUT("/:id/permissions", permHandler.SetUserPermission)
			users.DELETE("/:id/permissions/:perm_id", permHandler.DeleteUserPermission)
		}

		// 权限模板（仅管理员）
		templates := api.Group("/permission-templates", auth.RequireLogin(), auth.RequireAdmin())
		{
			templates.POST("", permHandler.CreateTemplate)
			templates.GET("", permHandler.GetTemplates)
			templates.GET("/:id", permHandler.GetTemplate)
			templates.DELETE("/:id", permHandler.DeleteTemplate)
			templates.PUT("/:id/rules", permHandler.SetTemplateRule)
			templates.DELETE("/:id/rules/:rule_id", permHandler.DeleteTemplateRule)
		}

		// 租户管理（仅管理员）
		tenantHandler := handlers.NewTenantHandler(tenantService)
		tenants := api.Group("/tenants", auth.RequireLogin(), auth.RequireAdmin())
		{
			tenants.POST("", tenantHandler.Create)
			tenants.GET("", tenantHandler.GetAll)
			tenants.GET("/:id", tenantHandler.GetByID)
			tenants.POST("/:id/activate", tenantHandler.Activate)
			tenants.POST("/:id/deactivate", tenantHandler.Deactivate)
		}

		// 实体定义（仅管理员）
		entityHandler := handlers.NewEntityHandler(entityService)
		entities := api.Group("/entities", auth.RequireLogin(), auth.RequireAdmin())
		{
			entities.POST("", entityHandler.Create)
			entities.GET("", entityHandler.GetAll)
			entities.GET("/:id", entityHandler.GetByID)
			entities.PUT("/:id", entityHandler.Update)
			entities.POST("/:id/toggle", entityHandler.Toggle)
			entities.POST("/:id/archive", entityHandler.Archive)
			entities.POST("/:id/unarchive", entityHandler.Unarchive)
			entities.POST("/:id/clone", entityHandler.Clone)
		}

		// 自定义字段（仅管理员）
		fieldHandler := handlers.NewFieldHandler(fieldService)
		fields := api.Group("/fields", auth.RequireLogin(), auth.RequireAdmin())
		{
			fields.POST("", fieldHandler.Create)
			fields.GET("", fieldHandler.GetByEntity)
			fields.PUT("/:id", fieldHandler.Update)
			fields.POST("/:id/toggle", fieldHandler.Toggle)
			fields.POST("/reorder", fieldHandler.Reorder)
		}

		// 业务记录（登录即可，服务层做权限裁决）
		recordHandler := handlers.NewRecordHandler(recordService, approvalService, exportService, importService)
		records := api.Group("/records", auth.RequireLogin())
		{
			records.POST("", recordHandler.Create)
			records.POST("/bulk", recordHandler.BulkCreate)
			records.GET("", recordHandler.GetAll)
			records.GET("/export", recordHandler.Export)
			records.POST("/import", recordHandler.Import)
			records.GET("/:id", recordHandler.GetByID)
			records.PUT("/:id", recordHandler.Update)
			records.DELETE("/:id", recordHandler.Delete)
			records.POST("/:id/restore", recordHandler.Restore)
			records.POST("/:id/clone", recordHandler.Clone)
			records.POST("/:id/star", recordHandler.Star)
			records.POST("/:id/unstar", recordHandler.Unstar)
			records.POST("/:id/archive", recordHandler.Archive)
			records.POST("/:id/unarchive", recordHandler.Unarchive)
			records.GET("/:id/versions", recordHandler.Versions)

			// 审批工作流
			records.POST("/:id/submit", recordHandler.Submit)
			records.POST("/:id/approve", recordHandler.Approve)
			records.POST("/:id/reject", recordHandler.Reject)
		}

		// 活动日志（仅管理员）
		activityHandler := handlers.NewActivityHandler(activityService)
		audit := api.Group("/audit-logs", auth.RequireLogin(), auth.RequireAdmin())
		{
			audit.GET("", activityHandler.GetAll)
			audit.GET("/summary", activityHandler.Summary)
		}

		// 仪表盘
		dashboardHandler := handlers.NewDashboardHandler(dashboardService)
		dashboard := api.Group("/dashboard", auth.RequireLogin())
		{
			dashboard.GET("/stats", dashboardHandler.Stats)
			dashboard.GET("/calendar", dashboardHandler.Calendar)
		}

		// WebSocket事件通道（token经查询参数认证）
		wsHandler := handlers.NewWebSocketHandler(services.GetEventHub())
		api.GET("/ws/events", wsHandler.Events)
	}
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "FinTrack",
		"version":   "1.0.0",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
