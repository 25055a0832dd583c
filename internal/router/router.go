package router

import (
	"newsportal/internal/handlers"
	"newsportal/internal/middleware"
	"newsportal/internal/models"
	"newsportal/internal/services"
	"newsportal/pkg/cache"
	"newsportal/pkg/config"
	"newsportal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Dependencies 路由需要的服务对象
type Dependencies struct {
	Config          *config.Config
	DB              *gorm.DB
	Redis           *cache.RedisCache
	JWT             *jwt.JWTManager
	PermissionCache *services.PermissionCache
	Guard           *services.AuthorizationGuard
	Users           *services.UserService
	Roles           *services.RoleService
	Permissions     *services.PermissionService
	Comments        *services.CommentService
}

// NewDependencies 组装服务，redisCache 为 nil 时权限缓存只用本地层、评论事件不发布
func NewDependencies(cfg *config.Config, db *gorm.DB, redisCache *cache.RedisCache, jwtManager *jwt.JWTManager) *Dependencies {
	store := services.NewGormRoleStore(db)
	permCache := services.NewPermissionCache(store, redisCache, services.PermissionCacheOptions{
		Size:      cfg.PermissionCache.Size,
		LocalTTL:  cfg.PermissionCache.LocalTTL,
		RemoteTTL: cfg.PermissionCache.RemoteTTL,
	})
	guard := services.NewAuthorizationGuard(permCache)

	return &Dependencies{
		Config:          cfg,
		DB:              db,
		Redis:           redisCache,
		JWT:             jwtManager,
		PermissionCache: permCache,
		Guard:           guard,
		Users:           services.NewUserService(db, store, permCache),
		Roles:           services.NewRoleService(db, permCache),
		Permissions:     services.NewPermissionService(db),
		Comments: services.NewCommentService(
			services.NewGormCommentRepository(db),
			services.NewGormArticleLookup(db),
			guard,
			services.NewCommentEventPublisher(redisCache),
			cfg.Comment.MaxLength,
		),
	}
}

// SetupRouter 设置路由
func SetupRouter(deps *Dependencies) *gin.Engine {
	handlers.RegisterValidatorTagNames()

	router := gin.New()

	// 中间件
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(deps.Config.CORS))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps *Dependencies) {
	auth := middleware.NewAuthMiddleware(deps.Users, deps.Guard, deps.JWT)

	systemHandler := handlers.NewSystemHandler(deps.DB, deps.Redis)
	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT)
	commentHandler := handlers.NewCommentHandler(deps.Comments)
	roleHandler := handlers.NewRoleHandler(deps.Roles)
	userHandler := handlers.NewUserHandler(deps.Users)
	permissionHandler := handlers.NewPermissionHandler(deps.Permissions)
	feedHandler := handlers.NewModerationFeedHandler(deps.Redis, auth, deps.Guard, deps.Config.CORS.AllowOrigins)

	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", systemHandler.Health)
		api.GET("/ping", systemHandler.Ping)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
		}

		// 评论树，匿名可读
		articles := api.Group("/articles")
		{
			articles.GET("/:id/comments", auth.OptionalLogin(), commentHandler.List)
			articles.POST("/:id/comments", auth.RequireLogin(), commentHandler.Submit)
		}

		comments := api.Group("/comments", auth.RequireLogin(), auth.RequirePermission(models.PermissionCommentModerate))
		{
			comments.PUT("/:id/status", commentHandler.Moderate)
			comments.DELETE("/:id", commentHandler.Delete)
		}

		roles := api.Group("/roles", auth.RequireLogin(), auth.RequireRole(models.RoleAdmin))
		{
			roles.GET("", roleHandler.List)
			roles.POST("", roleHandler.Create)
			roles.GET("/:id", roleHandler.GetByID)
			roles.PUT("/:id", roleHandler.Update)
			roles.DELETE("/:id", roleHandler.Delete)
			roles.PUT("/:id/permissions", roleHandler.SyncPermissions)
		}

		users := api.Group("/users", auth.RequireLogin(), auth.RequireRole(models.RoleAdmin))
		{
			users.GET("/:id", userHandler.GetByID)
			users.DELETE("/:id", userHandler.Delete)
			users.PUT("/:id/status", userHandler.UpdateStatus)
			users.PUT("/:id/roles", userHandler.SyncRoles)
			users.POST("/:id/roles/:role", userHandler.AttachRole)
			users.DELETE("/:id/roles/:role", userHandler.DetachRole)
		}

		api.GET("/permissions", auth.RequireLogin(), auth.RequirePermission(models.PermissionViewAdminPanel), permissionHandler.List)

		// WebSocket路由（token通过查询参数传递）
		api.GET("/ws/moderation", feedHandler.Feed)
	}
}
