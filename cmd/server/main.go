package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsportal/internal/database"
	"newsportal/internal/router"
	"newsportal/internal/services"
	"newsportal/pkg/config"
	"newsportal/pkg/jwt"
	"newsportal/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting News Portal...")

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		// 关闭Redis连接
		if err := database.CloseRedisCache(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
		// 关闭数据库连接
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
	}()

	if err := database.Migrate(database.GetDB()); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis不可用时降级为单节点模式
	redisCache := database.GetRedisCache()
	if err := database.PingRedis(); err != nil {
		appLogger.Errorf("Redis不可用，权限缓存降级为仅本地: %v", err)
		redisCache = nil
	}

	gin.SetMode(cfg.Server.Mode)

	deps := router.NewDependencies(cfg, database.GetDB(), redisCache, jwt.GetJWTManager())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 执行种子数据初始化
	if err := seedData(ctx, deps); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	// 订阅其他节点的权限失效广播
	if err := deps.PermissionCache.Start(ctx); err != nil {
		appLogger.Errorf("Failed to subscribe permission invalidations: %v", err)
		// 不影响主服务启动，本地条目按TTL收敛
	}
	defer deps.PermissionCache.Stop()

	janitor := services.NewCacheJanitor(deps.PermissionCache, cfg.PermissionCache.PurgeSpec)
	if err := janitor.Start(); err != nil {
		appLogger.Errorf("Failed to start permission cache janitor: %v", err)
	}
	defer janitor.Stop()

	r := router.SetupRouter(deps)

	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// WebSocket推送是长连接，不设置WriteTimeout
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
