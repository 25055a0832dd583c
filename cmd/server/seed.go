package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"newsportal/internal/models"
	"newsportal/internal/router"
	"newsportal/pkg/logger"

	"gorm.io/gorm"
)

// 默认角色及其权限，admin 通过旁路拥有全部权限，无需授予
var defaultRoles = []struct {
	role        models.Role
	permissions []string
}{
	{
		role: models.Role{Slug: models.RoleAdmin, Name: "超级管理员", Description: "跳过所有权限检查", IsSystem: true},
	},
	{
		role: models.Role{Slug: models.RoleUser, Name: "注册用户", Description: "注册后默认获得的角色", IsSystem: true},
	},
	{
		role:        models.Role{Slug: models.RoleModerator, Name: "评论审核员", Description: "审核读者评论"},
		permissions: []string{models.PermissionCommentModerate, models.PermissionViewAdminPanel},
	},
	{
		role:        models.Role{Slug: models.RoleEditor, Name: "新闻编辑", Description: "管理新闻稿件"},
		permissions: []string{models.PermissionCreateNews, models.PermissionEditNews, models.PermissionDeleteNews, models.PermissionViewAdminPanel},
	},
}

// seedData 初始化种子数据
func seedData(ctx context.Context, deps *router.Dependencies) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	// 1. 权限目录
	if err := deps.Permissions.EnsureCatalog(ctx); err != nil {
		return fmt.Errorf("初始化权限失败: %w", err)
	}

	// 2. 默认角色
	for _, def := range defaultRoles {
		if _, err := deps.Roles.EnsureRole(ctx, def.role, def.permissions); err != nil {
			return fmt.Errorf("初始化角色 %s 失败: %w", def.role.Slug, err)
		}
	}

	// 3. 默认管理员
	if err := createDefaultAdmin(ctx, deps); err != nil {
		return fmt.Errorf("创建默认管理员失败: %w", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDefaultAdmin 创建默认管理员用户，用户名和密码可通过环境变量覆盖
func createDefaultAdmin(ctx context.Context, deps *router.Dependencies) error {
	username := getEnv("ADMIN_USERNAME", "admin")
	password := getEnv("ADMIN_PASSWORD", "Admin@123")
	email := getEnv("ADMIN_EMAIL", "admin@example.com")

	var existing models.User
	err := deps.DB.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		logger.GetLogger().Info("管理员用户已存在，跳过创建")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user, err := deps.Users.Register(ctx, username, email, password, "系统管理员")
	if err != nil {
		return err
	}
	if err := deps.Users.AttachRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return err
	}

	logger.GetLogger().Infof("默认管理员创建成功 - 用户名: %s", username)
	if os.Getenv("ADMIN_PASSWORD") == "" {
		logger.GetLogger().Warn("默认管理员使用内置密码，请尽快修改")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
