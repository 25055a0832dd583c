package services

import (
	"context"
	"fmt"

	"newsportal/internal/models"

	"gorm.io/gorm"
)

// RoleStore 主体与角色、角色与权限关系的持久化来源
type RoleStore interface {
	// RoleSlugsForPrincipal 主体直接持有的角色标识
	RoleSlugsForPrincipal(ctx context.Context, principalID uint) ([]string, error)
	// PermissionSlugsForPrincipal 主体所有角色授予的权限标识并集
	PermissionSlugsForPrincipal(ctx context.Context, principalID uint) ([]string, error)
	// PrincipalIDsWithRole 持有指定角色的全部主体
	PrincipalIDsWithRole(ctx context.Context, roleID uint) ([]uint, error)
}

// GormRoleStore 基于关联表的 RoleStore 实现
type GormRoleStore struct {
	db *gorm.DB
}

// NewGormRoleStore 创建 RoleStore
func NewGormRoleStore(db *gorm.DB) *GormRoleStore {
	return &GormRoleStore{db: db}
}

func (s *GormRoleStore) RoleSlugsForPrincipal(ctx context.Context, principalID uint) ([]string, error) {
	var slugs []string
	err := s.db.WithContext(ctx).
		Model(&models.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", principalID).
		Pluck("roles.slug", &slugs).Error
	if err != nil {
		return nil, fmt.Errorf("查询用户角色失败: %w", err)
	}
	return slugs, nil
}

func (s *GormRoleStore) PermissionSlugsForPrincipal(ctx context.Context, principalID uint) ([]string, error) {
	var slugs []string
	err := s.db.WithContext(ctx).
		Model(&models.Permission{}).
		Distinct("permissions.slug").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", principalID).
		Pluck("permissions.slug", &slugs).Error
	if err != nil {
		return nil, fmt.Errorf("查询用户权限失败: %w", err)
	}
	return slugs, nil
}

func (s *GormRoleStore) PrincipalIDsWithRole(ctx context.Context, roleID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("role_id = ?", roleID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("查询角色持有者失败: %w", err)
	}
	return ids, nil
}
