package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"newsportal/internal/models"
	"newsportal/pkg/logger"
	"newsportal/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type RoleService struct {
	db    *gorm.DB
	cache *PermissionCache
}

func NewRoleService(db *gorm.DB, cache *PermissionCache) *RoleService {
	return &RoleService{
		db:    db,
		cache: cache,
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建角色，slug 创建后不可修改
func (s *RoleService) Create(ctx context.Context, slug, name, description string) (*models.Role, error) {
	slug = strings.TrimSpace(slug)
	if err := s.ValidateCreateParams(slug, name); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Role{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("检查角色标识失败: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("角色标识 %s 已存在: %w", slug, ErrConflict)
	}

	role := &models.Role{
		Slug:        slug,
		Name:        name,
		Description: description,
	}
	if err := s.db.WithContext(ctx).Create(role).Error; err != nil {
		return nil, fmt.Errorf("创建角色失败: %w", err)
	}

	logger.GetLogger().WithField("role", slug).Info("角色已创建")
	return role, nil
}

// GetByID 根据ID获取角色及其权限
func (s *RoleService) GetByID(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).Preload("Permissions").First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}
	return &role, nil
}

// List 分页获取角色
func (s *RoleService) List(ctx context.Context, params *pagination.PageParams) ([]*models.Role, int64, error) {
	var roles []*models.Role
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Role{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计角色失败: %w", err)
	}

	err := query.Preload("Permissions").Order("id ASC").Scopes(params.Scope()).Find(&roles).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询角色失败: %w", err)
	}
	return roles, total, nil
}

// Update 修改显示名称和描述
func (s *RoleService) Update(ctx context.Context, id uint, name, description string) (*models.Role, error) {
	if !s.ValidateName(name) {
		return nil, newValidationError("name", "角色名称长度必须在2-50个字符之间")
	}

	role, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(role).Updates(map[string]interface{}{
		"name":        name,
		"description": description,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("更新角色失败: %w", err)
	}
	role.Name = name
	role.Description = description
	return role, nil
}

// Delete 删除角色，系统角色不可删除，持有者的权限缓存随之失效
func (s *RoleService) Delete(ctx context.Context, id uint) error {
	var holders []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := findRole(tx, id)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return fmt.Errorf("系统角色 %s 不允许删除: %w", role.Slug, ErrConflict)
		}

		holders, err = NewGormRoleStore(tx).PrincipalIDsWithRole(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("删除角色用户关联失败: %w", err)
		}
		if err := tx.Where("role_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("删除角色权限关联失败: %w", err)
		}
		return tx.Delete(role).Error
	})
	if err != nil {
		return err
	}

	s.invalidateHolders(ctx, holders)
	logger.GetLogger().WithFields(logrus.Fields{
		"role_id": id,
		"holders": len(holders),
	}).Info("角色已删除")
	return nil
}

// ========== 权限管理方法 ==========

// SyncPermissions 用给定权限整体替换角色的权限
func (s *RoleService) SyncPermissions(ctx context.Context, roleID uint, permissionSlugs []string) (*models.Role, error) {
	var holders []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := findRole(tx, roleID)
		if err != nil {
			return err
		}

		slugs := NewPermissionSet(permissionSlugs...).Slugs()
		permissions := []models.Permission{}
		if len(slugs) > 0 {
			if err := tx.Where("slug IN ?", slugs).Find(&permissions).Error; err != nil {
				return fmt.Errorf("查询权限失败: %w", err)
			}
		}
		if len(permissions) != len(slugs) {
			return newValidationError("permissions", "包含不存在的权限")
		}

		association := tx.Model(role).Association("Permissions")
		if len(permissions) == 0 {
			err = association.Clear()
		} else {
			err = association.Replace(permissions)
		}
		if err != nil {
			return fmt.Errorf("更新角色权限失败: %w", err)
		}

		holders, err = NewGormRoleStore(tx).PrincipalIDsWithRole(ctx, roleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateHolders(ctx, holders)
	logger.GetLogger().WithFields(logrus.Fields{
		"role_id":     roleID,
		"permissions": permissionSlugs,
		"holders":     len(holders),
	}).Info("角色权限已同步")
	return s.GetByID(ctx, roleID)
}

func (s *RoleService) invalidateHolders(ctx context.Context, holders []uint) {
	if err := s.cache.InvalidateMany(ctx, holders); err != nil {
		logger.GetLogger().WithError(err).Error("权限缓存失效广播失败，其他节点将在TTL后收敛")
	}
}

func findRole(tx *gorm.DB, id uint) (*models.Role, error) {
	var role models.Role
	err := tx.First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}
	return &role, nil
}

// ========== 验证方法 ==========

// ValidateSlug 验证角色标识：小写字母、数字、- 和 _，2-50个字符
func (s *RoleService) ValidateSlug(slug string) bool {
	if len(slug) < 2 || len(slug) > 50 {
		return false
	}
	for _, r := range slug {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return false
		}
	}
	return true
}

// ValidateName 验证角色名称
func (s *RoleService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 50
}

// ValidateCreateParams 验证创建角色的参数
func (s *RoleService) ValidateCreateParams(slug, name string) error {
	if !s.ValidateSlug(slug) {
		return newValidationError("slug", "角色标识长度必须在2-50个字符之间，且只能包含小写字母、数字、-和_")
	}
	if !s.ValidateName(name) {
		return newValidationError("name", "角色名称长度必须在2-50个字符之间")
	}
	return nil
}

// EnsureRole 角色不存在时创建并授予权限，已存在时保持不变
func (s *RoleService) EnsureRole(ctx context.Context, role models.Role, permissionSlugs []string) (*models.Role, error) {
	var existing models.Role
	err := s.db.WithContext(ctx).Where("slug = ?", role.Slug).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(&role).Error; err != nil {
		return nil, fmt.Errorf("创建角色 %s 失败: %w", role.Slug, err)
	}
	if len(permissionSlugs) == 0 {
		return &role, nil
	}
	return s.SyncPermissions(ctx, role.ID, permissionSlugs)
}
