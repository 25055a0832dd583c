package services

import (
	"context"
	"fmt"

	"newsportal/internal/models"
	"newsportal/pkg/pagination"

	"gorm.io/gorm"
)

type PermissionService struct {
	db *gorm.DB
}

func NewPermissionService(db *gorm.DB) *PermissionService {
	return &PermissionService{db: db}
}

// List 分页获取权限目录
func (s *PermissionService) List(ctx context.Context, params *pagination.PageParams) ([]*models.Permission, int64, error) {
	var permissions []*models.Permission
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Permission{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计权限失败: %w", err)
	}

	if err := query.Order("slug ASC").Scopes(params.Scope()).Find(&permissions).Error; err != nil {
		return nil, 0, fmt.Errorf("查询权限失败: %w", err)
	}
	return permissions, total, nil
}

// EnsureCatalog 写入内置权限目录，已存在的权限保持不变
func (s *PermissionService) EnsureCatalog(ctx context.Context) error {
	for _, p := range models.PermissionCatalog() {
		perm := p
		if err := s.db.WithContext(ctx).Where(models.Permission{Slug: perm.Slug}).FirstOrCreate(&perm).Error; err != nil {
			return fmt.Errorf("写入权限 %s 失败: %w", p.Slug, err)
		}
	}
	return nil
}
