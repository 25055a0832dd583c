package services

import (
	"context"
	"fmt"

	"newsportal/internal/models"

	"gorm.io/gorm"
)

// ArticleLookup 新闻存在性查询，新闻本身的增删改不在评论子系统内
type ArticleLookup interface {
	ArticleExists(ctx context.Context, articleID uint) (bool, error)
}

// GormArticleLookup 基于 news 表的实现
type GormArticleLookup struct {
	db *gorm.DB
}

func NewGormArticleLookup(db *gorm.DB) *GormArticleLookup {
	return &GormArticleLookup{db: db}
}

func (l *GormArticleLookup) ArticleExists(ctx context.Context, articleID uint) (bool, error) {
	var count int64
	if err := l.db.WithContext(ctx).Model(&models.News{}).Where("id = ?", articleID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询新闻失败: %w", err)
	}
	return count > 0, nil
}
