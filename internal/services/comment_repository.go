package services

import (
	"context"
	"errors"
	"fmt"

	"newsportal/internal/models"

	"gorm.io/gorm"
)

// StatusFilter 评论读取的状态过滤条件
//
// Statuses 为空表示不过滤；IncludeAuthorID 非空时额外包含该作者的全部评论。
type StatusFilter struct {
	Statuses        []models.CommentStatus
	IncludeAuthorID *uint
}

// CommentRepository 评论持久化
type CommentRepository interface {
	FindByArticle(ctx context.Context, articleID uint, filter StatusFilter) ([]*models.Comment, error)
	FindByID(ctx context.Context, id uint) (*models.Comment, error)
	Save(ctx context.Context, comment *models.Comment) error
	// Delete 删除评论，并在同一事务中将直接子评论的 parent_id 置空
	Delete(ctx context.Context, id uint) error
}

// GormCommentRepository 基于 GORM 的评论仓储
type GormCommentRepository struct {
	db *gorm.DB
}

func NewGormCommentRepository(db *gorm.DB) *GormCommentRepository {
	return &GormCommentRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *GormCommentRepository) WithTx(tx *gorm.DB) *GormCommentRepository {
	return &GormCommentRepository{db: tx}
}

func (r *GormCommentRepository) FindByArticle(ctx context.Context, articleID uint, filter StatusFilter) ([]*models.Comment, error) {
	query := r.db.WithContext(ctx).Where("article_id = ?", articleID)

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, s.String())
		}
		cond := r.db.Where("status IN ?", statuses)
		if filter.IncludeAuthorID != nil {
			cond = cond.Or("author_id = ?", *filter.IncludeAuthorID)
		}
		query = query.Where(cond)
	}

	var comments []*models.Comment
	if err := query.Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("查询评论失败: %w", err)
	}
	return comments, nil
}

func (r *GormCommentRepository) FindByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).First(&comment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询评论失败: %w", err)
	}
	return &comment, nil
}

func (r *GormCommentRepository) Save(ctx context.Context, comment *models.Comment) error {
	db := r.db.WithContext(ctx)
	var err error
	if comment.IsPersisted() {
		err = db.Save(comment).Error
	} else {
		err = db.Create(comment).Error
	}
	if err != nil {
		return fmt.Errorf("保存评论失败: %w", err)
	}
	return nil
}

func (r *GormCommentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Comment{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return fmt.Errorf("解除子评论关联失败: %w", err)
		}
		result := tx.Delete(&models.Comment{}, id)
		if result.Error != nil {
			return fmt.Errorf("删除评论失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// NullAuthor 将用户发表的评论的 author_id 置空，用于删除用户
func (r *GormCommentRepository) NullAuthor(ctx context.Context, principalID uint) error {
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("author_id = ?", principalID).Update("author_id", nil).Error
	if err != nil {
		return fmt.Errorf("解除评论作者关联失败: %w", err)
	}
	return nil
}
