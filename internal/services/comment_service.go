package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"newsportal/internal/models"
	"newsportal/pkg/logger"

	"github.com/sirupsen/logrus"
)

// DefaultCommentMaxLength 评论内容默认最大字符数
const DefaultCommentMaxLength = 2000

// CommentService 评论提交、审核、删除与读取
type CommentService struct {
	repo       CommentRepository
	articles   ArticleLookup
	guard      *AuthorizationGuard
	moderation *ModerationStateMachine
	events     CommentEventPublisher
	maxLength  int
}

// NewCommentService 创建评论服务，events 为 nil 时不发布事件
func NewCommentService(repo CommentRepository, articles ArticleLookup, guard *AuthorizationGuard, events CommentEventPublisher, maxLength int) *CommentService {
	if events == nil {
		events = NopCommentEventPublisher{}
	}
	if maxLength <= 0 {
		maxLength = DefaultCommentMaxLength
	}
	return &CommentService{
		repo:       repo,
		articles:   articles,
		guard:      guard,
		moderation: NewModerationStateMachine(guard),
		events:     events,
		maxLength:  maxLength,
	}
}

// ========== 写操作 ==========

// Submit 发表评论，新评论为待审核状态
func (s *CommentService) Submit(ctx context.Context, principal *Principal, articleID uint, text string, parentID *uint) (*models.Comment, error) {
	if err := requireActive(principal); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, newValidationError("text", "评论内容不能为空")
	}
	if utf8.RuneCountInString(text) > s.maxLength {
		return nil, newValidationError("text", "评论内容不能超过%d个字符", s.maxLength)
	}

	if err := s.requireArticle(ctx, articleID); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.repo.FindByID(ctx, *parentID)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("父评论 %d 不存在: %w", *parentID, ErrConflict)
		}
		if err != nil {
			return nil, err
		}
		if parent.ArticleID != articleID {
			return nil, newValidationError("parent_id", "父评论不属于该新闻")
		}
	}

	authorID := principal.ID
	comment := &models.Comment{
		ArticleID: articleID,
		AuthorID:  &authorID,
		ParentID:  parentID,
		Text:      text,
		Status:    models.CommentPending,
	}
	if err := s.repo.Save(ctx, comment); err != nil {
		return nil, err
	}

	commentsSubmitted.Inc()
	logger.GetLogger().WithFields(logrus.Fields{
		"comment_id": comment.ID,
		"article_id": articleID,
		"author_id":  principal.ID,
	}).Info("评论已提交")
	s.publish(ctx, CommentEventSubmitted, comment, principal)

	return comment, nil
}

// Moderate 修改评论审核状态，先鉴权再查找评论
func (s *CommentService) Moderate(ctx context.Context, principal *Principal, commentID uint, status models.CommentStatus) (*models.Comment, error) {
	if err := s.authorizeModeration(ctx, principal); err != nil {
		return nil, err
	}

	comment, err := s.repo.FindByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	previous := comment.Status
	comment, changed, err := s.moderation.apply(comment, status)
	if err != nil {
		return nil, err
	}
	if !changed {
		return comment, nil
	}

	if err := s.repo.Save(ctx, comment); err != nil {
		return nil, err
	}

	commentTransitions.WithLabelValues(comment.Status.String()).Inc()
	logger.GetLogger().WithFields(logrus.Fields{
		"comment_id":   comment.ID,
		"from":         previous.String(),
		"to":           comment.Status.String(),
		"moderator_id": principal.ID,
	}).Info("评论状态已变更")
	s.publish(ctx, CommentEventModerated, comment, principal)

	return comment, nil
}

// Delete 删除评论，子评论提升为根评论
func (s *CommentService) Delete(ctx context.Context, principal *Principal, commentID uint) error {
	if err := s.authorizeModeration(ctx, principal); err != nil {
		return err
	}

	comment, err := s.repo.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, commentID); err != nil {
		return err
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"comment_id":   commentID,
		"article_id":   comment.ArticleID,
		"moderator_id": principal.ID,
	}).Info("评论已删除")
	s.publish(ctx, CommentEventDeleted, comment, principal)

	return nil
}

// ========== 读操作 ==========

// ListForArticle 返回新闻的评论森林
//
// 拥有审核权限的读者看到全部状态；其他登录用户看到已通过的评论以及自己的评论；
// 匿名读者只看到已通过的评论。
func (s *CommentService) ListForArticle(ctx context.Context, articleID uint, viewer *Principal) ([]*models.Comment, error) {
	if err := s.requireArticle(ctx, articleID); err != nil {
		return nil, err
	}

	filter, err := s.visibilityFilter(ctx, viewer)
	if err != nil {
		return nil, err
	}

	flat, err := s.repo.FindByArticle(ctx, articleID, filter)
	if err != nil {
		return nil, err
	}
	return BuildCommentTree(flat), nil
}

func (s *CommentService) visibilityFilter(ctx context.Context, viewer *Principal) (StatusFilter, error) {
	public := StatusFilter{Statuses: []models.CommentStatus{models.CommentApproved}}
	if viewer == nil {
		return public, nil
	}

	decision, err := s.guard.Authorize(ctx, viewer, RequirePermission(models.PermissionCommentModerate))
	if err != nil {
		return StatusFilter{}, err
	}
	if decision == Allowed {
		return StatusFilter{}, nil
	}

	viewerID := viewer.ID
	public.IncludeAuthorID = &viewerID
	return public, nil
}

// requireActive 要求已登录且账号处于激活状态
func requireActive(principal *Principal) error {
	if principal == nil {
		return ErrUnauthenticated
	}
	if principal.Disabled {
		return ErrDenied
	}
	return nil
}

// authorizeModeration 审核和删除共用的前置检查，在查找评论之前执行
func (s *CommentService) authorizeModeration(ctx context.Context, principal *Principal) error {
	if err := requireActive(principal); err != nil {
		return err
	}
	return s.guard.Check(ctx, principal, RequirePermission(models.PermissionCommentModerate))
}

func (s *CommentService) requireArticle(ctx context.Context, articleID uint) error {
	exists, err := s.articles.ArticleExists(ctx, articleID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("新闻 %d: %w", articleID, ErrNotFound)
	}
	return nil
}

func (s *CommentService) publish(ctx context.Context, eventType string, comment *models.Comment, actor *Principal) {
	s.events.PublishCommentEvent(ctx, CommentEvent{
		Type:       eventType,
		CommentID:  comment.ID,
		ArticleID:  comment.ArticleID,
		ActorID:    actor.ID,
		Status:     comment.Status.String(),
		OccurredAt: time.Now(),
	})
}
