package services

import (
	"context"
	"time"

	"newsportal/pkg/cache"
	"newsportal/pkg/logger"

	"github.com/sirupsen/logrus"
)

// CommentEventsChannel 评论事件频道名
const CommentEventsChannel = "comment-events"

// 评论事件类型
const (
	CommentEventSubmitted = "comment.submitted"
	CommentEventModerated = "comment.moderated"
	CommentEventDeleted   = "comment.deleted"
)

// CommentEvent 评论写入提交后发布的事件
type CommentEvent struct {
	Type       string    `json:"type"`
	CommentID  uint      `json:"comment_id"`
	ArticleID  uint      `json:"article_id"`
	ActorID    uint      `json:"actor_id"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CommentEventPublisher 评论事件发布，失败只记录日志
type CommentEventPublisher interface {
	PublishCommentEvent(ctx context.Context, event CommentEvent)
}

// RedisCommentEventPublisher 通过 Redis 发布订阅广播评论事件
type RedisCommentEventPublisher struct {
	cache *cache.RedisCache
}

func NewRedisCommentEventPublisher(c *cache.RedisCache) *RedisCommentEventPublisher {
	return &RedisCommentEventPublisher{cache: c}
}

func (p *RedisCommentEventPublisher) PublishCommentEvent(ctx context.Context, event CommentEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := p.cache.Publish(ctx, CommentEventsChannel, event); err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"type":       event.Type,
			"comment_id": event.CommentID,
		}).WithError(err).Warn("发布评论事件失败")
	}
}

// NopCommentEventPublisher 未启用Redis时使用
type NopCommentEventPublisher struct{}

func (NopCommentEventPublisher) PublishCommentEvent(context.Context, CommentEvent) {}

// NewCommentEventPublisher 根据是否配置Redis选择实现
func NewCommentEventPublisher(c *cache.RedisCache) CommentEventPublisher {
	if c == nil {
		return NopCommentEventPublisher{}
	}
	return NewRedisCommentEventPublisher(c)
}
