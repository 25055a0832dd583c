package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authorizationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newsportal",
		Name:      "authorization_decisions_total",
		Help:      "授权判定次数",
	}, []string{"kind", "decision"})

	permissionCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newsportal",
		Name:      "permission_cache_lookups_total",
		Help:      "权限缓存查询次数，按命中层级统计",
	}, []string{"tier"})

	permissionCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "newsportal",
		Name:      "permission_cache_invalidations_total",
		Help:      "权限缓存失效次数",
	})

	commentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newsportal",
		Name:      "comment_transitions_total",
		Help:      "评论审核状态变更次数，不含空操作",
	}, []string{"to"})

	commentsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "newsportal",
		Name:      "comments_submitted_total",
		Help:      "新提交的评论数",
	})
)
