package services

import (
	"context"

	"newsportal/internal/models"
)

// ModerationStateMachine 评论审核状态机
//
// 三个状态之间可任意切换，只要操作者拥有 comment-moderate 权限；
// 切换到当前状态视为成功的空操作。
type ModerationStateMachine struct {
	guard *AuthorizationGuard
}

// NewModerationStateMachine 创建状态机
func NewModerationStateMachine(guard *AuthorizationGuard) *ModerationStateMachine {
	return &ModerationStateMachine{guard: guard}
}

// Transition 修改评论状态，changed 为 false 表示无需写库
func (m *ModerationStateMachine) Transition(ctx context.Context, comment *models.Comment, to models.CommentStatus, actor *Principal) (result *models.Comment, changed bool, err error) {
	if err := m.guard.Check(ctx, actor, RequirePermission(models.PermissionCommentModerate)); err != nil {
		return nil, false, err
	}
	return m.apply(comment, to)
}

// apply 校验并切换状态，调用方已完成授权
func (m *ModerationStateMachine) apply(comment *models.Comment, to models.CommentStatus) (*models.Comment, bool, error) {
	if !to.IsValid() {
		return nil, false, newValidationError("status", "无效的评论状态")
	}
	if comment.Status == to {
		return comment, false, nil
	}
	comment.Status = to
	return comment, true, nil
}
