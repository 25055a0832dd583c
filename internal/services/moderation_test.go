package services

import (
	"context"
	"testing"

	"newsportal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	store := newStubStore()
	store.set(2, models.PermissionCommentModerate)
	m := NewModerationStateMachine(NewAuthorizationGuard(NewPermissionCache(store, nil, PermissionCacheOptions{})))
	ctx := context.Background()

	user := NewPrincipal(1, models.RoleUser)
	mod := NewPrincipal(2, models.RoleModerator)
	admin := NewPrincipal(3, models.RoleAdmin)

	comment := &models.Comment{BaseModel: models.BaseModel{ID: 5}, Status: models.CommentPending}

	_, _, err := m.Transition(ctx, comment, models.CommentApproved, user)
	assert.ErrorIs(t, err, ErrDenied)
	assert.Equal(t, models.CommentPending, comment.Status)

	_, _, err = m.Transition(ctx, comment, models.CommentApproved, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	got, changed, err := m.Transition(ctx, comment, models.CommentRejected, admin)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.CommentRejected, got.Status)

	got, changed, err = m.Transition(ctx, comment, models.CommentRejected, mod)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.CommentRejected, got.Status)

	_, _, err = m.Transition(ctx, comment, models.CommentStatus(9), mod)
	assert.True(t, IsValidationError(err))
}
