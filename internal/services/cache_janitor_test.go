package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheJanitorPurges(t *testing.T) {
	store := newStubStore()
	store.set(1, "edit-news")
	c := NewPermissionCache(store, nil, PermissionCacheOptions{})
	_, err := c.Resolve(context.Background(), 1)
	require.NoError(t, err)

	j := NewCacheJanitor(c, "@every 1h")
	require.NoError(t, j.Start())
	assert.Error(t, j.Start())
	defer j.Stop()

	j.run()
	assert.Equal(t, 0, c.LocalLen())
}

func TestCacheJanitorInvalidSpec(t *testing.T) {
	j := NewCacheJanitor(NewPermissionCache(newStubStore(), nil, PermissionCacheOptions{}), "not a spec")
	assert.Error(t, j.Start())
	j.Stop()
}
