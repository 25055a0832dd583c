package services

import (
	"testing"

	"newsportal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id uint, parent *uint) *models.Comment {
	return &models.Comment{BaseModel: models.BaseModel{ID: id}, ArticleID: testArticleID, ParentID: parent}
}

func TestBuildCommentTreeDanglingParent(t *testing.T) {
	flat := []*models.Comment{node(1, nil), node(2, uintPtr(1)), node(3, uintPtr(99))}

	forest := BuildCommentTree(flat)

	assert.Equal(t, []uint{1, 3}, rootIDs(forest))
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, uint(2), forest[0].Children[0].ID)
	assert.Empty(t, forest[1].Children)
	assert.Equal(t, len(flat), CountCommentTree(forest))
}

func TestBuildCommentTreePreservesSiblingOrder(t *testing.T) {
	flat := []*models.Comment{
		node(1, nil),
		node(5, uintPtr(1)),
		node(2, nil),
		node(3, uintPtr(1)),
		node(4, uintPtr(3)),
		node(6, uintPtr(1)),
	}

	forest := BuildCommentTree(flat)

	assert.Equal(t, []uint{1, 2}, rootIDs(forest))
	assert.Equal(t, []uint{5, 3, 6}, rootIDs(forest[0].Children))
	assert.Equal(t, []uint{4}, rootIDs(forest[0].Children[1].Children))
	assert.Equal(t, len(flat), CountCommentTree(forest))
}

func TestBuildCommentTreeRootCount(t *testing.T) {
	// 根节点数 = 父为空或父不在输入中的节点数
	flat := []*models.Comment{
		node(1, nil),
		node(2, uintPtr(1)),
		node(3, uintPtr(2)),
		node(4, uintPtr(40)),
		node(5, nil),
		node(6, uintPtr(41)),
		node(7, uintPtr(5)),
	}

	forest := BuildCommentTree(flat)

	assert.Len(t, forest, 4)
	assert.Equal(t, 7, CountCommentTree(forest))
}

func TestBuildCommentTreeDeepChain(t *testing.T) {
	const depth = 500
	flat := []*models.Comment{node(1, nil)}
	for i := uint(2); i <= depth; i++ {
		flat = append(flat, node(i, uintPtr(i-1)))
	}

	forest := BuildCommentTree(flat)

	require.Len(t, forest, 1)
	assert.Equal(t, depth, CountCommentTree(forest))
}

func TestBuildCommentTreeEdgeCases(t *testing.T) {
	assert.Empty(t, BuildCommentTree(nil))

	self := node(7, uintPtr(7))
	forest := BuildCommentTree([]*models.Comment{self, nil})
	assert.Equal(t, []uint{7}, rootIDs(forest))
	assert.Empty(t, forest[0].Children)
}

func TestBuildCommentTreeIsRepeatable(t *testing.T) {
	flat := []*models.Comment{node(1, nil), node(2, uintPtr(1))}

	BuildCommentTree(flat)
	forest := BuildCommentTree(flat)

	require.Len(t, forest, 1)
	assert.Len(t, forest[0].Children, 1)
}
