package services

import "newsportal/internal/models"

// BuildCommentTree 将单篇新闻的扁平评论列表组装为评论森林
//
// 先按 ID 建立索引，再顺序扫描一次挂接子节点，兄弟节点保持输入顺序。
// 父评论不在输入中（已删除或被状态过滤）的节点作为根节点返回。
// 返回的节点复用输入中的指针，Children 会被重置。
func BuildCommentTree(flat []*models.Comment) []*models.Comment {
	index := make(map[uint]*models.Comment, len(flat))
	for _, c := range flat {
		if c == nil {
			continue
		}
		c.Children = nil
		if _, dup := index[c.ID]; !dup {
			index[c.ID] = c
		}
	}

	roots := make([]*models.Comment, 0)
	for _, c := range flat {
		if c == nil || index[c.ID] != c {
			continue
		}
		if c.ParentID != nil && *c.ParentID != c.ID {
			if parent, ok := index[*c.ParentID]; ok {
				parent.Children = append(parent.Children, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}

// CountCommentTree 统计森林中的节点总数
func CountCommentTree(forest []*models.Comment) int {
	n := 0
	stack := append([]*models.Comment(nil), forest...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, c.Children...)
	}
	return n
}
