package models

// Comment 新闻评论（评论树节点）
//
// AuthorID 在作者被删除时置空，ParentID 在父评论被删除时置空，均不级联删除。
// 父评论必须属于同一篇新闻。
type Comment struct {
	BaseModel
	ArticleID uint          `json:"article_id" gorm:"not null;index"`
	AuthorID  *uint         `json:"author_id" gorm:"index"`
	ParentID  *uint         `json:"parent_id" gorm:"index"`
	Text      string        `json:"text" gorm:"type:text;not null"`
	Status    CommentStatus `json:"status" gorm:"type:varchar(20);not null;index"`

	// 数据库层兜底约束，业务层仍在同一事务中显式置空
	Author *User    `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL"`
	Parent *Comment `json:"-" gorm:"foreignKey:ParentID;constraint:OnDelete:SET NULL"`

	// 由评论树构建器填充，不落库
	Children []*Comment `json:"children,omitempty" gorm:"-"`
}

// TableName 表名
func (c *Comment) TableName() string {
	return "comments"
}

// IsRoot 是否为根评论
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// IsAuthoredBy 是否由指定用户发表
func (c *Comment) IsAuthoredBy(userID uint) bool {
	return c.AuthorID != nil && *c.AuthorID == userID
}
