package models

// News 新闻稿件，评论子系统只需要判断其是否存在
type News struct {
	BaseModel
	Title     string `json:"title" gorm:"not null;size:255"`
	Slug      string `json:"slug" gorm:"uniqueIndex;not null;size:255"`
	Published bool   `json:"published" gorm:"default:false"`
}

// TableName 表名
func (n *News) TableName() string {
	return "news"
}
