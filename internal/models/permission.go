package models

// Permission 权限模型，权限目录随部署发布，运行时不新增
type Permission struct {
	BaseModel
	Slug        string `gorm:"uniqueIndex;size:100;not null" json:"slug"` // 权限标识，如 "comment-moderate"
	Name        string `gorm:"size:100;not null" json:"name"`             // 显示名称
	Description string `gorm:"size:255" json:"description"`
}

// 权限目录
const (
	PermissionViewAdminPanel  = "view-admin-panel"
	PermissionCreateNews      = "create-news"
	PermissionEditNews        = "edit-news"
	PermissionDeleteNews      = "delete-news"
	PermissionCommentModerate = "comment-moderate"
)

// PermissionCatalog 返回内置权限目录（种子数据使用）
func PermissionCatalog() []Permission {
	return []Permission{
		{Slug: PermissionViewAdminPanel, Name: "访问后台", Description: "进入管理后台"},
		{Slug: PermissionCreateNews, Name: "创建新闻", Description: "发布新的新闻稿件"},
		{Slug: PermissionEditNews, Name: "编辑新闻", Description: "修改已有新闻"},
		{Slug: PermissionDeleteNews, Name: "删除新闻", Description: "删除新闻"},
		{Slug: PermissionCommentModerate, Name: "审核评论", Description: "审核、驳回和删除评论"},
	}
}
