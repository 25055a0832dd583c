package models

import "time"

// Role 角色模型，Slug 创建后不可修改
type Role struct {
	BaseModel
	Slug        string `gorm:"uniqueIndex;size:50;not null" json:"slug"` // 角色标识，如 "admin"
	Name        string `gorm:"size:100;not null" json:"name"`            // 显示名称，允许修改
	Description string `gorm:"size:255" json:"description"`
	IsSystem    bool   `gorm:"default:false" json:"is_system"` // 系统角色（不可删除）

	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
}

// 系统预定义角色
const (
	RoleAdmin     = "admin"     // 超级管理员，跳过权限检查
	RoleModerator = "moderator" // 评论审核员
	RoleEditor    = "editor"    // 新闻编辑
	RoleUser      = "user"      // 注册用户，默认无权限
)

// RolePermission 角色权限关联表
type RolePermission struct {
	RoleID       uint      `gorm:"primaryKey" json:"role_id"`
	PermissionID uint      `gorm:"primaryKey" json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}
