package handlers

import (
	"newsportal/internal/services"
	"newsportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type SyncRolesRequest struct {
	Roles []string `json:"roles"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive locked"`
}

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// GetByID 获取用户
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}
	response.Success(c, user)
}

// UpdateStatus 修改账号状态
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.service.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err, "更新状态失败")
		return
	}
	response.Success(c, user)
}

// Delete 删除用户，其评论保留为匿名
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ========== 角色管理方法 ==========

// SyncRoles 整体替换用户角色
func (h *UserHandler) SyncRoles(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req SyncRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.service.SyncRoles(c.Request.Context(), id, req.Roles)
	if err != nil {
		respondError(c, err, "分配角色失败")
		return
	}
	response.Success(c, user)
}

// AttachRole 为用户添加角色
func (h *UserHandler) AttachRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.AttachRole(c.Request.Context(), id, c.Param("role")); err != nil {
		respondError(c, err, "添加角色失败")
		return
	}
	response.SuccessWithMessage(c, "添加成功", nil)
}

// DetachRole 移除用户角色
func (h *UserHandler) DetachRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DetachRole(c.Request.Context(), id, c.Param("role")); err != nil {
		respondError(c, err, "移除角色失败")
		return
	}
	response.SuccessWithMessage(c, "移除成功", nil)
}
