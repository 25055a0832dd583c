package handlers

import (
	"newsportal/internal/services"
	"newsportal/pkg/pagination"
	"newsportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type CreateRoleRequest struct {
	Slug        string `json:"slug" binding:"required,min=2,max=50"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"max=255"`
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"max=255"`
}

type SyncPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type RoleHandler struct {
	service *services.RoleService
}

func NewRoleHandler(service *services.RoleService) *RoleHandler {
	return &RoleHandler{
		service: service,
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建角色
func (h *RoleHandler) Create(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	role, err := h.service.Create(c.Request.Context(), req.Slug, req.Name, req.Description)
	if err != nil {
		respondError(c, err, "创建失败")
		return
	}
	response.Success(c, role)
}

// GetByID 获取角色
func (h *RoleHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	role, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}
	response.Success(c, role)
}

// List 分页获取角色
func (h *RoleHandler) List(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	roles, total, err := h.service.List(c.Request.Context(), pageParams)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, roles, pageInfo)
}

// Update 修改角色名称和描述，slug 不可修改
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	role, err := h.service.Update(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		respondError(c, err, "更新失败")
		return
	}
	response.Success(c, role)
}

// Delete 删除角色
func (h *RoleHandler) Delete(c *gin.Context) {
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

// ========== 权限管理方法 ==========

// SyncPermissions 整体替换角色权限
func (h *RoleHandler) SyncPermissions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req SyncPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	role, err := h.service.SyncPermissions(c.Request.Context(), id, req.Permissions)
	if err != nil {
		respondError(c, err, "分配权限失败")
		return
	}
	response.Success(c, role)
}
