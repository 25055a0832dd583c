package handlers

import (
	"newsportal/internal/services"
	"newsportal/pkg/pagination"
	"newsportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type PermissionHandler struct {
	service *services.PermissionService
}

func NewPermissionHandler(service *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

// List 分页获取权限目录
func (h *PermissionHandler) List(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	permissions, total, err := h.service.List(c.Request.Context(), pageParams)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, permissions, pageInfo)
}
