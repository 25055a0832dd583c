package handlers

import (
	"newsportal/internal/middleware"
	"newsportal/internal/models"
	"newsportal/internal/services"
	"newsportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type SubmitCommentRequest struct {
	Text     string `json:"text" binding:"required"`
	ParentID *uint  `json:"parent_id"`
}

type ModerateCommentRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected"`
}

type CommentHandler struct {
	service *services.CommentService
}

func NewCommentHandler(service *services.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// List 获取新闻的评论树
func (h *CommentHandler) List(c *gin.Context) {
	articleID, ok := parseID(c, "id")
	if !ok {
		return
	}

	forest, err := h.service.ListForArticle(c.Request.Context(), articleID, middleware.GetPrincipal(c))
	if err != nil {
		respondError(c, err, "查询评论失败")
		return
	}
	response.Success(c, forest)
}

// Submit 发表评论或回复
func (h *CommentHandler) Submit(c *gin.Context) {
	articleID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req SubmitCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	comment, err := h.service.Submit(c.Request.Context(), middleware.GetPrincipal(c), articleID, req.Text, req.ParentID)
	if err != nil {
		respondError(c, err, "发表评论失败")
		return
	}
	response.SuccessWithMessage(c, "评论已提交，等待审核", comment)
}

// Moderate 修改评论审核状态
func (h *CommentHandler) Moderate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req ModerateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	status, err := models.ParseCommentStatus(req.Status)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	comment, err := h.service.Moderate(c.Request.Context(), middleware.GetPrincipal(c), id, status)
	if err != nil {
		respondError(c, err, "审核评论失败")
		return
	}
	response.Success(c, comment)
}

// Delete 删除评论，子评论保留并提升为根评论
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.GetPrincipal(c), id); err != nil {
		respondError(c, err, "删除评论失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}
