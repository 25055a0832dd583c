package handlers

import (
	"context"
	"net/http"
	"time"

	"newsportal/pkg/cache"
	"newsportal/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SystemHandler 健康检查
type SystemHandler struct {
	db    *gorm.DB
	cache *cache.RedisCache
}

// NewSystemHandler 创建系统处理器，redisCache 可以为 nil
func NewSystemHandler(db *gorm.DB, redisCache *cache.RedisCache) *SystemHandler {
	return &SystemHandler{db: db, cache: redisCache}
}

// Health 检查数据库和Redis连通性
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	components := map[string]string{"database": "ok"}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		components["database"] = "unavailable"
		healthy = false
	}
	if h.cache == nil {
		components["redis"] = "disabled"
	} else if err := h.cache.Ping(ctx); err != nil {
		components["redis"] = "unavailable"
		healthy = false
	} else {
		components["redis"] = "ok"
	}

	data := map[string]interface{}{
		"status":     "ok",
		"timestamp":  time.Now(),
		"service":    "newsportal",
		"components": components,
	}
	if !healthy {
		data["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "服务不可用",
			Data:    data,
		})
		return
	}
	response.Success(c, data)
}

// Ping 存活探针
func (h *SystemHandler) Ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
