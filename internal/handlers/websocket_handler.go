package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"newsportal/internal/middleware"
	"newsportal/internal/models"
	"newsportal/internal/services"
	"newsportal/pkg/cache"
	"newsportal/pkg/logger"
	"newsportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 300 * time.Second
	wsPingInterval = 60 * time.Second
)

// ModerationFeedHandler 向审核员推送评论事件的WebSocket处理器
type ModerationFeedHandler struct {
	upgrader websocket.Upgrader
	cache    *cache.RedisCache
	auth     *middleware.AuthMiddleware
	guard    *services.AuthorizationGuard
	log      *logrus.Logger
}

// NewModerationFeedHandler 创建处理器，redisCache 为 nil 时推送不可用
func NewModerationFeedHandler(redisCache *cache.RedisCache, auth *middleware.AuthMiddleware, guard *services.AuthorizationGuard, allowedOrigins []string) *ModerationFeedHandler {
	return &ModerationFeedHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 32,
		},
		cache: redisCache,
		auth:  auth,
		guard: guard,
		log:   logger.GetLogger(),
	}
}

// Feed 建立连接，token 通过查询参数传递（WebSocket不支持自定义header）
func (h *ModerationFeedHandler) Feed(c *gin.Context) {
	if h.cache == nil {
		response.Error(c, http.StatusServiceUnavailable, "实时推送未启用")
		return
	}

	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "缺少认证令牌")
		return
	}
	principal, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			response.Unauthorized(c, "无效的令牌")
			return
		}
		respondError(c, err, "加载用户失败")
		return
	}
	if err := h.guard.Check(c.Request.Context(), principal, services.RequirePermission(models.PermissionCommentModerate)); err != nil {
		respondError(c, err, "权限检查失败")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.log.WithField("user_id", principal.ID).Info("审核推送连接已建立")
	h.serve(conn)
	h.log.WithField("user_id", principal.ID).Info("审核推送连接已关闭")
}

func (h *ModerationFeedHandler) serve(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.cache.Subscribe(ctx, services.CommentEventsChannel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.WithError(err).Error("Failed to subscribe to comment events")
		return
	}

	go h.readPump(conn, cancel)

	ch := pubsub.Channel()
	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// 事件在发布时已是JSON，原样转发
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.log.WithError(err).Warn("Failed to send event to client")
				return
			}
		}
	}
}

// readPump 只处理 pong 和关闭帧
func (h *ModerationFeedHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warn("WebSocket unexpected close")
			}
			return
		}
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || matchOrigin(origin, allowed) {
				return true
			}
		}
		logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
		return false
	}
}

// matchOrigin 支持精确匹配和 *.example.com 形式的子域名通配
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}
	if !strings.HasPrefix(allowed, "*.") {
		return false
	}

	domain := allowed[2:]
	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
