package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newsportal/internal/database"
	"newsportal/internal/models"
	"newsportal/internal/services"
	"newsportal/pkg/cache"
	"newsportal/pkg/config"
	"newsportal/pkg/jwt"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testArticleID uint = 10

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type commentJSON struct {
	ID       uint           `json:"id"`
	ParentID *uint          `json:"parent_id"`
	Status   string         `json:"status"`
	Text     string         `json:"text"`
	Children []*commentJSON `json:"children"`
}

type testServer struct {
	t      *testing.T
	deps   *Dependencies
	engine *gin.Engine
}

func testConfig() *config.Config {
	return &config.Config{
		CORS: config.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		},
		Comment: config.CommentConfig{MaxLength: 100},
		PermissionCache: config.PermissionCacheConfig{
			Size:      100,
			LocalTTL:  time.Minute,
			RemoteTTL: time.Minute,
		},
	}
}

func newTestServer(t *testing.T, redisCache *cache.RedisCache) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	deps := NewDependencies(testConfig(), db, redisCache, jwt.NewJWTManager("test-secret", time.Hour))

	ctx := context.Background()
	require.NoError(t, deps.Permissions.EnsureCatalog(ctx))
	for _, r := range []struct {
		role  models.Role
		perms []string
	}{
		{models.Role{Slug: models.RoleAdmin, Name: "管理员", IsSystem: true}, nil},
		{models.Role{Slug: models.RoleUser, Name: "注册用户", IsSystem: true}, nil},
		{models.Role{Slug: models.RoleModerator, Name: "审核员"}, []string{models.PermissionCommentModerate, models.PermissionViewAdminPanel}},
	} {
		_, err := deps.Roles.EnsureRole(ctx, r.role, r.perms)
		require.NoError(t, err)
	}
	require.NoError(t, db.Create(&models.News{BaseModel: models.BaseModel{ID: testArticleID}, Title: "今日要闻", Slug: "today"}).Error)

	return &testServer{t: t, deps: deps, engine: SetupRouter(deps)}
}

// user 创建用户并返回其ID和token
func (s *testServer) user(username string, roles ...string) (uint, string) {
	s.t.Helper()
	ctx := context.Background()
	u, err := s.deps.Users.Register(ctx, username, username+"@example.com", "secret123", "测试"+username)
	require.NoError(s.t, err)
	for _, role := range roles {
		require.NoError(s.t, s.deps.Users.AttachRole(ctx, u.ID, role))
	}
	token, err := s.deps.JWT.GenerateToken(u.ID, u.Username)
	require.NoError(s.t, err)
	return u.ID, token
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) listComments(token string) []*commentJSON {
	s.t.Helper()
	w, env := s.do(http.MethodGet, fmt.Sprintf("/api/v1/articles/%d/comments", testArticleID), token, nil)
	require.Equal(s.t, http.StatusOK, w.Code)
	var forest []*commentJSON
	if len(env.Data) > 0 {
		require.NoError(s.t, json.Unmarshal(env.Data, &forest))
	}
	return forest
}

func TestCommentModerationFlow(t *testing.T) {
	s := newTestServer(t, nil)
	_, alice := s.user("alice", models.RoleUser)
	_, mod := s.user("mod", models.RoleModerator)

	w, env := s.do(http.MethodPost, fmt.Sprintf("/api/v1/articles/%d/comments", testArticleID), alice, map[string]interface{}{"text": "写得好"})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var created commentJSON
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)

	// 待审核评论只对作者本人和审核员可见
	assert.Empty(t, s.listComments(""))
	assert.Len(t, s.listComments(alice), 1)
	assert.Len(t, s.listComments(mod), 1)

	path := fmt.Sprintf("/api/v1/comments/%d/status", created.ID)
	w, _ = s.do(http.MethodPut, path, alice, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(http.MethodPut, path, mod, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var moderated commentJSON
	require.NoError(t, json.Unmarshal(env.Data, &moderated))
	assert.Equal(t, "approved", moderated.Status)

	anon := s.listComments("")
	require.Len(t, anon, 1)
	assert.Equal(t, "approved", anon[0].Status)
}

func TestReplyTreeOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	_, alice := s.user("alice", models.RoleUser)
	_, mod := s.user("mod", models.RoleModerator)
	path := fmt.Sprintf("/api/v1/articles/%d/comments", testArticleID)

	_, env := s.do(http.MethodPost, path, alice, map[string]interface{}{"text": "根评论"})
	var root commentJSON
	require.NoError(t, json.Unmarshal(env.Data, &root))
	w, env := s.do(http.MethodPost, path, alice, map[string]interface{}{"text": "回复", "parent_id": root.ID})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var reply commentJSON
	require.NoError(t, json.Unmarshal(env.Data, &reply))

	forest := s.listComments(mod)
	require.Len(t, forest, 1)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, reply.ID, forest[0].Children[0].ID)

	w, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", root.ID), mod, nil)
	require.Equal(t, http.StatusOK, w.Code)

	forest = s.listComments(mod)
	require.Len(t, forest, 1)
	assert.Equal(t, reply.ID, forest[0].ID)
	assert.Nil(t, forest[0].ParentID)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t, nil)
	_, alice := s.user("alice", models.RoleUser)
	_, mod := s.user("mod", models.RoleModerator)
	_, admin := s.user("root", models.RoleAdmin)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{"missing token", http.MethodPost, "/api/v1/articles/10/comments", "", map[string]string{"text": "hi"}, http.StatusUnauthorized},
		{"bad token", http.MethodPost, "/api/v1/articles/10/comments", "garbage", map[string]string{"text": "hi"}, http.StatusUnauthorized},
		{"empty text", http.MethodPost, "/api/v1/articles/10/comments", alice, map[string]string{"text": "   "}, http.StatusBadRequest},
		{"too long", http.MethodPost, "/api/v1/articles/10/comments", alice, map[string]string{"text": strings.Repeat("长", 101)}, http.StatusBadRequest},
		{"unknown article", http.MethodPost, "/api/v1/articles/999/comments", alice, map[string]string{"text": "hi"}, http.StatusNotFound},
		{"unknown parent", http.MethodPost, "/api/v1/articles/10/comments", alice, map[string]interface{}{"text": "hi", "parent_id": 77}, http.StatusConflict},
		{"bad article id", http.MethodGet, "/api/v1/articles/abc/comments", "", nil, http.StatusBadRequest},
		{"moderate as user", http.MethodPut, "/api/v1/comments/1/status", alice, map[string]string{"status": "approved"}, http.StatusForbidden},
		{"moderate unknown", http.MethodPut, "/api/v1/comments/404/status", mod, map[string]string{"status": "approved"}, http.StatusNotFound},
		{"moderate bad status", http.MethodPut, "/api/v1/comments/404/status", mod, map[string]string{"status": "spam"}, http.StatusBadRequest},
		{"delete as user", http.MethodDelete, "/api/v1/comments/1", alice, nil, http.StatusForbidden},
		{"roles as moderator", http.MethodGet, "/api/v1/roles", mod, nil, http.StatusForbidden},
		{"roles as admin", http.MethodGet, "/api/v1/roles", admin, nil, http.StatusOK},
		{"permissions as moderator", http.MethodGet, "/api/v1/permissions", mod, nil, http.StatusOK},
		{"permissions as user", http.MethodGet, "/api/v1/permissions", alice, nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := s.do(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.want, w.Code, env.Message)
			assert.Equal(t, tc.want, env.Code)
		})
	}
}

func TestSystemRoleCannotBeDeleted(t *testing.T) {
	s := newTestServer(t, nil)
	_, admin := s.user("root", models.RoleAdmin)

	var role models.Role
	require.NoError(t, s.deps.DB.Where("slug = ?", models.RoleUser).First(&role).Error)

	w, _ := s.do(http.MethodDelete, fmt.Sprintf("/api/v1/roles/%d", role.ID), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoleGrantTakesEffectImmediately(t *testing.T) {
	s := newTestServer(t, nil)
	carolID, carol := s.user("carol", models.RoleUser)
	_, admin := s.user("root", models.RoleAdmin)

	w, _ := s.do(http.MethodGet, "/api/v1/permissions", carol, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/roles", carolID), admin, map[string][]string{"roles": {models.RoleUser, models.RoleModerator}})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	w, _ = s.do(http.MethodGet, "/api/v1/permissions", carol, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/users/%d/roles/%s", carolID, models.RoleModerator), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/permissions", carol, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLockedUserIsRejected(t *testing.T) {
	s := newTestServer(t, nil)
	carolID, carol := s.user("carol", models.RoleUser)
	_, admin := s.user("root", models.RoleAdmin)

	w, env := s.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/status", carolID), admin, map[string]string{"status": models.UserStatusLocked})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	w, _ = s.do(http.MethodPost, "/api/v1/articles/10/comments", carol, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newTestServer(t, nil)

	w, env := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "dave", "email": "dave@example.com", "password": "secret123", "name": "Dave",
	})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	w, _ = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "dave", "email": "other@example.com", "password": "secret123", "name": "Dave",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "dave", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "dave", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)

	w, env = s.do(http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var me struct {
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, []string{models.RoleUser}, me.Roles)
	assert.Empty(t, me.Permissions)
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	w, env := s.do(http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "disabled", health.Components["redis"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	w, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestModerationFeedRequiresRedis(t *testing.T) {
	s := newTestServer(t, nil)
	_, mod := s.user("mod", models.RoleModerator)

	w, _ := s.do(http.MethodGet, "/api/v1/ws/moderation?token="+mod, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestModerationFeedStreamsEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rc := cache.NewRedisCacheWithClient(client, "test")

	s := newTestServer(t, rc)
	_, alice := s.user("alice", models.RoleUser)
	_, mod := s.user("mod", models.RoleModerator)

	srv := httptest.NewServer(s.engine)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/moderation?token="

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+alice, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+mod, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 订阅在握手之后建立，持续发布直到收到第一条事件
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = rc.Publish(context.Background(), services.CommentEventsChannel, services.CommentEvent{
					Type:      services.CommentEventSubmitted,
					CommentID: 1,
					ArticleID: testArticleID,
					Status:    "pending",
				})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event services.CommentEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, services.CommentEventSubmitted, event.Type)
	assert.Equal(t, testArticleID, event.ArticleID)
}
