package services

import (
	"context"
	"sync"
	"testing"

	"newsportal/internal/database"
	"newsportal/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testArticleID uint = 10

type fixture struct {
	db       *gorm.DB
	store    *GormRoleStore
	cache    *PermissionCache
	guard    *AuthorizationGuard
	users    *UserService
	roles    *RoleService
	repo     *GormCommentRepository
	events   *recordingPublisher
	comments *CommentService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接是独立的数据库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := newTestDB(t)

	f := &fixture{db: db, store: NewGormRoleStore(db), events: &recordingPublisher{}}
	f.cache = NewPermissionCache(f.store, nil, PermissionCacheOptions{})
	f.guard = NewAuthorizationGuard(f.cache)
	f.users = NewUserService(db, f.store, f.cache)
	f.roles = NewRoleService(db, f.cache)
	f.repo = NewGormCommentRepository(db)
	f.comments = NewCommentService(f.repo, NewGormArticleLookup(db), f.guard, f.events, 50)

	require.NoError(t, NewPermissionService(db).EnsureCatalog(ctx))
	seedRoles := []struct {
		role  models.Role
		perms []string
	}{
		{models.Role{Slug: models.RoleAdmin, Name: "管理员", IsSystem: true}, nil},
		{models.Role{Slug: models.RoleUser, Name: "注册用户", IsSystem: true}, nil},
		{models.Role{Slug: models.RoleModerator, Name: "审核员"}, []string{models.PermissionCommentModerate, models.PermissionViewAdminPanel}},
		{models.Role{Slug: models.RoleEditor, Name: "编辑"}, []string{models.PermissionCreateNews, models.PermissionEditNews}},
	}
	for _, r := range seedRoles {
		_, err := f.roles.EnsureRole(ctx, r.role, r.perms)
		require.NoError(t, err)
	}

	require.NoError(t, db.Create(&models.News{BaseModel: models.BaseModel{ID: testArticleID}, Title: "今日要闻", Slug: "today"}).Error)
	require.NoError(t, db.Create(&models.News{BaseModel: models.BaseModel{ID: 11}, Title: "体育", Slug: "sports"}).Error)
	return f
}

// principal 注册用户并将角色整体替换为 roles，roles 为空时用户没有任何角色
func (f *fixture) principal(t *testing.T, username string, roles ...string) *Principal {
	t.Helper()
	ctx := context.Background()
	user, err := f.users.Register(ctx, username, username+"@example.com", "secret123", "测试"+username)
	require.NoError(t, err)
	_, err = f.users.SyncRoles(ctx, user.ID, roles)
	require.NoError(t, err)

	p, err := f.users.LoadPrincipal(ctx, user.ID)
	require.NoError(t, err)
	return p
}

// insertComment 直接写入评论，允许指定ID和不存在的父评论
func (f *fixture) insertComment(t *testing.T, id uint, articleID uint, parentID *uint, status models.CommentStatus, authorID *uint) *models.Comment {
	t.Helper()
	c := &models.Comment{
		BaseModel: models.BaseModel{ID: id},
		ArticleID: articleID,
		AuthorID:  authorID,
		ParentID:  parentID,
		Text:      "comment",
		Status:    status,
	}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func uintPtr(v uint) *uint { return &v }

func rootIDs(forest []*models.Comment) []uint {
	ids := make([]uint, 0, len(forest))
	for _, c := range forest {
		ids = append(ids, c.ID)
	}
	return ids
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []CommentEvent
}

func (p *recordingPublisher) PublishCommentEvent(_ context.Context, e CommentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// stubStore 可控的 RoleStore，用于缓存和守卫的单元测试
type stubStore struct {
	mu      sync.Mutex
	perms   map[uint][]string
	roles   map[uint][]string
	loads   int
	block   chan struct{}
	started chan struct{}
	err     error
}

func newStubStore() *stubStore {
	return &stubStore{perms: map[uint][]string{}, roles: map[uint][]string{}}
}

func (s *stubStore) set(id uint, perms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[id] = perms
}

func (s *stubStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *stubStore) RoleSlugsForPrincipal(_ context.Context, id uint) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roles[id], nil
}

func (s *stubStore) PermissionSlugsForPrincipal(_ context.Context, id uint) ([]string, error) {
	s.mu.Lock()
	s.loads++
	perms := append([]string(nil), s.perms[id]...)
	block, started, err := s.block, s.started, s.err
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return perms, err
}

func (s *stubStore) PrincipalIDsWithRole(context.Context, uint) ([]uint, error) {
	return nil, nil
}
