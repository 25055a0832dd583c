package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"newsportal/pkg/cache"
	"newsportal/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const permissionInvalidationChannel = "permission-invalidations"

// PermissionCacheOptions 权限缓存参数
type PermissionCacheOptions struct {
	Size      int
	LocalTTL  time.Duration
	RemoteTTL time.Duration
}

// PermissionCache 两级权限缓存：进程内 LRU + 可选的 Redis
//
// 本地层用 (epoch, generation) 防止失效与回填交错时写回旧值：
// 回填前记录快照，写入时快照未变才落入 LRU。generation 只为有回填进行中的主体保留，
// 最后一个回填结束后删除，map 大小受并发回填数限制。
// Redis 层使用版本化键，失效时自增版本号，旧版本键上的回填不会再被读到。
// 其他节点通过发布订阅收到失效通知，丢失通知时由本地 TTL 兜底。
type PermissionCache struct {
	store     RoleStore
	local     *lru.LRU[uint, PermissionSet]
	remote    *cache.RedisCache
	remoteTTL time.Duration
	group     singleflight.Group
	nodeID    string

	mu          sync.Mutex
	epoch       uint64
	generations map[uint]uint64
	inflight    map[uint]int

	// 测试用，在本地层失效之后、Redis 层失效之前调用
	afterLocalInvalidate func(principalID uint)

	pubsub *redis.PubSub
	done   chan struct{}
}

type invalidationMessage struct {
	Node        string `json:"node"`
	PrincipalID uint   `json:"principal_id"`
}

// NewPermissionCache 创建权限缓存，remote 为 nil 时只使用本地层
func NewPermissionCache(store RoleStore, remote *cache.RedisCache, opts PermissionCacheOptions) *PermissionCache {
	if opts.Size <= 0 {
		opts.Size = 10000
	}
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = time.Minute
	}
	if opts.RemoteTTL <= 0 {
		opts.RemoteTTL = 30 * time.Minute
	}
	return &PermissionCache{
		store:       store,
		local:       lru.NewLRU[uint, PermissionSet](opts.Size, nil, opts.LocalTTL),
		remote:      remote,
		remoteTTL:   opts.RemoteTTL,
		nodeID:      uuid.NewString(),
		generations: make(map[uint]uint64),
		inflight:    make(map[uint]int),
	}
}

// Resolve 返回主体的有效权限集合
func (c *PermissionCache) Resolve(ctx context.Context, principalID uint) (PermissionSet, error) {
	if set, ok := c.local.Get(principalID); ok {
		permissionCacheLookups.WithLabelValues("local").Inc()
		return set, nil
	}

	c.mu.Lock()
	epoch, gen := c.epoch, c.generations[principalID]
	c.inflight[principalID]++
	c.mu.Unlock()

	key := fmt.Sprintf("%d:%d:%d", epoch, principalID, gen)
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.load(loadCtx, principalID)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		// 回填仍在进行，结束前保留 generation，避免后来者以相同键加入旧的回填
		go func() {
			<-ch
			c.mu.Lock()
			c.release(principalID)
			c.mu.Unlock()
		}()
		return PermissionSet{}, ctx.Err()
	case res = <-ch:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.release(principalID)

	if res.Err != nil {
		return PermissionSet{}, res.Err
	}
	set := res.Val.(PermissionSet)
	if c.epoch == epoch && c.generations[principalID] == gen {
		c.local.Add(principalID, set)
	}
	return set, nil
}

// release 结束一次回填，调用方持有 c.mu
func (c *PermissionCache) release(principalID uint) {
	c.inflight[principalID]--
	if c.inflight[principalID] <= 0 {
		delete(c.inflight, principalID)
		delete(c.generations, principalID)
	}
}

func (c *PermissionCache) load(ctx context.Context, principalID uint) (PermissionSet, error) {
	if c.remote == nil {
		return c.loadFromStore(ctx, principalID)
	}

	log := logger.GetLogger().WithField("principal_id", principalID)

	version, err := c.remote.GetInt(ctx, c.versionKey(principalID))
	if err != nil {
		log.WithError(err).Warn("读取远程权限版本失败，回退数据库")
		return c.loadFromStore(ctx, principalID)
	}

	setKey := c.setKey(principalID, version)
	data, found, err := c.remote.Get(ctx, setKey)
	if err != nil {
		log.WithError(err).Warn("读取远程权限缓存失败，回退数据库")
	} else if found {
		var set PermissionSet
		if err := json.Unmarshal(data, &set); err == nil {
			permissionCacheLookups.WithLabelValues("remote").Inc()
			return set, nil
		}
		log.Warn("远程权限缓存内容损坏，重新加载")
	}

	set, err := c.loadFromStore(ctx, principalID)
	if err != nil {
		return PermissionSet{}, err
	}
	if data, err := json.Marshal(set); err == nil {
		if err := c.remote.Set(ctx, setKey, data, c.remoteTTL); err != nil {
			log.WithError(err).Warn("写入远程权限缓存失败")
		}
	}
	return set, nil
}

func (c *PermissionCache) loadFromStore(ctx context.Context, principalID uint) (PermissionSet, error) {
	permissionCacheLookups.WithLabelValues("store").Inc()
	slugs, err := c.store.PermissionSlugsForPrincipal(ctx, principalID)
	if err != nil {
		return PermissionSet{}, err
	}
	return NewPermissionSet(slugs...), nil
}

// Invalidate 使主体的缓存失效，须在角色变更提交之后调用
//
// 本地层立即生效；Redis 不可用时返回错误，此时其他节点依赖 TTL 收敛。
// 版本号递增之前本节点仍可能从旧版本键回填，所以 Redis 层处理完后再失效一次本地层。
func (c *PermissionCache) Invalidate(ctx context.Context, principalID uint) error {
	c.invalidateLocal(principalID)
	permissionCacheInvalidations.Inc()

	if c.remote == nil {
		return nil
	}
	if c.afterLocalInvalidate != nil {
		c.afterLocalInvalidate(principalID)
	}
	defer c.invalidateLocal(principalID)

	if _, err := c.remote.Incr(ctx, c.versionKey(principalID)); err != nil {
		return fmt.Errorf("递增权限版本失败: %w", err)
	}
	msg := invalidationMessage{Node: c.nodeID, PrincipalID: principalID}
	if err := c.remote.Publish(ctx, permissionInvalidationChannel, msg); err != nil {
		return fmt.Errorf("广播权限失效失败: %w", err)
	}
	return nil
}

// InvalidateMany 批量失效，遇到错误继续处理剩余主体并返回第一个错误
func (c *PermissionCache) InvalidateMany(ctx context.Context, principalIDs []uint) error {
	var first error
	for _, id := range principalIDs {
		if err := c.Invalidate(ctx, id); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// invalidateLocal 删除本地条目；有回填进行中时递增 generation 使其结果作废
func (c *PermissionCache) invalidateLocal(principalID uint) {
	c.mu.Lock()
	if c.inflight[principalID] > 0 {
		c.generations[principalID]++
	}
	c.local.Remove(principalID)
	c.mu.Unlock()
}

// PurgeLocal 清空本地层，进行中的回填不会写回
func (c *PermissionCache) PurgeLocal() {
	c.mu.Lock()
	c.epoch++
	c.local.Purge()
	c.mu.Unlock()
}

// LocalLen 本地层条目数
func (c *PermissionCache) LocalLen() int {
	return c.local.Len()
}

func (c *PermissionCache) versionKey(principalID uint) string {
	return c.remote.Key("perm", "ver", strconv.FormatUint(uint64(principalID), 10))
}

func (c *PermissionCache) setKey(principalID uint, version int64) string {
	return c.remote.Key("perm", "set", strconv.FormatUint(uint64(principalID), 10), strconv.FormatInt(version, 10))
}

// ========== 失效广播订阅 ==========

// Start 订阅其他节点的失效广播，未配置Redis时直接返回
func (c *PermissionCache) Start(ctx context.Context) error {
	if c.remote == nil {
		return nil
	}
	if c.pubsub != nil {
		return fmt.Errorf("权限失效订阅已启动")
	}

	pubsub := c.remote.Subscribe(ctx, permissionInvalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("订阅权限失效频道失败: %w", err)
	}
	c.pubsub = pubsub
	c.done = make(chan struct{})

	go c.listen(pubsub.Channel(), c.done)
	logger.GetLogger().WithField("node", c.nodeID).Info("权限失效订阅已启动")
	return nil
}

func (c *PermissionCache) listen(ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	log := logger.GetLogger()
	for msg := range ch {
		var m invalidationMessage
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			log.WithError(err).Warn("无法解析权限失效消息")
			continue
		}
		if m.Node == c.nodeID {
			continue
		}
		c.invalidateLocal(m.PrincipalID)
		log.WithFields(logrus.Fields{
			"principal_id": m.PrincipalID,
			"from":         m.Node,
		}).Debug("收到权限失效广播")
	}
}

// Stop 关闭订阅并等待监听协程退出
func (c *PermissionCache) Stop() {
	if c.pubsub == nil {
		return
	}
	_ = c.pubsub.Close()
	<-c.done
	c.pubsub = nil
	logger.GetLogger().Info("权限失效订阅已停止")
}
