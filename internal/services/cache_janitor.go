package services

import (
	"fmt"
	"sync"

	"newsportal/pkg/logger"

	"github.com/robfig/cron/v3"
)

// CacheJanitor 定期清空本地权限缓存，限定广播丢失时的陈旧窗口
type CacheJanitor struct {
	cache   *PermissionCache
	spec    string
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewCacheJanitor 创建清理任务，spec 为 cron 表达式，如 "@every 10m"
func NewCacheJanitor(cache *PermissionCache, spec string) *CacheJanitor {
	return &CacheJanitor{
		cache: cache,
		spec:  spec,
		cron:  cron.New(),
	}
}

// Start 启动定时清理
func (j *CacheJanitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return fmt.Errorf("清理任务已经在运行")
	}
	if _, err := j.cron.AddFunc(j.spec, j.run); err != nil {
		return fmt.Errorf("无效的清理周期 %q: %w", j.spec, err)
	}
	j.cron.Start()
	j.running = true
	logger.GetLogger().Infof("权限缓存清理任务已启动，周期: %s", j.spec)
	return nil
}

func (j *CacheJanitor) run() {
	n := j.cache.LocalLen()
	j.cache.PurgeLocal()
	logger.GetLogger().Debugf("已清空本地权限缓存，条目数: %d", n)
}

// Stop 停止定时清理并等待正在执行的任务结束
func (j *CacheJanitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
	logger.GetLogger().Info("权限缓存清理任务已停止")
}
