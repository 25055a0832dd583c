package database

import (
	"context"
	"newsportal/pkg/cache"
	"newsportal/pkg/config"
	"sync"
	"time"
)

var (
	redisCacheInstance *cache.RedisCache
	redisCacheOnce     sync.Once
)

// GetRedisCache 获取Redis缓存的单例实例，未启用Redis时返回nil
func GetRedisCache() *cache.RedisCache {
	cfg := config.GetConfig()
	if !cfg.Redis.Enabled {
		return nil
	}
	redisCacheOnce.Do(func() {
		redisCacheInstance = cache.NewRedisCache(&cache.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	})
	return redisCacheInstance
}

// PingRedis 启动时检查Redis连通性
func PingRedis() error {
	rc := GetRedisCache()
	if rc == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rc.Ping(ctx)
}

// CloseRedisCache 关闭Redis连接
func CloseRedisCache() error {
	if redisCacheInstance != nil {
		return redisCacheInstance.Close()
	}
	return nil
}
