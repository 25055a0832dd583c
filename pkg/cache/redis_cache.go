package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache Redis键值缓存与发布订阅的薄封装
type RedisCache struct {
	client *redis.Client
	prefix string
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisCache 创建Redis缓存实例
func NewRedisCache(config *Config) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return NewRedisCacheWithClient(client, config.Prefix)
}

// NewRedisCacheWithClient 使用已有客户端创建实例（测试中配合miniredis使用）
func NewRedisCacheWithClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "newsportal"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping 测试Redis连接
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetClient 获取Redis客户端（用于高级操作）
func (r *RedisCache) GetClient() *redis.Client {
	return r.client
}

// Key 拼接带前缀的键
func (r *RedisCache) Key(parts ...string) string {
	return r.prefix + ":" + strings.Join(parts, ":")
}

// ========== 键值操作 ==========

// Get 读取键值，键不存在时 found 为 false
func (r *RedisCache) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set 写入键值
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete 删除键
func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Incr 原子自增，用于版本号
func (r *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return n, nil
}

// GetInt 读取整数值，键不存在时返回0
func (r *RedisCache) GetInt(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}

// ========== 发布订阅 ==========

// ChannelKey 频道名
func (r *RedisCache) ChannelKey(channel string) string {
	return r.Key("channel", channel)
}

// Publish 发布消息到指定频道，message 为 []byte 时原样发送，否则序列化为JSON
func (r *RedisCache) Publish(ctx context.Context, channel string, message interface{}) error {
	var data []byte
	switch m := message.(type) {
	case []byte:
		data = m
	default:
		encoded, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("序列化消息失败: %w", err)
		}
		data = encoded
	}

	if err := r.client.Publish(ctx, r.ChannelKey(channel), data).Err(); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}
	return nil
}

// Subscribe 订阅指定频道，调用方负责关闭返回的 PubSub
func (r *RedisCache) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return r.client.Subscribe(ctx, r.ChannelKey(channel))
}
