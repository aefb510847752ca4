package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("缓存未命中")

// RedisCache Redis缓存实现，同时承担记录事件的发布通道
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisCache 创建Redis缓存实例
func NewRedisCache(config *Config) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "fintrack:cache"
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// key 拼接带前缀的缓存键
func (c *RedisCache) key(parts ...string) string {
	key := c.prefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Set 写入缓存，值JSON序列化，使用默认TTL
func (c *RedisCache) Set(ctx context.Context, value interface{}, keyParts ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化缓存值失败: %v", err)
	}
	return c.client.Set(ctx, c.key(keyParts...), data, c.ttl).Err()
}

// Get 读取缓存并反序列化到dest，未命中返回ErrMiss
func (c *RedisCache) Get(ctx context.Context, dest interface{}, keyParts ...string) error {
	data, err := c.client.Get(ctx, c.key(keyParts...)).Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete 删除指定缓存键
func (c *RedisCache) Delete(ctx context.Context, keyParts ...string) error {
	return c.client.Del(ctx, c.key(keyParts...)).Err()
}

// DeletePattern 按模式批量失效，用于实体/字段/权限变更后的缓存清理
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	fullPattern := c.prefix + ":" + pattern
	iter := c.client.Scan(ctx, 0, fullPattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Publish 发布事件消息到指定通道
func (c *RedisCache) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化事件消息失败: %v", err)
	}
	return c.client.Publish(ctx, channel, data).Err()
}

// Subscribe 订阅事件通道
func (c *RedisCache) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.client.Subscribe(ctx, channel)
}

// GetClient 获取底层Redis客户端
func (c *RedisCache) GetClient() *redis.Client {
	return c.client
}

// Ping 健康检查
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭Redis连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}
