package cache

import (
	"context"
	"fmt"
	"time"

	"guessescrow/internal/config"

	"github.com/go-redis/redis/v8"
)

const (
	dialTimeout = 5 * time.Second
	pingTimeout = 2 * time.Second
)

// InitRedis 连接 Redis 并检查可用性
//
// 这里的 Redis 只用于结算锁，不缓存任何余额
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	client := redis.NewClient(opts)

	if err := Ping(context.Background(), client); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Ping 健康检查用，带独立超时
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return nil
}
