package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
)

const (
	defaultPoolSize = 10
	pingTimeout     = 3 * time.Second
)

// ErrDisabled 配置未启用 Redis
var ErrDisabled = errors.New("redis is not enabled")

// Client 镜像使用的 Redis 连接
type Client struct {
	*redis.Client
}

// clientOptions 镜像写入是小批量 pipeline，超时取短值
func clientOptions(cfg cfgpkg.RedisConfig) *redis.Options {
	pool := cfg.PoolSize
	if pool <= 0 {
		pool = defaultPoolSize
	}
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     pool,
		DialTimeout:  pingTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// NewClient 建立连接并探活，失败时不保留连接
func NewClient(cfg cfgpkg.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	rdb := redis.NewClient(clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Client{Client: rdb}, nil
}

// HealthCheck 供健康检查调用
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Stats 连接池统计
func (c *Client) Stats() *redis.PoolStats {
	return c.PoolStats()
}

func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
