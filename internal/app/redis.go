package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
	redisstorage "github.com/taoyao-code/mocobus/internal/storage/redis"
)

// OpenStatusMirror 连接 Redis 并清空上次运行遗留的镜像键
// 未启用时三个返回值均为 nil；Reset 失败只记日志，镜像照常工作
func OpenStatusMirror(ctx context.Context, cfg cfgpkg.RedisConfig, queue int, log *zap.Logger) (*redisstorage.Client, *redisstorage.Mirror, error) {
	if !cfg.Enabled {
		log.Info("redis mirror disabled")
		return nil, nil, nil
	}
	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	keys := redisstorage.Keys{Prefix: cfg.KeyPrefix, Channel: cfg.StatusChannel}
	mirror := redisstorage.NewMirror(client.Client, keys, queue, log)
	if err := mirror.Reset(ctx); err != nil {
		log.Warn("redis mirror reset failed", zap.Error(err))
	}
	log.Info("redis mirror ready",
		zap.String("addr", cfg.Addr),
		zap.String("prefix", cfg.KeyPrefix),
		zap.Int("queue", queue))
	return client, mirror, nil
}
