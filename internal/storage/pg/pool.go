package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
)

// 日志库只有一个写协程和少量查询，连接数默认取小值
const (
	defaultMaxConns = 4
	defaultMinConns = 1
	pingTimeout     = 3 * time.Second
)

// NewPool 创建 pgx 连接池并探活
func NewPool(ctx context.Context, dbc cfgpkg.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dbc, logger)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func poolConfig(dbc cfgpkg.DatabaseConfig, logger *zap.Logger) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dbc.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = defaultMaxConns
	if dbc.MaxOpenConns > 0 {
		cfg.MaxConns = int32(dbc.MaxOpenConns)
	}
	cfg.MinConns = min(defaultMinConns, cfg.MaxConns)
	if dbc.MaxIdleConns > 0 {
		cfg.MinConns = min(int32(dbc.MaxIdleConns), cfg.MaxConns)
	}
	if dbc.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = dbc.ConnMaxLifetime
	}
	cfg.HealthCheckPeriod = 30 * time.Second

	if logger != nil {
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   zapTraceLogger(logger.With(zap.String("component", "pgx"))),
			LogLevel: tracelog.LogLevelWarn,
		}
	}
	return cfg, nil
}

// zapTraceLogger pgx 追踪日志转到 zap，只会收到 Warn 及以上
func zapTraceLogger(l *zap.Logger) tracelog.LoggerFunc {
	return func(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		fields := make([]zap.Field, 0, len(data))
		for k, v := range data {
			fields = append(fields, zap.Any(k, v))
		}
		if level == tracelog.LogLevelError {
			l.Error(msg, fields...)
			return
		}
		l.Warn(msg, fields...)
	}
}
