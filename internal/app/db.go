package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
	"github.com/taoyao-code/mocobus/internal/migrate"
	pgstorage "github.com/taoyao-code/mocobus/internal/storage/pg"
)

// ConnectDBAndMigrate 建立连接池并执行内嵌迁移
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	applied, err := (migrate.Runner{FS: pgstorage.Migrations}).Up(ctx, dbpool)
	if err != nil {
		log.Error("db migrate error", zap.Error(err))
		dbpool.Close()
		return nil, err
	}
	log.Info("db migrations applied", zap.Int64s("versions", applied))
	return dbpool, nil
}

// NewJournal 总线命令日志，写入 bus_requests / bus_nodes / axis_events
func NewJournal(pool *pgxpool.Pool, queue int, log *zap.Logger) *pgstorage.Journal {
	return pgstorage.NewJournal(&pgstorage.Repository{Pool: pool}, queue, log)
}
