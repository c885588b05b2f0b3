package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/mocobus/internal/health"
	pgstorage "github.com/taoyao-code/mocobus/internal/storage/pg"
	redisstorage "github.com/taoyao-code/mocobus/internal/storage/redis"
)

// NewHealthAggregator 创建健康检查聚合器，初始只有总线检查器
func NewHealthAggregator(link health.BusLink, device string) *health.Aggregator {
	return health.NewAggregator(health.NewBusChecker(link, device))
}

// AddDatabaseChecker 启用数据库时追加
func AddDatabaseChecker(aggregator *health.Aggregator, pool *pgxpool.Pool, journal *pgstorage.Journal) {
	if pool == nil {
		return
	}
	var js health.JournalStats
	if journal != nil {
		js = journal
	}
	aggregator.AddChecker(health.NewDatabaseChecker(pool, js))
}

// AddRedisChecker 启用 Redis 时追加
func AddRedisChecker(aggregator *health.Aggregator, client *redisstorage.Client, mirror *redisstorage.Mirror) {
	if client == nil {
		return
	}
	var ms health.MirrorStats
	if mirror != nil {
		ms = mirror
	}
	aggregator.AddChecker(health.NewRedisChecker(client, ms))
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
