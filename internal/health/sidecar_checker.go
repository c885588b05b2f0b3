package health

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	redisstorage "github.com/taoyao-code/mocobus/internal/storage/redis"
)

// JournalStats 命令日志写入统计，*pg.Journal 实现
type JournalStats interface {
	Stats() (written, dropped uint64)
}

// MirrorStats Redis 镜像丢弃计数，*redis.Mirror 实现
type MirrorStats interface {
	Dropped() uint64
}

// SidecarChecker 旁路存储（日志库、Redis 镜像）检查器
// 存储不可用或自上次检查后出现丢弃时降级，从不判定 Unhealthy：总线不依赖它们
type SidecarChecker struct {
	name    string
	ping    func(ctx context.Context) error
	dropped func() uint64
	details func() map[string]any

	lastDropped atomic.Uint64
}

// NewDatabaseChecker journal 可为 nil
func NewDatabaseChecker(pool *pgxpool.Pool, journal JournalStats) *SidecarChecker {
	c := &SidecarChecker{
		name: "database",
		ping: pool.Ping,
		details: func() map[string]any {
			st := pool.Stat()
			d := map[string]any{
				"total_conns":    st.TotalConns(),
				"acquired_conns": st.AcquiredConns(),
				"max_conns":      st.MaxConns(),
			}
			if journal != nil {
				written, dropped := journal.Stats()
				d["journal_written"] = written
				d["journal_dropped"] = dropped
			}
			return d
		},
	}
	if journal != nil {
		c.dropped = func() uint64 { _, d := journal.Stats(); return d }
	}
	return c
}

// NewRedisChecker mirror 可为 nil
func NewRedisChecker(client *redisstorage.Client, mirror MirrorStats) *SidecarChecker {
	c := &SidecarChecker{
		name: "redis",
		ping: client.HealthCheck,
		details: func() map[string]any {
			st := client.Stats()
			d := map[string]any{
				"total_conns": st.TotalConns,
				"idle_conns":  st.IdleConns,
				"timeouts":    st.Timeouts,
			}
			if mirror != nil {
				d["mirror_dropped"] = mirror.Dropped()
			}
			return d
		},
	}
	if mirror != nil {
		c.dropped = mirror.Dropped
	}
	return c
}

func (c *SidecarChecker) Name() string { return c.name }

func (c *SidecarChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	status, message := StatusHealthy, "ok"
	if c.dropped != nil {
		now := c.dropped()
		if prev := c.lastDropped.Swap(now); now > prev {
			status = StatusDegraded
			message = fmt.Sprintf("%d writes dropped since last check", now-prev)
		}
	}
	var details map[string]any
	if c.details != nil {
		details = c.details()
	}
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
