package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/master"
)

// Repository 总线日志的 SQL 写入
type Repository struct {
	Pool *pgxpool.Pool
}

// UpsertNode 节点上线或刷新
func (r *Repository) UpsertNode(ctx context.Context, info master.NodeInfo) error {
	const q = `INSERT INTO bus_nodes (address, node_id, version, capabilities, online, last_seen_at, updated_at)
               VALUES ($1, $2, $3, $4, TRUE, $5, NOW())
               ON CONFLICT (address) DO UPDATE SET
                   node_id = EXCLUDED.node_id,
                   version = EXCLUDED.version,
                   capabilities = EXCLUDED.capabilities,
                   online = TRUE,
                   offline_reason = NULL,
                   last_seen_at = EXCLUDED.last_seen_at,
                   updated_at = NOW()`
	_, err := r.Pool.Exec(ctx, q, int16(info.Address), info.ID, int32(info.Version), int16(info.Capabilities), info.LastSeen)
	return err
}

// MarkNodeOffline 节点被驱逐
func (r *Repository) MarkNodeOffline(ctx context.Context, addr byte, reason string, at time.Time) error {
	const q = `UPDATE bus_nodes SET online = FALSE, offline_reason = $2, updated_at = $3 WHERE address = $1`
	_, err := r.Pool.Exec(ctx, q, int16(addr), reason, at)
	return err
}

// InsertRequest 记录一次请求结果
func (r *Repository) InsertRequest(ctx context.Context, rec master.RequestRecord) error {
	const q = `INSERT INTO bus_requests (address, opcode, attempts, result, error, duration_ms, created_at)
               VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`
	ms := float64(rec.Duration) / float64(time.Millisecond)
	_, err := r.Pool.Exec(ctx, q, int16(rec.Address), rec.Opcode.String(), rec.Attempts, rec.Result, rec.Err, ms, rec.At)
	return err
}

// InsertAxisEvent 记录轴状态变化
func (r *Repository) InsertAxisEvent(ctx context.Context, st axis.Status, at time.Time) error {
	const q = `INSERT INTO axis_events (address, position, target, velocity, state, faults, stale, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.Pool.Exec(ctx, q, int16(st.Address), st.Position, st.Target, st.Velocity, string(st.State), int16(st.Faults), st.Stale, at)
	return err
}
