package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/master"
)

var _ master.Observer = (*Mirror)(nil)

const (
	defaultMirrorQueue = 256
	mirrorTimeout      = 2 * time.Second
	// 节点键的过期时间，进程崩溃后残留数据自动消失
	nodeTTL = 10 * time.Minute
)

// Keys 镜像使用的键
type Keys struct {
	Prefix  string
	Channel string
}

// NodeSet 在线节点地址集合
func (k Keys) NodeSet() string { return k.Prefix + "nodes" }

// Node 单个节点的 hash
func (k Keys) Node(addr byte) string { return k.Prefix + "node:" + strconv.Itoa(int(addr)) }

// Axis 单个轴的最新快照（JSON）
func (k Keys) Axis(addr byte) string { return k.Prefix + "axis:" + strconv.Itoa(int(addr)) }

type mirrorOp func(ctx context.Context, pipe redis.Pipeliner)

// Mirror 把节点表与轴状态镜像到 Redis，并发布状态事件
// 回调只入队，写 Redis 在 Run 中完成
type Mirror struct {
	client  redis.UniversalClient
	keys    Keys
	logger  *zap.Logger
	q       chan mirrorOp
	dropped atomic.Uint64
}

// NewMirror queue<=0 使用默认长度
func NewMirror(client redis.UniversalClient, keys Keys, queue int, logger *zap.Logger) *Mirror {
	if queue <= 0 {
		queue = defaultMirrorQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if keys.Channel == "" {
		keys.Channel = keys.Prefix + "status"
	}
	return &Mirror{
		client: client,
		keys:   keys,
		logger: logger.With(zap.String("component", "redis_mirror")),
		q:      make(chan mirrorOp, queue),
	}
}

func (m *Mirror) NodeSeen(info master.NodeInfo) {
	key := m.keys.Node(info.Address)
	m.enqueue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, map[string]any{
			"address":      info.Address,
			"id":           info.ID,
			"version":      info.Version,
			"capabilities": info.Capabilities,
			"last_seen":    info.LastSeen.UnixMilli(),
		})
		pipe.Expire(ctx, key, nodeTTL)
		pipe.SAdd(ctx, m.keys.NodeSet(), info.Address)
	})
}

func (m *Mirror) NodeEvicted(addr byte, reason string) {
	m.enqueue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, m.keys.Node(addr))
		pipe.SRem(ctx, m.keys.NodeSet(), addr)
	})
}

// RequestDone 请求结果只落库，不镜像
func (m *Mirror) RequestDone(master.RequestRecord) {}

func (m *Mirror) StatusChanged(st axis.Status) {
	data, err := json.Marshal(st)
	if err != nil {
		m.logger.Warn("marshal status failed", zap.Error(err))
		return
	}
	m.enqueue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, m.keys.Axis(st.Address), data, nodeTTL)
		pipe.Publish(ctx, m.keys.Channel, data)
	})
}

func (m *Mirror) enqueue(op mirrorOp) {
	select {
	case m.q <- op:
	default:
		if m.dropped.Add(1)%100 == 1 {
			m.logger.Warn("mirror queue full, update dropped", zap.Uint64("dropped", m.dropped.Load()))
		}
	}
}

// Dropped 队列满丢弃的更新数
func (m *Mirror) Dropped() uint64 { return m.dropped.Load() }

// Run 消费队列直到 ctx 结束；积压的操作合并进一个 pipeline
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-m.q:
			m.flush(op)
		}
	}
}

func (m *Mirror) flush(first mirrorOp) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	pipe := m.client.Pipeline()
	first(ctx, pipe)
drain:
	for n := 1; n < cap(m.q); n++ {
		select {
		case op := <-m.q:
			op(ctx, pipe)
		default:
			break drain
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("mirror write failed", zap.Error(err))
	}
}

// Reset 启动时清除上一次运行留下的节点集合
func (m *Mirror) Reset(ctx context.Context) error {
	addrs, err := m.client.SMembers(ctx, m.keys.NodeSet()).Result()
	if err != nil {
		return err
	}
	pipe := m.client.Pipeline()
	for _, a := range addrs {
		if n, err := strconv.Atoi(a); err == nil && n >= 0 && n <= 255 {
			pipe.Del(ctx, m.keys.Node(byte(n)))
		}
	}
	pipe.Del(ctx, m.keys.NodeSet())
	_, err = pipe.Exec(ctx)
	return err
}
