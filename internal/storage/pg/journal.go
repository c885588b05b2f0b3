package pg

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/master"
)

// journalStore Journal 依赖的写入能力，*Repository 实现
type journalStore interface {
	UpsertNode(ctx context.Context, info master.NodeInfo) error
	MarkNodeOffline(ctx context.Context, addr byte, reason string, at time.Time) error
	InsertRequest(ctx context.Context, rec master.RequestRecord) error
	InsertAxisEvent(ctx context.Context, st axis.Status, at time.Time) error
}

var (
	_ journalStore    = (*Repository)(nil)
	_ master.Observer = (*Journal)(nil)
)

type entryKind uint8

const (
	entryNodeSeen entryKind = iota + 1
	entryNodeEvicted
	entryRequest
	entryStatus
)

type entry struct {
	kind   entryKind
	at     time.Time
	node   master.NodeInfo
	addr   byte
	reason string
	rec    master.RequestRecord
	status axis.Status
}

const (
	defaultJournalQueue = 1024
	writeTimeout        = 3 * time.Second
)

// Journal 主站事件异步落库；队列满时丢弃，不阻塞总线
type Journal struct {
	store   journalStore
	logger  *zap.Logger
	q       chan entry
	dropped atomic.Uint64
	written atomic.Uint64
}

// NewJournal queue<=0 使用默认长度
func NewJournal(store journalStore, queue int, logger *zap.Logger) *Journal {
	if queue <= 0 {
		queue = defaultJournalQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		store:  store,
		logger: logger.With(zap.String("component", "bus_journal")),
		q:      make(chan entry, queue),
	}
}

func (j *Journal) NodeSeen(info master.NodeInfo) {
	j.enqueue(entry{kind: entryNodeSeen, node: info, at: time.Now()})
}

func (j *Journal) NodeEvicted(addr byte, reason string) {
	j.enqueue(entry{kind: entryNodeEvicted, addr: addr, reason: reason, at: time.Now()})
}

func (j *Journal) RequestDone(rec master.RequestRecord) {
	j.enqueue(entry{kind: entryRequest, rec: rec, at: rec.At})
}

func (j *Journal) StatusChanged(st axis.Status) {
	j.enqueue(entry{kind: entryStatus, status: st, at: time.Now()})
}

func (j *Journal) enqueue(e entry) {
	select {
	case j.q <- e:
	default:
		if j.dropped.Add(1)%100 == 1 {
			j.logger.Warn("journal queue full, entry dropped", zap.Uint64("dropped", j.dropped.Load()))
		}
	}
}

// Run 消费队列直到 ctx 结束，结束前尽量写完剩余条目
func (j *Journal) Run(ctx context.Context) error {
	j.logger.Info("journal started", zap.Int("queue", cap(j.q)))
	for {
		select {
		case <-ctx.Done():
			j.drain()
			return nil
		case e := <-j.q:
			j.write(context.Background(), e)
		}
	}
}

func (j *Journal) drain() {
	deadline := time.Now().Add(writeTimeout)
	for time.Now().Before(deadline) {
		select {
		case e := <-j.q:
			j.write(context.Background(), e)
		default:
			return
		}
	}
}

func (j *Journal) write(parent context.Context, e entry) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()

	var err error
	switch e.kind {
	case entryNodeSeen:
		err = j.store.UpsertNode(ctx, e.node)
	case entryNodeEvicted:
		err = j.store.MarkNodeOffline(ctx, e.addr, e.reason, e.at)
	case entryRequest:
		err = j.store.InsertRequest(ctx, e.rec)
	case entryStatus:
		err = j.store.InsertAxisEvent(ctx, e.status, e.at)
	}
	if err != nil {
		j.logger.Warn("journal write failed", zap.Uint8("kind", uint8(e.kind)), zap.Error(err))
		return
	}
	j.written.Add(1)
}

// Stats 已写入与丢弃的条目数
func (j *Journal) Stats() (written, dropped uint64) {
	return j.written.Load(), j.dropped.Load()
}
