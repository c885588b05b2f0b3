package master

import (
	"sync"

	"github.com/google/uuid"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/metrics"
)

const defaultEventBuffer = 64

// Subscription 状态事件订阅；C 在 Cancel 或主站关闭后关闭
type Subscription struct {
	ID string
	C  <-chan axis.Status

	ch     chan axis.Status
	broker *Broker
}

// Cancel 取消订阅，可重复调用
func (s *Subscription) Cancel() {
	s.broker.remove(s.ID)
}

// Broker 状态事件扇出；订阅者过慢时丢弃最旧的事件，发布方永不阻塞
type Broker struct {
	mu         sync.Mutex
	subs       map[string]*Subscription
	closed     bool
	defaultBuf int
	m          *metrics.BusMetrics
}

// NewBroker 创建扇出器
func NewBroker(defaultBuf int, m *metrics.BusMetrics) *Broker {
	if defaultBuf <= 0 {
		defaultBuf = defaultEventBuffer
	}
	return &Broker{subs: make(map[string]*Subscription), defaultBuf: defaultBuf, m: m}
}

// Subscribe buffer<=0 使用默认缓冲；已关闭时返回已关闭的通道
func (b *Broker) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = b.defaultBuf
	}
	ch := make(chan axis.Status, buffer)
	s := &Subscription{ID: uuid.NewString(), C: ch, ch: ch, broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return s
	}
	b.subs[s.ID] = s
	return s
}

// Publish 非阻塞投递
func (b *Broker) Publish(st axis.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		select {
		case s.ch <- st:
			continue
		default:
		}
		// 满了：丢弃最旧的一条再投递
		select {
		case <-s.ch:
			b.m.SubscriberDrop()
		default:
		}
		select {
		case s.ch <- st:
		default:
			b.m.SubscriberDrop()
		}
	}
}

// Len 当前订阅数
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(s.ch)
	}
}

// Close 关闭所有订阅
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}
