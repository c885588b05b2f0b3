package bus

import (
	"io"
	"sync"
)

// Loopback 内存中的共享总线，用于测试与仿真
// 任一端点写入的字节会投递给其他所有端点（模拟 RS485 半双工线路）
type Loopback struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*endpoint]struct{}
}

// NewLoopback 创建内存总线
func NewLoopback() *Loopback {
	return &Loopback{endpoints: make(map[*endpoint]struct{})}
}

// Open 挂接一个新端点
func (l *Loopback) Open() io.ReadWriteCloser {
	ep := &endpoint{
		bus:    l,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		ep.shutdown()
		return ep
	}
	l.endpoints[ep] = struct{}{}
	return ep
}

// Close 关闭总线并断开所有端点
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for ep := range l.endpoints {
		ep.shutdown()
	}
	l.endpoints = nil
	return nil
}

type endpoint struct {
	bus    *Loopback
	mu     sync.Mutex
	buf    []byte
	dead   bool
	notify chan struct{}
	closed chan struct{}
}

// Read 阻塞直到有数据或端点关闭
func (e *endpoint) Read(p []byte) (int, error) {
	for {
		e.mu.Lock()
		if len(e.buf) > 0 {
			n := copy(p, e.buf)
			e.buf = e.buf[n:]
			e.mu.Unlock()
			return n, nil
		}
		if e.dead {
			e.mu.Unlock()
			return 0, io.EOF
		}
		e.mu.Unlock()

		select {
		case <-e.notify:
		case <-e.closed:
		}
	}
}

// Write 投递给除自己以外的所有端点
func (e *endpoint) Write(p []byte) (int, error) {
	e.mu.Lock()
	dead := e.dead
	e.mu.Unlock()
	if dead {
		return 0, io.ErrClosedPipe
	}

	e.bus.mu.RLock()
	if e.bus.closed {
		e.bus.mu.RUnlock()
		return 0, io.ErrClosedPipe
	}
	targets := make([]*endpoint, 0, len(e.bus.endpoints))
	for ep := range e.bus.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	e.bus.mu.RUnlock()

	for _, t := range targets {
		t.deliver(p)
	}
	return len(p), nil
}

func (e *endpoint) deliver(p []byte) {
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return
	}
	e.buf = append(e.buf, p...)
	e.mu.Unlock()
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// Close 从总线摘除
func (e *endpoint) Close() error {
	e.bus.mu.Lock()
	if e.bus.endpoints != nil {
		delete(e.bus.endpoints, e)
	}
	e.bus.mu.Unlock()
	e.shutdown()
	return nil
}

func (e *endpoint) shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return
	}
	e.dead = true
	close(e.closed)
}
