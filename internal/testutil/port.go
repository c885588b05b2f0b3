// Package testutil 测试用的串口替身
package testutil

import (
	"io"
	"sync"
)

// MockPort 记录所有写入；OnWrite 的返回值作为对端回复注入读端
type MockPort struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	pending  []byte
	dead     bool

	// OnWrite 在写锁之外调用
	OnWrite func(p []byte) []byte

	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMockPort 创建替身端口
func NewMockPort() *MockPort {
	return &MockPort{
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (p *MockPort) Read(b []byte) (int, error) {
	for {
		p.mu.Lock()
		if len(p.pending) > 0 {
			n := copy(b, p.pending)
			p.pending = p.pending[n:]
			p.mu.Unlock()
			return n, nil
		}
		if p.dead {
			p.mu.Unlock()
			return 0, io.EOF
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-p.closed:
		}
	}
}

func (p *MockPort) Write(b []byte) (int, error) {
	dup := append([]byte(nil), b...)
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	p.writes = append(p.writes, dup)
	err := p.writeErr
	onWrite := p.OnWrite
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if onWrite != nil {
		if reply := onWrite(dup); len(reply) > 0 {
			p.Feed(reply)
		}
	}
	return len(b), nil
}

// Feed 注入待读取的字节
func (p *MockPort) Feed(b []byte) {
	p.mu.Lock()
	p.pending = append(p.pending, b...)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// SetWriteErr 之后的写入都返回该错误
func (p *MockPort) SetWriteErr(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// Writes 写入记录副本
func (p *MockPort) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// WriteCount 写入次数
func (p *MockPort) WriteCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

func (p *MockPort) Flush() error { return nil }

func (p *MockPort) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.dead = true
		p.mu.Unlock()
		close(p.closed)
	})
	return nil
}
