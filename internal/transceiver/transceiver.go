package transceiver

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/metrics"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
	"github.com/taoyao-code/mocobus/internal/serial"
)

// ErrClosed 收发器已关闭
var ErrClosed = errors.New("transceiver closed")

const (
	defaultQueueSize = 256
	compactAfter     = 1024
	closeWait        = time.Second
)

// Inbound 入站命令
// Err 非空时为 *moco.DecodeError（校验通过但命令码未知或载荷非法），Command 只有帧头可信
type Inbound struct {
	Command moco.Command
	Err     error
}

// Stats 收发统计
type Stats struct {
	BytesIn      uint64
	BytesOut     uint64
	FramesOK     uint64
	FrameErrors  uint64 // 缓冲层错误：校验失败/畸形/重同步
	DecodeErrors uint64 // 命令码未知或载荷非法
	Dropped      uint64 // 入站队列满
}

// Option 配置项
type Option func(*Transceiver)

func WithLogger(l *zap.Logger) Option {
	return func(t *Transceiver) {
		if l != nil {
			t.logger = l
		}
	}
}

func WithMetrics(m *metrics.BusMetrics) Option {
	return func(t *Transceiver) { t.m = m }
}

func WithQueueSize(n int) Option {
	return func(t *Transceiver) {
		if n > 0 {
			t.queueSize = n
		}
	}
}

// Transceiver 一条链路上的双工收发器：独占缓冲区与端口
// 读循环是入站队列唯一的生产者
type Transceiver struct {
	port      io.ReadWriteCloser
	logger    *zap.Logger
	m         *metrics.BusMetrics
	queueSize int

	rmu      sync.Mutex // 保护 buf 与 inbound 的关闭
	buf      *moco.Buffer
	inbound  chan Inbound
	inClosed bool

	wmu sync.Mutex

	started   atomic.Bool
	closed    atomic.Bool
	doneC     chan struct{}
	finishOne sync.Once

	bytesIn, bytesOut, framesOK, frameErrs, decodeErrs, dropped atomic.Uint64
}

// New 创建收发器，调用 Start 后开始读取
func New(port io.ReadWriteCloser, opts ...Option) *Transceiver {
	t := &Transceiver{
		port:      port,
		logger:    zap.NewNop(),
		queueSize: defaultQueueSize,
		buf:       moco.NewBuffer(moco.MaxEncodedFrameLen),
		doneC:     make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	t.inbound = make(chan Inbound, t.queueSize)
	return t
}

// Start 启动读循环
func (t *Transceiver) Start() {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	go t.readLoop()
}

// Inbound 入站队列，链路结束后关闭
func (t *Transceiver) Inbound() <-chan Inbound { return t.inbound }

// Done 链路结束通知
func (t *Transceiver) Done() <-chan struct{} { return t.doneC }

func (t *Transceiver) readLoop() {
	defer t.finish()
	buf := make([]byte, 512)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.OnBytesReceived(buf[:n])
		}
		if err != nil {
			if !t.closed.Load() && !errors.Is(err, io.EOF) {
				t.logger.Warn("transport read failed", zap.Error(err))
			}
			return
		}
		// n == 0 && err == nil：读超时，继续
	}
}

// OnBytesReceived 追加字节并尽可能解出命令；坏帧只计数不中断
func (t *Transceiver) OnBytesReceived(p []byte) {
	t.rmu.Lock()
	defer t.rmu.Unlock()
	if t.inClosed || len(p) == 0 {
		return
	}
	t.bytesIn.Add(uint64(len(p)))
	t.m.AddReceived(len(p))

	t.buf.Append(p)
	for {
		f, st, kind := t.buf.TryExtractFrame()
		if st == moco.Incomplete {
			break
		}
		if st == moco.Invalid {
			t.frameErrs.Add(1)
			t.m.Frame(kind.String())
			if kind != moco.FrameResync {
				t.logger.Debug("frame dropped", zap.String("reason", kind.String()))
			}
			continue
		}

		cmd, err := moco.Decode(f)
		if err != nil {
			var de *moco.DecodeError
			if !errors.As(err, &de) || de.Kind == moco.DecodeBadChecksum {
				t.frameErrs.Add(1)
				t.m.Frame(moco.FrameBadChecksum.String())
				continue
			}
			t.decodeErrs.Add(1)
			t.m.Frame(de.Kind.String())
			t.push(Inbound{
				Command: moco.Command{Address: f.Address, Opcode: f.Opcode, Payload: append([]byte(nil), f.Payload...)},
				Err:     err,
			})
			continue
		}
		t.framesOK.Add(1)
		t.m.Frame("ok")
		t.push(Inbound{Command: cmd})
	}

	if t.buf.Len() == 0 || t.buf.Consumed() > compactAfter {
		t.buf.Compact()
	}
}

// push 不阻塞摄入路径，队列满时丢弃并计数
func (t *Transceiver) push(in Inbound) {
	select {
	case t.inbound <- in:
	default:
		t.dropped.Add(1)
		t.m.Dropped()
		t.logger.Warn("inbound queue full, command dropped",
			zap.Uint8("addr", in.Command.Address),
			zap.String("opcode", in.Command.Opcode.String()))
	}
}

// Send 编码并写出；写失败返回 *serial.TransportError，不在此重试
func (t *Transceiver) Send(cmd moco.Command) error {
	raw, err := moco.Encode(cmd)
	if err != nil {
		return err
	}
	return t.SendRaw(raw)
}

// SendRaw 写出已编码的帧，重传时保证字节一致
func (t *Transceiver) SendRaw(raw []byte) error {
	if t.closed.Load() {
		return &serial.TransportError{Op: "write", Err: ErrClosed}
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()

	n, err := t.port.Write(raw)
	if err == nil && n < len(raw) {
		err = io.ErrShortWrite
	}
	if n > 0 {
		t.bytesOut.Add(uint64(n))
		t.m.AddSent(n)
	}
	if err != nil {
		return &serial.TransportError{Op: "write", Err: err}
	}
	return nil
}

// Close 关闭端口并等待读循环退出
func (t *Transceiver) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if cerr := t.port.Close(); cerr != nil {
		err = &serial.TransportError{Op: "close", Err: cerr}
	}
	if !t.started.Load() {
		t.finish()
		return err
	}
	select {
	case <-t.doneC:
	case <-time.After(closeWait):
		t.logger.Warn("read loop did not exit after close")
		t.finish()
	}
	return err
}

func (t *Transceiver) finish() {
	t.finishOne.Do(func() {
		t.rmu.Lock()
		t.inClosed = true
		close(t.inbound)
		t.rmu.Unlock()
		close(t.doneC)
	})
}

// Stats 统计快照
func (t *Transceiver) Stats() Stats {
	return Stats{
		BytesIn:      t.bytesIn.Load(),
		BytesOut:     t.bytesOut.Load(),
		FramesOK:     t.framesOK.Load(),
		FrameErrors:  t.frameErrs.Load(),
		DecodeErrors: t.decodeErrs.Load(),
		Dropped:      t.dropped.Load(),
	}
}

// Connected 链路是否仍在工作
func (t *Transceiver) Connected() bool {
	if t.closed.Load() {
		return false
	}
	select {
	case <-t.doneC:
		return false
	default:
		return true
	}
}
