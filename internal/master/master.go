package master

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/bus"
	"github.com/taoyao-code/mocobus/internal/metrics"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
	"github.com/taoyao-code/mocobus/internal/serial"
	"github.com/taoyao-code/mocobus/internal/transceiver"
)

// Config 主站配置
type Config struct {
	Timeout         time.Duration // 单次尝试等待应答
	MaxRetries      int           // 超时后重发次数，总写入 = 1 + MaxRetries
	StaleAfter      time.Duration // 超过该时长未应答即驱逐，0 关闭
	SweepInterval   time.Duration
	PollInterval    time.Duration // 状态轮询周期，0 关闭
	DiscoverFrom    byte
	DiscoverTo      byte
	DiscoverRetries int
	FramesPerSec    int // 出站限速，0 不限
	EventBuffer     int // 订阅默认缓冲
}

// DefaultConfig 与节点固件的 100~200ms 主站超时一致
func DefaultConfig() Config {
	return Config{
		Timeout:         150 * time.Millisecond,
		MaxRetries:      2,
		StaleAfter:      10 * time.Second,
		SweepInterval:   time.Second,
		PollInterval:    2 * time.Second,
		DiscoverFrom:    bus.MinUnicast,
		DiscoverTo:      32,
		DiscoverRetries: 0,
		FramesPerSec:    200,
		EventBuffer:     defaultEventBuffer,
	}
}

// Option 配置项
type Option func(*Master)

func WithLogger(l *zap.Logger) Option {
	return func(m *Master) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(bm *metrics.BusMetrics) Option {
	return func(m *Master) { m.m = bm }
}

func WithObserver(o Observer) Option {
	return func(m *Master) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithClock 测试注入时钟
func WithClock(now func() time.Time) Option {
	return func(m *Master) { m.now = now }
}

// pending 某节点上唯一的在途请求
type pending struct {
	opcode moco.Opcode
	respC  chan reply
}

type reply struct {
	cmd moco.Command
	err error
}

// Master 总线主站：节点表与轴表的唯一写入者
type Master struct {
	cfg       Config
	tx        *transceiver.Transceiver
	logger    *zap.Logger
	m         *metrics.BusMetrics
	limiter   *rate.Limiter
	axes      *axis.Table
	reg       *registry
	broker    *Broker
	observers []Observer
	now       func() time.Time

	slotsMu sync.Mutex
	slots   map[byte]chan struct{}

	pendMu  sync.Mutex
	pending map[byte]*pending

	startOnce sync.Once
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New 创建主站；axes 为空时使用空轴表
func New(tx *transceiver.Transceiver, axes *axis.Table, cfg Config, opts ...Option) *Master {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.DiscoverFrom < bus.MinUnicast {
		cfg.DiscoverFrom = bus.MinUnicast
	}
	if cfg.DiscoverTo < cfg.DiscoverFrom {
		cfg.DiscoverTo = cfg.DiscoverFrom
	}
	if axes == nil {
		axes = axis.NewTable(nil, axis.Limits{})
	}

	m := &Master{
		cfg:     cfg,
		tx:      tx,
		logger:  zap.NewNop(),
		axes:    axes,
		reg:     newRegistry(),
		now:     time.Now,
		slots:   make(map[byte]chan struct{}),
		pending: make(map[byte]*pending),
		closed:  make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With(zap.String("component", "bus_master"))
	m.broker = NewBroker(cfg.EventBuffer, m.m)

	lim := rate.Inf
	burst := 1
	if cfg.FramesPerSec > 0 {
		lim = rate.Limit(cfg.FramesPerSec)
		burst = max(1, cfg.FramesPerSec/20)
	}
	m.limiter = rate.NewLimiter(lim, burst)
	return m
}

// Start 启动收发器、应答分发、驱逐与轮询；ctx 结束时停止后台循环
func (m *Master) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.tx.Start()

		m.wg.Add(1)
		go m.dispatchLoop()

		if m.cfg.StaleAfter > 0 {
			m.wg.Add(1)
			go m.sweepLoop(ctx)
		}
		if m.cfg.PollInterval > 0 {
			m.wg.Add(1)
			go m.pollLoop(ctx)
		}
		m.logger.Info("bus master started",
			zap.Duration("timeout", m.cfg.Timeout),
			zap.Int("max_retries", m.cfg.MaxRetries),
			zap.Duration("stale_after", m.cfg.StaleAfter),
			zap.Duration("poll_interval", m.cfg.PollInterval))
	})
}

// Close 关闭链路：所有在途请求以 ErrConnectionClosed 失败，节点表清空
func (m *Master) Close() error {
	m.shutdown("closed")
	err := m.tx.Close()
	m.wg.Wait()
	return err
}

// Done 主站关闭通知
func (m *Master) Done() <-chan struct{} { return m.closed }

func (m *Master) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *Master) shutdown(reason string) {
	m.closeOnce.Do(func() {
		close(m.closed)
		now := m.now()
		for _, addr := range m.reg.clear() {
			m.m.Evicted(reason)
			m.notifyEvicted(addr, reason)
		}
		m.m.SetOnline(0)
		for _, st := range m.axes.MarkAllDisconnected(now) {
			m.publish(st)
		}
		m.broker.Close()
		m.logger.Info("bus master closed", zap.String("reason", reason))
	})
}

// Request 发出命令；单播等待应答（含重试），广播只写出
func (m *Master) Request(ctx context.Context, cmd moco.Command) (moco.Command, error) {
	return m.request(ctx, cmd, m.cfg.MaxRetries, false)
}

func (m *Master) request(ctx context.Context, cmd moco.Command, retries int, quiet bool) (moco.Command, error) {
	if err := bus.ValidateRequest(cmd); err != nil {
		return moco.Command{}, err
	}
	if m.isClosed() {
		return moco.Command{}, ErrConnectionClosed
	}
	raw, err := moco.Encode(cmd)
	if err != nil {
		return moco.Command{}, err
	}

	start := m.now()
	if !bus.ExpectsReply(cmd) {
		err := m.write(ctx, raw)
		result := ResultBroadcast
		if err != nil {
			result = m.failResult(err)
		}
		m.record(cmd, 1, result, err, start)
		return moco.Command{}, err
	}
	return m.exchange(ctx, cmd, raw, retries, quiet, start)
}

// exchange 单个节点的请求状态机：Idle -> Sent -> Acked | TimedOut | NackReceived
func (m *Master) exchange(ctx context.Context, cmd moco.Command, raw []byte, retries int, quiet bool, start time.Time) (moco.Command, error) {
	addr, op := cmd.Address, cmd.Opcode

	release, err := m.acquire(ctx, addr)
	if err != nil {
		m.record(cmd, 0, m.failResult(err), err, start)
		return moco.Command{}, err
	}
	defer release()

	p := &pending{opcode: op, respC: make(chan reply, 1)}
	m.setPending(addr, p)
	defer m.clearPending(addr, p)

	attempts := 0
	for attempts <= retries {
		if attempts > 0 {
			m.m.Retry(op.String())
			if !quiet {
				m.logger.Debug("request retry", zap.Uint8("addr", addr), zap.String("opcode", op.String()), zap.Int("attempt", attempts+1))
			}
		}
		attempts++

		if err := m.write(ctx, raw); err != nil {
			m.reg.setState(addr, StateIdle, op.String())
			m.record(cmd, attempts, m.failResult(err), err, start)
			return moco.Command{}, err
		}
		m.reg.setState(addr, StateSent, op.String())

		timer := time.NewTimer(m.cfg.Timeout)
		select {
		case r := <-p.respC:
			timer.Stop()
			return m.complete(cmd, r, attempts, start)
		case <-timer.C:
			m.reg.setState(addr, StateTimedOut, op.String())
		case <-ctx.Done():
			timer.Stop()
			m.reg.setState(addr, StateIdle, op.String())
			m.record(cmd, attempts, ResultCanceled, ctx.Err(), start)
			return moco.Command{}, ctx.Err()
		case <-m.closed:
			timer.Stop()
			m.record(cmd, attempts, ResultClosed, ErrConnectionClosed, start)
			return moco.Command{}, ErrConnectionClosed
		}
	}

	terr := &TimeoutError{Address: addr, Opcode: op, Attempts: attempts}
	m.record(cmd, attempts, ResultTimeout, terr, start)
	if !quiet {
		m.logger.Warn("node unreachable", zap.Uint8("addr", addr), zap.String("opcode", op.String()), zap.Int("attempts", attempts))
	}
	m.evict(addr, "unreachable")
	return moco.Command{}, terr
}

func (m *Master) complete(cmd moco.Command, r reply, attempts int, start time.Time) (moco.Command, error) {
	addr, op := cmd.Address, cmd.Opcode
	m.reg.touch(addr, m.now())

	if r.err != nil {
		m.reg.setState(addr, StateIdle, op.String())
		perr := &ProtocolError{Kind: ProtoUnknownOpcode, Address: addr, Opcode: op, Err: r.err}
		m.record(cmd, attempts, ResultProtocolError, perr, start)
		return moco.Command{}, perr
	}
	if r.cmd.Opcode == moco.OpNack {
		_, reason, _ := r.cmd.NackInfo()
		m.reg.setState(addr, StateNackReceived, op.String())
		perr := &ProtocolError{Kind: ProtoNack, Address: addr, Opcode: op, Reason: reason}
		m.record(cmd, attempts, ResultNack, perr, start)
		return moco.Command{}, perr
	}
	m.reg.setState(addr, StateAcked, op.String())
	m.record(cmd, attempts, ResultAcked, nil, start)
	return r.cmd, nil
}

// write 限速后写出；写失败时所有轴标记断开
func (m *Master) write(ctx context.Context, raw []byte) error {
	if err := m.limiter.Wait(ctx); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		// 等到令牌时 ctx 已超时
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	err := m.tx.SendRaw(raw)
	if err == nil {
		return nil
	}
	var te *serial.TransportError
	if errors.As(err, &te) {
		m.logger.Error("transport write failed", zap.Error(err))
		for _, st := range m.axes.MarkAllDisconnected(m.now()) {
			m.publish(st)
		}
	}
	return err
}

func (m *Master) failResult(err error) string {
	var te *serial.TransportError
	switch {
	case errors.Is(err, ErrConnectionClosed):
		return ResultClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	case errors.As(err, &te):
		return ResultTransportError
	default:
		return ResultProtocolError
	}
}

// acquire 每个节点同一时刻只有一个在途请求
func (m *Master) acquire(ctx context.Context, addr byte) (func(), error) {
	m.slotsMu.Lock()
	s, ok := m.slots[addr]
	if !ok {
		s = make(chan struct{}, 1)
		m.slots[addr] = s
	}
	m.slotsMu.Unlock()

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, ErrConnectionClosed
	}
}

func (m *Master) setPending(addr byte, p *pending) {
	m.pendMu.Lock()
	m.pending[addr] = p
	m.pendMu.Unlock()
}

func (m *Master) clearPending(addr byte, p *pending) {
	m.pendMu.Lock()
	if m.pending[addr] == p {
		delete(m.pending, addr)
	}
	m.pendMu.Unlock()
}

// deliver 把应答交给对应节点的在途请求；不匹配的视为过期应答丢弃
func (m *Master) deliver(addr byte, r reply) bool {
	m.pendMu.Lock()
	p, ok := m.pending[addr]
	m.pendMu.Unlock()
	if !ok {
		return false
	}
	if r.err == nil && !matches(p.opcode, r.cmd) {
		return false
	}
	select {
	case p.respC <- r:
		return true
	default:
		return false
	}
}

// matches 应答是否对应该请求
func matches(req moco.Opcode, resp moco.Command) bool {
	switch resp.Opcode {
	case moco.OpNack:
		echo, _, err := resp.NackInfo()
		return err == nil && echo == req
	case moco.OpAck:
		echo, err := resp.AckEcho()
		return err == nil && echo == req
	case moco.OpStatus:
		return req == moco.OpQueryStatus
	case moco.OpIdentity:
		return req == moco.OpIdentify
	}
	return false
}

// evict 从节点表移除并把轴标记为断开
func (m *Master) evict(addr byte, reason string) {
	if m.reg.remove(addr) {
		m.m.Evicted(reason)
		m.m.SetOnline(m.reg.len())
		m.notifyEvicted(addr, reason)
		m.logger.Warn("node evicted", zap.Uint8("addr", addr), zap.String("reason", reason))
	}
	if st, ok := m.axes.MarkDisconnected(addr, m.now()); ok {
		m.publish(st)
	}
}

func (m *Master) publish(st axis.Status) {
	m.broker.Publish(st)
	for _, o := range m.observers {
		o.StatusChanged(st)
	}
}

func (m *Master) notifyEvicted(addr byte, reason string) {
	for _, o := range m.observers {
		o.NodeEvicted(addr, reason)
	}
}

func (m *Master) notifySeen(info NodeInfo) {
	for _, o := range m.observers {
		o.NodeSeen(info)
	}
}

func (m *Master) record(cmd moco.Command, attempts int, result string, err error, start time.Time) {
	now := m.now()
	d := now.Sub(start)
	m.m.Request(cmd.Opcode.String(), result, d)
	if len(m.observers) == 0 {
		return
	}
	rec := RequestRecord{
		Address:  cmd.Address,
		Opcode:   cmd.Opcode,
		Attempts: attempts,
		Result:   result,
		Duration: d,
		At:       now,
	}
	if err != nil {
		rec.Err = err.Error()
	}
	for _, o := range m.observers {
		o.RequestDone(rec)
	}
}
