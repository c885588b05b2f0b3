package master

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/bus"
)

// dispatchLoop 入站队列的唯一消费者；队列关闭即链路结束
func (m *Master) dispatchLoop() {
	defer m.wg.Done()
	for in := range m.tx.Inbound() {
		cmd := in.Command
		if in.Err != nil {
			if cmd.Opcode.Known() && !cmd.Opcode.IsResponse() {
				continue
			}
			// 节点发出了无法解码的应答，交给该节点的在途请求
			if !m.deliver(cmd.Address, reply{err: in.Err}) {
				m.logger.Debug("undecodable frame ignored", zap.Uint8("addr", cmd.Address), zap.Error(in.Err))
			}
			continue
		}
		if err := bus.ValidateResponse(cmd); err != nil {
			// 总线上其他主站的请求或自身回显
			continue
		}
		if !m.deliver(cmd.Address, reply{cmd: cmd}) {
			m.logger.Debug("unsolicited response dropped", zap.Uint8("addr", cmd.Address), zap.String("opcode", cmd.Opcode.String()))
		}
	}
	if !m.isClosed() {
		m.logger.Error("transport closed unexpectedly")
	}
	m.shutdown("transport_closed")
}

// sweepLoop 驱逐超时未应答的节点
func (m *Master) sweepLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.closed:
			return
		case <-ticker.C:
			m.sweepStale()
		}
	}
}

func (m *Master) sweepStale() {
	for _, addr := range m.reg.stale(m.now(), m.cfg.StaleAfter) {
		m.evict(addr, "stale")
	}
}

// pollLoop 周期查询已注册节点的状态，驱动订阅流
func (m *Master) pollLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.closed:
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *Master) pollOnce(ctx context.Context) {
	for _, addr := range m.reg.addresses() {
		if ctx.Err() != nil || m.isClosed() {
			return
		}
		if _, err := m.QueryStatus(ctx, addr); err != nil {
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Debug("status poll failed", zap.Uint8("addr", addr), zap.Error(err))
		}
	}
}
