package master

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/bus"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
	"github.com/taoyao-code/mocobus/internal/serial"
	"github.com/taoyao-code/mocobus/internal/transceiver"
)

// DiscoverNodes 逐个地址发送识别请求；无应答的地址跳过
// 链路关闭、写失败或 ctx 结束时返回已发现的节点和错误
func (m *Master) DiscoverNodes(ctx context.Context) ([]NodeInfo, error) {
	var found []NodeInfo
	for a := int(m.cfg.DiscoverFrom); a <= int(m.cfg.DiscoverTo); a++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		addr := byte(a)
		resp, err := m.request(ctx, moco.NewIdentify(addr), m.cfg.DiscoverRetries, true)
		if err != nil {
			var te *serial.TransportError
			if errors.Is(err, ErrConnectionClosed) || errors.As(err, &te) || ctx.Err() != nil {
				return found, err
			}
			continue
		}
		id, err := resp.Identity()
		if err != nil {
			continue
		}
		info := NodeInfo{
			Address:      addr,
			ID:           id.ID,
			Version:      id.Version,
			Capabilities: id.Capabilities,
			LastSeen:     m.now(),
			Request:      StateAcked,
			LastOpcode:   moco.OpIdentify.String(),
		}
		m.reg.upsert(info)
		m.axes.Bind(addr)
		m.m.SetOnline(m.reg.len())
		m.notifySeen(info)
		found = append(found, info)
	}
	m.logger.Info("discovery finished",
		zap.Uint8("from", m.cfg.DiscoverFrom),
		zap.Uint8("to", m.cfg.DiscoverTo),
		zap.Int("found", len(found)))
	return found, nil
}

// MoveAxis 先本地检查限位，越界返回 *axis.RangeError 且不写总线
func (m *Master) MoveAxis(ctx context.Context, addr byte, target int32) error {
	if err := m.axes.CheckTarget(addr, target); err != nil {
		return err
	}
	if _, err := m.Request(ctx, moco.NewMoveTo(addr, target)); err != nil {
		return err
	}
	var st axis.Status
	err := m.axes.Update(addr, func(a *axis.Axis) error {
		if err := a.SetTarget(target); err != nil {
			return err
		}
		if a.Position != target {
			a.State = axis.StateMoving
		}
		st = a.Snapshot(m.now(), m.cfg.StaleAfter)
		return nil
	})
	if err == nil {
		m.publish(st)
	}
	return err
}

// QueryStatus 查询并更新轴状态
func (m *Master) QueryStatus(ctx context.Context, addr byte) (axis.Status, error) {
	resp, err := m.Request(ctx, moco.NewQueryStatus(addr))
	if err != nil {
		return axis.Status{}, err
	}
	rep, err := resp.Status()
	if err != nil {
		return axis.Status{}, err
	}
	m.axes.Bind(addr)
	var st axis.Status
	_ = m.axes.Update(addr, func(a *axis.Axis) error {
		a.ApplyStatus(rep, m.now())
		st = a.Snapshot(m.now(), m.cfg.StaleAfter)
		return nil
	})
	m.publish(st)
	return st, nil
}

// StopAxis 立即停止；addr 为广播地址时停止所有节点
func (m *Master) StopAxis(ctx context.Context, addr byte) error {
	_, err := m.Request(ctx, moco.NewStop(addr))
	return err
}

// SetParameter 设置电机参数
func (m *Master) SetParameter(ctx context.Context, addr byte, p moco.Param, value int32) error {
	if _, err := m.Request(ctx, moco.NewSetParameter(addr, p, value)); err != nil {
		return err
	}
	if p == moco.ParamMaxVelocity || p == moco.ParamMaxAccel {
		_ = m.axes.Update(addr, func(a *axis.Axis) error {
			if p == moco.ParamMaxVelocity {
				a.Limits.MaxVelocity = value
			} else {
				a.Limits.MaxAccel = value
			}
			return nil
		})
	}
	return nil
}

// ChangeAddress 节点用旧地址应答后切换到新地址
func (m *Master) ChangeAddress(ctx context.Context, from, to byte) error {
	if !bus.IsUnicast(to) {
		return fmt.Errorf("%w: %d", bus.ErrInvalidAddress, to)
	}
	if m.reg.has(to) {
		return fmt.Errorf("%w: %d", ErrAddressInUse, to)
	}
	if _, err := m.Request(ctx, moco.NewChangeAddress(from, to)); err != nil {
		return err
	}
	m.reg.rename(from, to)
	m.axes.Rebind(from, to)
	if info, ok := m.reg.get(to); ok {
		m.notifyEvicted(from, "readdressed")
		m.notifySeen(info)
	}
	m.logger.Info("node readdressed", zap.Uint8("from", from), zap.Uint8("to", to))
	return nil
}

// Home set 把当前位置记为原点；go 驶向原点，先按限位检查 0
func (m *Master) Home(ctx context.Context, addr byte, action moco.HomeAction) error {
	if action == moco.HomeGo {
		if err := m.axes.CheckTarget(addr, 0); err != nil {
			return err
		}
	}
	if _, err := m.Request(ctx, moco.NewHome(addr, action)); err != nil {
		return err
	}
	var st axis.Status
	err := m.axes.Update(addr, func(a *axis.Axis) error {
		switch action {
		case moco.HomeSet:
			a.Target -= a.Position
			a.Position = 0
		case moco.HomeGo:
			a.Target = 0
			if a.Position != 0 {
				a.State = axis.StateMoving
			}
		}
		st = a.Snapshot(m.now(), m.cfg.StaleAfter)
		return nil
	})
	if err != nil {
		// 节点已执行，本地未登记该轴
		return nil
	}
	m.publish(st)
	return nil
}

// Camera 相机控制；节点未识别或未声明 CapCamera 时返回 ErrNotCapable
func (m *Master) Camera(ctx context.Context, addr byte, action moco.CameraAction, value int32) error {
	info, ok := m.reg.get(addr)
	if !ok || info.Capabilities&moco.CapCamera == 0 {
		return fmt.Errorf("%w: node %d camera", ErrNotCapable, addr)
	}
	_, err := m.Request(ctx, moco.NewCamera(addr, action, value))
	return err
}

// Broadcast 程序控制广播，节点不应答
func (m *Master) Broadcast(ctx context.Context, action moco.ProgramAction) error {
	_, err := m.Request(ctx, moco.NewProgramControl(bus.BroadcastAddress, action))
	return err
}

// SubscribeStatus 状态事件流；过慢的订阅者丢弃最旧事件
// 取消后可重新订阅，主站关闭时通道关闭
func (m *Master) SubscribeStatus(buffer int) *Subscription {
	return m.broker.Subscribe(buffer)
}

// Nodes 节点表快照
func (m *Master) Nodes() []NodeInfo { return m.reg.list() }

// Node 单个节点
func (m *Master) Node(addr byte) (NodeInfo, bool) { return m.reg.get(addr) }

// Axes 轴表快照
func (m *Master) Axes() []axis.Status { return m.axes.All(m.now(), m.cfg.StaleAfter) }

// Axis 单个轴快照
func (m *Master) Axis(addr byte) (axis.Status, bool) {
	return m.axes.Get(addr, m.now(), m.cfg.StaleAfter)
}

// Connected 链路是否可用
func (m *Master) Connected() bool {
	return !m.isClosed() && m.tx.Connected()
}

// LinkStats 收发器统计
func (m *Master) LinkStats() transceiver.Stats { return m.tx.Stats() }

// NodeCount 在线节点数
func (m *Master) NodeCount() int { return m.reg.len() }
