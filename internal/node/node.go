package node

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/bus"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
	"github.com/taoyao-code/mocobus/internal/transceiver"
)

// State 节点生命周期
type State string

const (
	StateUnidentified State = "unidentified"
	StateIdentified   State = "identified" // 已应答识别请求
	StateActive       State = "active"     // 识别后处理过其他命令
)

// Responder 只应答、从不主动发起的能力
type Responder interface {
	Respond(cmd moco.Command) (moco.Command, bool)
}

var _ Responder = (*Node)(nil)

// HandlerFunc 命令处理；返回 false 表示不应答
type HandlerFunc func(n *Node, cmd moco.Command) (moco.Command, bool)

// Config 节点身份；Camera 非空时自动声明 CapCamera
type Config struct {
	Address      byte
	ID           string
	Version      uint16
	Capabilities byte
	Camera       Camera
}

// Node 总线从站
type Node struct {
	mu       sync.Mutex
	addr     byte
	identity moco.Identity
	state    State
	motor    Motor
	camera   Camera
	handlers map[moco.Opcode]HandlerFunc
	logger   *zap.Logger

	onAddressChange func(from, to byte)
}

// New 创建节点，注册默认命令处理
func New(cfg Config, motor Motor, logger *zap.Logger) *Node {
	if logger == nil {
		logger = zap.NewNop()
	}
	caps := cfg.Capabilities
	if cfg.Camera != nil {
		caps |= moco.CapCamera
	}
	n := &Node{
		addr: cfg.Address,
		identity: moco.Identity{
			Version:      cfg.Version,
			ID:           moco.SanitizeID(cfg.ID),
			Capabilities: caps,
		},
		state:    StateUnidentified,
		motor:    motor,
		camera:   cfg.Camera,
		handlers: make(map[moco.Opcode]HandlerFunc),
		logger:   logger.With(zap.String("component", "bus_node")),
	}
	n.Register(moco.OpIdentify, handleIdentify)
	n.Register(moco.OpQueryStatus, handleQueryStatus)
	n.Register(moco.OpMoveTo, handleMoveTo)
	n.Register(moco.OpStop, handleStop)
	n.Register(moco.OpSetParameter, handleSetParameter)
	n.Register(moco.OpChangeAddress, handleChangeAddress)
	n.Register(moco.OpProgramControl, handleProgramControl)
	n.Register(moco.OpHome, handleHome)
	n.Register(moco.OpCamera, handleCamera)
	return n
}

// Register 注册/覆盖命令处理
func (n *Node) Register(op moco.Opcode, h HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[op] = h
}

// OnAddressChange 地址变更回调
func (n *Node) OnAddressChange(fn func(from, to byte)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onAddressChange = fn
}

// Address 当前地址
func (n *Node) Address() byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addr
}

// State 当前状态
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Respond 处理一条已解码的命令
func (n *Node) Respond(cmd moco.Command) (moco.Command, bool) {
	n.mu.Lock()
	self := n.addr
	h, ok := n.handlers[cmd.Opcode]
	n.mu.Unlock()

	if cmd.Opcode.IsResponse() || !bus.Accepts(self, cmd.Address) {
		return moco.Command{}, false
	}
	broadcast := bus.IsBroadcast(cmd.Address)
	// 不可广播的命令以广播地址到达时直接丢弃，不执行
	if broadcast && !bus.Broadcastable(cmd.Opcode) {
		n.logger.Debug("non-broadcastable command ignored", zap.String("opcode", cmd.Opcode.String()))
		return moco.Command{}, false
	}
	if !ok {
		if broadcast {
			return moco.Command{}, false
		}
		return moco.NewNack(self, cmd.Opcode, moco.NackUnknownOpcode), true
	}

	resp, reply := h(n, cmd)
	if cmd.Opcode != moco.OpIdentify {
		n.activate()
	}
	// 广播永不应答
	if broadcast {
		return moco.Command{}, false
	}
	return resp, reply
}

// HandleInbound 处理入站项；解码失败但帧头可信时回复 Nack
func (n *Node) HandleInbound(in transceiver.Inbound) (moco.Command, bool) {
	if in.Err == nil {
		return n.Respond(in.Command)
	}
	var de *moco.DecodeError
	if !errors.As(in.Err, &de) {
		return moco.Command{}, false
	}
	self := n.Address()
	if de.Opcode.IsResponse() || de.Address != self {
		return moco.Command{}, false
	}
	switch de.Kind {
	case moco.DecodeUnknownOpcode:
		return moco.NewNack(self, de.Opcode, moco.NackUnknownOpcode), true
	case moco.DecodeMalformedPayload:
		n.logger.Debug("malformed payload", zap.String("opcode", de.Opcode.String()), zap.Error(in.Err))
		return moco.NewNack(self, de.Opcode, moco.NackBadPayload), true
	}
	return moco.Command{}, false
}

func (n *Node) activate() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateIdentified {
		n.state = StateActive
	}
}

func handleIdentify(n *Node, _ moco.Command) (moco.Command, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateUnidentified {
		n.state = StateIdentified
	}
	return moco.NewIdentity(n.addr, n.identity), true
}

func handleQueryStatus(n *Node, _ moco.Command) (moco.Command, bool) {
	return moco.NewStatus(n.Address(), n.motor.Status()), true
}

func handleMoveTo(n *Node, cmd moco.Command) (moco.Command, bool) {
	self := n.Address()
	target, err := cmd.MoveTarget()
	if err != nil {
		return moco.NewNack(self, cmd.Opcode, moco.NackBadPayload), true
	}
	if err := n.motor.MoveTo(target); err != nil {
		return moco.NewNack(self, cmd.Opcode, moco.NackRejected), true
	}
	return moco.NewAck(self, cmd.Opcode), true
}

func handleStop(n *Node, cmd moco.Command) (moco.Command, bool) {
	n.motor.Stop()
	return moco.NewAck(n.Address(), cmd.Opcode), true
}

func handleSetParameter(n *Node, cmd moco.Command) (moco.Command, bool) {
	self := n.Address()
	p, v, err := cmd.Parameter()
	if err != nil {
		return moco.NewNack(self, cmd.Opcode, moco.NackBadPayload), true
	}
	if err := n.motor.SetParameter(p, v); err != nil {
		n.logger.Debug("parameter rejected", zap.Uint8("param", uint8(p)), zap.Int32("value", v), zap.Error(err))
		return moco.NewNack(self, cmd.Opcode, moco.NackRejected), true
	}
	return moco.NewAck(self, cmd.Opcode), true
}

// handleChangeAddress 用旧地址应答，随后切换
func handleChangeAddress(n *Node, cmd moco.Command) (moco.Command, bool) {
	to, err := cmd.NewAddress()
	n.mu.Lock()
	from := n.addr
	if err != nil || !bus.IsUnicast(to) {
		n.mu.Unlock()
		return moco.NewNack(from, cmd.Opcode, moco.NackRejected), true
	}
	n.addr = to
	cb := n.onAddressChange
	n.mu.Unlock()

	n.logger.Info("address changed", zap.Uint8("from", from), zap.Uint8("to", to))
	if cb != nil {
		cb(from, to)
	}
	return moco.NewAck(from, cmd.Opcode), true
}

func handleProgramControl(n *Node, cmd moco.Command) (moco.Command, bool) {
	action, err := cmd.ProgramAction()
	if err != nil {
		return moco.NewNack(n.Address(), cmd.Opcode, moco.NackBadPayload), true
	}
	n.motor.Program(action)
	return moco.NewAck(n.Address(), cmd.Opcode), true
}

func handleHome(n *Node, cmd moco.Command) (moco.Command, bool) {
	self := n.Address()
	action, err := cmd.HomeAction()
	if err != nil {
		return moco.NewNack(self, cmd.Opcode, moco.NackBadPayload), true
	}
	if err := n.motor.Home(action); err != nil {
		n.logger.Debug("home rejected", zap.String("action", action.String()), zap.Error(err))
		return moco.NewNack(self, cmd.Opcode, moco.NackRejected), true
	}
	return moco.NewAck(self, cmd.Opcode), true
}

// handleCamera 无相机的节点一律拒绝
func handleCamera(n *Node, cmd moco.Command) (moco.Command, bool) {
	self := n.Address()
	action, v, err := cmd.CameraControl()
	if err != nil {
		return moco.NewNack(self, cmd.Opcode, moco.NackBadPayload), true
	}
	if n.camera == nil {
		return moco.NewNack(self, cmd.Opcode, moco.NackRejected), true
	}
	if err := n.camera.Control(action, v); err != nil {
		n.logger.Debug("camera rejected", zap.String("action", action.String()), zap.Int32("value", v), zap.Error(err))
		return moco.NewNack(self, cmd.Opcode, moco.NackRejected), true
	}
	return moco.NewAck(self, cmd.Opcode), true
}
