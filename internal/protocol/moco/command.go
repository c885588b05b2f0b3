package moco

import (
	"encoding/binary"
	"fmt"
)

// Command 解码后的命令（或待编码的命令）
type Command struct {
	Address byte
	Opcode  Opcode
	Payload []byte
}

func (c Command) String() string {
	return fmt.Sprintf("cmd{addr=%d op=%s len=%d}", c.Address, c.Opcode, len(c.Payload))
}

// Param 可设置的电机参数
type Param byte

const (
	ParamMaxVelocity Param = 0x01 // 步/秒
	ParamMaxAccel    Param = 0x02 // 步/秒²
	ParamMicrostep   Param = 0x03 // 1,2,4,8,16
	ParamSleep       Param = 0x04 // 0/1
	ParamBacklash    Param = 0x05 // 步
)

// ProgramAction 广播程序控制
type ProgramAction byte

const (
	ProgramStart ProgramAction = 1
	ProgramStop  ProgramAction = 2
	ProgramPause ProgramAction = 3
)

func (a ProgramAction) String() string {
	switch a {
	case ProgramStart:
		return "start"
	case ProgramStop:
		return "stop"
	case ProgramPause:
		return "pause"
	default:
		return fmt.Sprintf("action(%d)", byte(a))
	}
}

// HomeAction 原点操作
type HomeAction byte

const (
	HomeSet HomeAction = 1 // 当前位置设为原点
	HomeGo  HomeAction = 2 // 返回原点
)

func (a HomeAction) String() string {
	switch a {
	case HomeSet:
		return "set"
	case HomeGo:
		return "go"
	default:
		return fmt.Sprintf("home(%d)", byte(a))
	}
}

// CameraAction 相机控制项，值为 int32（毫秒或次数）
type CameraAction byte

const (
	CameraEnable   CameraAction = 1 // 0/1
	CameraExpose   CameraAction = 2 // 立即曝光，值忽略
	CameraInterval CameraAction = 3 // 拍摄间隔 ms
	CameraExposure CameraAction = 4 // 曝光时长 ms
	CameraFocus    CameraAction = 5 // 对焦时长 ms
	CameraDelay    CameraAction = 6 // 曝光后等待 ms
	CameraMaxShots CameraAction = 7 // 最大张数，0 不限
)

var cameraActionNames = map[CameraAction]string{
	CameraEnable:   "enable",
	CameraExpose:   "expose",
	CameraInterval: "interval",
	CameraExposure: "exposure",
	CameraFocus:    "focus",
	CameraDelay:    "delay",
	CameraMaxShots: "max_shots",
}

func (a CameraAction) String() string {
	if n, ok := cameraActionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("camera(%d)", byte(a))
}

// NackReason 拒绝原因
type NackReason byte

const (
	NackUnknownOpcode NackReason = 1
	NackBadPayload    NackReason = 2
	NackRejected      NackReason = 3
)

func (r NackReason) String() string {
	switch r {
	case NackUnknownOpcode:
		return "unknown_opcode"
	case NackBadPayload:
		return "bad_payload"
	case NackRejected:
		return "rejected"
	default:
		return fmt.Sprintf("reason(%d)", byte(r))
	}
}

// MotionState 节点上报的运动状态
type MotionState byte

const (
	MotionIdle   MotionState = 0
	MotionMoving MotionState = 1
	MotionFault  MotionState = 2
)

// 节点能力位
const (
	CapMotor  byte = 0x01
	CapCamera byte = 0x02
)

// IDLen 节点标识固定 8 个 ASCII 字符
const IDLen = 8

// StatusReport 状态应答：position(4) + velocity(4) + state(1) + faults(1)
type StatusReport struct {
	Position int32
	Velocity int32
	State    MotionState
	Faults   byte
}

// Identity 识别应答：version(2) + id(8) + caps(1)
type Identity struct {
	Version      uint16
	ID           string
	Capabilities byte
}

// 各命令码期望的载荷长度，-1 表示不定长
var payloadLens = map[Opcode]int{
	OpIdentify:       0,
	OpQueryStatus:    0,
	OpMoveTo:         4,
	OpStop:           0,
	OpSetParameter:   5,
	OpChangeAddress:  1,
	OpProgramControl: 1,
	OpHome:           1,
	OpCamera:         5,
	OpAck:            1,
	OpNack:           2,
	OpStatus:         10,
	OpIdentity:       3 + IDLen,
}

func validatePayload(op Opcode, p []byte) error {
	want, ok := payloadLens[op]
	if !ok {
		return ErrUnknownOpcode
	}
	if want >= 0 && len(p) != want {
		return fmt.Errorf("%w: %s expects %d bytes, got %d", ErrMalformedPayload, op, want, len(p))
	}
	switch op {
	case OpProgramControl:
		if a := ProgramAction(p[0]); a < ProgramStart || a > ProgramPause {
			return fmt.Errorf("%w: program action %d", ErrMalformedPayload, p[0])
		}
	case OpHome:
		if a := HomeAction(p[0]); a != HomeSet && a != HomeGo {
			return fmt.Errorf("%w: home action %d", ErrMalformedPayload, p[0])
		}
	case OpCamera:
		if _, ok := cameraActionNames[CameraAction(p[0])]; !ok {
			return fmt.Errorf("%w: camera action %d", ErrMalformedPayload, p[0])
		}
	case OpNack:
		if r := NackReason(p[1]); r < NackUnknownOpcode || r > NackRejected {
			return fmt.Errorf("%w: nack reason %d", ErrMalformedPayload, p[1])
		}
	case OpStatus:
		if s := MotionState(p[8]); s > MotionFault {
			return fmt.Errorf("%w: motion state %d", ErrMalformedPayload, p[8])
		}
	}
	return nil
}

func NewIdentify(addr byte) Command    { return Command{Address: addr, Opcode: OpIdentify} }
func NewQueryStatus(addr byte) Command { return Command{Address: addr, Opcode: OpQueryStatus} }
func NewStop(addr byte) Command        { return Command{Address: addr, Opcode: OpStop} }

func NewMoveTo(addr byte, target int32) Command {
	p := make([]byte, 4)
	binary.BigEndian.PutUint32(p, uint32(target))
	return Command{Address: addr, Opcode: OpMoveTo, Payload: p}
}

func NewSetParameter(addr byte, param Param, value int32) Command {
	p := make([]byte, 5)
	p[0] = byte(param)
	binary.BigEndian.PutUint32(p[1:], uint32(value))
	return Command{Address: addr, Opcode: OpSetParameter, Payload: p}
}

func NewChangeAddress(addr, newAddr byte) Command {
	return Command{Address: addr, Opcode: OpChangeAddress, Payload: []byte{newAddr}}
}

func NewProgramControl(addr byte, action ProgramAction) Command {
	return Command{Address: addr, Opcode: OpProgramControl, Payload: []byte{byte(action)}}
}

func NewHome(addr byte, action HomeAction) Command {
	return Command{Address: addr, Opcode: OpHome, Payload: []byte{byte(action)}}
}

func NewCamera(addr byte, action CameraAction, value int32) Command {
	p := make([]byte, 5)
	p[0] = byte(action)
	binary.BigEndian.PutUint32(p[1:], uint32(value))
	return Command{Address: addr, Opcode: OpCamera, Payload: p}
}

func NewAck(from byte, echo Opcode) Command {
	return Command{Address: from, Opcode: OpAck, Payload: []byte{byte(echo)}}
}

func NewNack(from byte, echo Opcode, reason NackReason) Command {
	return Command{Address: from, Opcode: OpNack, Payload: []byte{byte(echo), byte(reason)}}
}

func NewStatus(from byte, r StatusReport) Command {
	p := make([]byte, 10)
	binary.BigEndian.PutUint32(p[0:4], uint32(r.Position))
	binary.BigEndian.PutUint32(p[4:8], uint32(r.Velocity))
	p[8] = byte(r.State)
	p[9] = r.Faults
	return Command{Address: from, Opcode: OpStatus, Payload: p}
}

func NewIdentity(from byte, id Identity) Command {
	p := make([]byte, 3+IDLen)
	binary.BigEndian.PutUint16(p[0:2], id.Version)
	copy(p[2:2+IDLen], SanitizeID(id.ID))
	p[2+IDLen] = id.Capabilities
	return Command{Address: from, Opcode: OpIdentity, Payload: p}
}

// SanitizeID 补齐/截断到 8 字符，不可打印字符替换为 '0'
func SanitizeID(id string) string {
	out := make([]byte, IDLen)
	for i := range out {
		c := byte(' ')
		if i < len(id) {
			c = id[i]
		}
		if c < 32 || c > 126 {
			c = '0'
		}
		out[i] = c
	}
	return string(out)
}

// MoveTarget 解析 move_to 载荷
func (c Command) MoveTarget() (int32, error) {
	if err := c.expect(OpMoveTo); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(c.Payload)), nil
}

// Parameter 解析 set_parameter 载荷
func (c Command) Parameter() (Param, int32, error) {
	if err := c.expect(OpSetParameter); err != nil {
		return 0, 0, err
	}
	return Param(c.Payload[0]), int32(binary.BigEndian.Uint32(c.Payload[1:])), nil
}

// NewAddress 解析 change_address 载荷
func (c Command) NewAddress() (byte, error) {
	if err := c.expect(OpChangeAddress); err != nil {
		return 0, err
	}
	return c.Payload[0], nil
}

// ProgramAction 解析 program_control 载荷
func (c Command) ProgramAction() (ProgramAction, error) {
	if err := c.expect(OpProgramControl); err != nil {
		return 0, err
	}
	return ProgramAction(c.Payload[0]), nil
}

// HomeAction 解析 home 载荷
func (c Command) HomeAction() (HomeAction, error) {
	if err := c.expect(OpHome); err != nil {
		return 0, err
	}
	return HomeAction(c.Payload[0]), nil
}

// CameraControl 解析 camera 载荷
func (c Command) CameraControl() (CameraAction, int32, error) {
	if err := c.expect(OpCamera); err != nil {
		return 0, 0, err
	}
	return CameraAction(c.Payload[0]), int32(binary.BigEndian.Uint32(c.Payload[1:])), nil
}

// AckEcho 解析 ack 载荷
func (c Command) AckEcho() (Opcode, error) {
	if err := c.expect(OpAck); err != nil {
		return 0, err
	}
	return Opcode(c.Payload[0]), nil
}

// NackInfo 解析 nack 载荷
func (c Command) NackInfo() (Opcode, NackReason, error) {
	if err := c.expect(OpNack); err != nil {
		return 0, 0, err
	}
	return Opcode(c.Payload[0]), NackReason(c.Payload[1]), nil
}

// Status 解析 status 载荷
func (c Command) Status() (StatusReport, error) {
	if err := c.expect(OpStatus); err != nil {
		return StatusReport{}, err
	}
	p := c.Payload
	return StatusReport{
		Position: int32(binary.BigEndian.Uint32(p[0:4])),
		Velocity: int32(binary.BigEndian.Uint32(p[4:8])),
		State:    MotionState(p[8]),
		Faults:   p[9],
	}, nil
}

// Identity 解析 identity 载荷
func (c Command) Identity() (Identity, error) {
	if err := c.expect(OpIdentity); err != nil {
		return Identity{}, err
	}
	p := c.Payload
	return Identity{
		Version:      binary.BigEndian.Uint16(p[0:2]),
		ID:           SanitizeID(string(p[2 : 2+IDLen])),
		Capabilities: p[2+IDLen],
	}, nil
}

func (c Command) expect(op Opcode) error {
	if c.Opcode != op {
		return fmt.Errorf("opcode %s is not %s", c.Opcode, op)
	}
	return validatePayload(op, c.Payload)
}
