package bus

import (
	"errors"
	"fmt"

	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

// 地址分配：0 主站，1 广播，2..255 节点
const (
	MasterAddress    byte = 0
	BroadcastAddress byte = 1
	MinUnicast       byte = 2
	MaxUnicast       byte = 255
)

var (
	ErrInvalidAddress   = errors.New("invalid bus address")
	ErrNotInitiator     = errors.New("only the master may initiate commands")
	ErrNotBroadcastable = errors.New("command cannot be broadcast")
	ErrNotResponse      = errors.New("nodes may only send responses")
)

// 可广播的命令，广播永不应答
var broadcastable = map[moco.Opcode]bool{
	moco.OpProgramControl: true,
	moco.OpStop:           true,
	moco.OpSetParameter:   true,
}

// Broadcastable 该命令码可发往广播地址
func Broadcastable(op moco.Opcode) bool { return broadcastable[op] }

// IsBroadcast 广播地址
func IsBroadcast(addr byte) bool { return addr == BroadcastAddress }

// IsUnicast 合法节点地址
func IsUnicast(addr byte) bool { return addr >= MinUnicast }

// Accepts 节点只处理发给自己的命令或广播
func Accepts(self, dst byte) bool {
	return dst == self || IsBroadcast(dst)
}

// ExpectsReply 单播请求必须等待应答，广播不应答
func ExpectsReply(c moco.Command) bool {
	return !c.Opcode.IsResponse() && IsUnicast(c.Address)
}

// ValidateRequest 主站发出的命令
func ValidateRequest(c moco.Command) error {
	if c.Opcode.IsResponse() {
		return fmt.Errorf("%w: %s", ErrNotInitiator, c.Opcode)
	}
	switch {
	case IsBroadcast(c.Address):
		if !Broadcastable(c.Opcode) {
			return fmt.Errorf("%w: %s", ErrNotBroadcastable, c.Opcode)
		}
	case IsUnicast(c.Address):
	default:
		return fmt.Errorf("%w: %d", ErrInvalidAddress, c.Address)
	}
	return nil
}

// ValidateResponse 节点发出的应答，地址字段为应答节点自身地址
func ValidateResponse(c moco.Command) error {
	if !c.Opcode.IsResponse() {
		return fmt.Errorf("%w: %s", ErrNotResponse, c.Opcode)
	}
	if !IsUnicast(c.Address) {
		return fmt.Errorf("%w: %d", ErrInvalidAddress, c.Address)
	}
	return nil
}
