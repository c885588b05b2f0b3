package master

import (
	"errors"
	"fmt"

	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

var (
	// ErrConnectionClosed 链路关闭，所有未完成请求以此失败
	ErrConnectionClosed = errors.New("connection closed")
	// ErrNodeUnreachable 重试耗尽
	ErrNodeUnreachable = errors.New("node unreachable")
	// ErrAddressInUse 改地址目标已被占用
	ErrAddressInUse = errors.New("address already in use")
	// ErrNotCapable 节点未声明所需能力，未写总线
	ErrNotCapable = errors.New("node lacks capability")
)

// ProtocolErrorKind 协议错误分类
type ProtocolErrorKind uint8

const (
	ProtoNack ProtocolErrorKind = iota + 1
	ProtoUnknownOpcode
)

// ProtocolError 节点拒绝或返回无法解码的应答，只上报给本次请求的调用方
type ProtocolError struct {
	Kind    ProtocolErrorKind
	Address byte
	Opcode  moco.Opcode
	Reason  moco.NackReason // 仅 ProtoNack
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Kind == ProtoNack {
		return fmt.Sprintf("node %d rejected %s: %s", e.Address, e.Opcode, e.Reason)
	}
	return fmt.Sprintf("node %d answered %s with undecodable response: %v", e.Address, e.Opcode, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TimeoutError 重试耗尽，等同 ErrNodeUnreachable
type TimeoutError struct {
	Address  byte
	Opcode   moco.Opcode
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %d %s: no response after %d attempts", e.Address, e.Opcode, e.Attempts)
}

func (e *TimeoutError) Unwrap() error { return ErrNodeUnreachable }
