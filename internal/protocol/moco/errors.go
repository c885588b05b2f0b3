package moco

import (
	"errors"
	"fmt"
)

var (
	ErrBadChecksum       = errors.New("bad checksum")
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrMalformedFrame    = errors.New("malformed frame")
	ErrPayloadTooLong    = errors.New("payload too long")
	ErrInvalidIdentifier = errors.New("invalid node identifier")
)

// FrameErrorKind 缓冲区层面的帧错误，均在本地恢复，只计数不上报
type FrameErrorKind uint8

const (
	FrameOK FrameErrorKind = iota
	FrameBadChecksum
	FrameMalformed
	FrameResync // 帧头之前的垃圾字节
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameOK:
		return "ok"
	case FrameBadChecksum:
		return "bad_checksum"
	case FrameMalformed:
		return "malformed"
	case FrameResync:
		return "resync"
	default:
		return "unknown"
	}
}

// DecodeErrorKind 解码错误分类
type DecodeErrorKind uint8

const (
	DecodeBadChecksum DecodeErrorKind = iota + 1
	DecodeUnknownOpcode
	DecodeMalformedPayload
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeBadChecksum:
		return "bad_checksum"
	case DecodeUnknownOpcode:
		return "unknown_opcode"
	case DecodeMalformedPayload:
		return "malformed_payload"
	default:
		return "unknown"
	}
}

// DecodeError 携带帧头，节点据此回复 Nack
type DecodeError struct {
	Kind    DecodeErrorKind
	Address byte
	Opcode  Opcode
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode addr=%d op=%s: %v", e.Address, e.Opcode, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(kind DecodeErrorKind, f Frame, err error) *DecodeError {
	return &DecodeError{Kind: kind, Address: f.Address, Opcode: f.Opcode, Err: err}
}
