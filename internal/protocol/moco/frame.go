package moco

import "fmt"

// 帧格式：START(1) + addr(1) + opcode(1) + len(1) + payload(len) + checksum(1) + END(1)
// START/END/ESC 不会以原值出现在两个定界符之间，出现时按 ESC, b^0x20 转义
const (
	ByteStart  byte = 0x7E
	ByteEnd    byte = 0x7F
	ByteEscape byte = 0x7D
	escapeXOR  byte = 0x20
)

const (
	// MaxPayloadLen 长度字段为单字节
	MaxPayloadLen = 255
	// headerLen addr + opcode + len
	headerLen = 3
	// MaxEncodedFrameLen 最坏情况下所有字节都需要转义
	MaxEncodedFrameLen = 2 + 2*(headerLen+MaxPayloadLen+1)
)

// Frame 校验通过的一帧（已去转义）
type Frame struct {
	Address  byte   // 请求为目的地址，应答为应答节点地址
	Opcode   Opcode // 命令码
	Payload  []byte // 数据
	Checksum byte   // 校验和
}

func (f Frame) String() string {
	return fmt.Sprintf("frame{addr=%d op=%s len=%d sum=0x%02X}", f.Address, f.Opcode, len(f.Payload), f.Checksum)
}

// Opcode 命令码，最高位为 1 的是节点应答
type Opcode byte

const (
	OpIdentify       Opcode = 0x01
	OpQueryStatus    Opcode = 0x02
	OpMoveTo         Opcode = 0x03
	OpStop           Opcode = 0x04
	OpSetParameter   Opcode = 0x05
	OpChangeAddress  Opcode = 0x06
	OpProgramControl Opcode = 0x07
	OpHome           Opcode = 0x08
	OpCamera         Opcode = 0x09

	OpAck      Opcode = 0x80
	OpNack     Opcode = 0x81
	OpStatus   Opcode = 0x82
	OpIdentity Opcode = 0x83
)

var opcodeNames = map[Opcode]string{
	OpIdentify:       "identify",
	OpQueryStatus:    "query_status",
	OpMoveTo:         "move_to",
	OpStop:           "stop",
	OpSetParameter:   "set_parameter",
	OpChangeAddress:  "change_address",
	OpProgramControl: "program_control",
	OpHome:           "home",
	OpCamera:         "camera",
	OpAck:            "ack",
	OpNack:           "nack",
	OpStatus:         "status",
	OpIdentity:       "identity",
}

// Known 是否为已定义的命令码
func (o Opcode) Known() bool {
	_, ok := opcodeNames[o]
	return ok
}

// IsResponse 节点应答命令码
func (o Opcode) IsResponse() bool {
	return o&0x80 != 0
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", byte(o))
}
