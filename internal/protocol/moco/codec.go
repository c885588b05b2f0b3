package moco

import "fmt"

// Encode 编码为线上字节（含定界符与转义）
func Encode(c Command) ([]byte, error) {
	if len(c.Payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, len(c.Payload))
	}
	sum := Checksum(c.Address, c.Opcode, c.Payload)

	out := make([]byte, 0, 2+headerLen+len(c.Payload)+1+4)
	out = append(out, ByteStart)
	out = appendEscaped(out, c.Address)
	out = appendEscaped(out, byte(c.Opcode))
	out = appendEscaped(out, byte(len(c.Payload)))
	for _, b := range c.Payload {
		out = appendEscaped(out, b)
	}
	out = appendEscaped(out, sum)
	out = append(out, ByteEnd)
	return out, nil
}

// MustEncode 仅用于常量命令与测试
func MustEncode(c Command) []byte {
	b, err := Encode(c)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode 校验和 -> 命令码 -> 载荷，依次校验
func Decode(f Frame) (Command, error) {
	if err := VerifyFrame(f); err != nil {
		return Command{}, decodeErr(DecodeBadChecksum, f, err)
	}
	if !f.Opcode.Known() {
		return Command{}, decodeErr(DecodeUnknownOpcode, f, ErrUnknownOpcode)
	}
	if err := validatePayload(f.Opcode, f.Payload); err != nil {
		return Command{}, decodeErr(DecodeMalformedPayload, f, err)
	}
	c := Command{Address: f.Address, Opcode: f.Opcode}
	if len(f.Payload) > 0 {
		c.Payload = append([]byte(nil), f.Payload...)
	}
	return c, nil
}

func isReserved(b byte) bool {
	return b == ByteStart || b == ByteEnd || b == ByteEscape
}

func appendEscaped(dst []byte, b byte) []byte {
	if isReserved(b) {
		return append(dst, ByteEscape, b^escapeXOR)
	}
	return append(dst, b)
}

// unescape 去转义两个定界符之间的字节
func unescape(body []byte) ([]byte, error) {
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b != ByteEscape {
			out = append(out, b)
			continue
		}
		i++
		if i >= len(body) {
			return nil, fmt.Errorf("%w: dangling escape", ErrMalformedFrame)
		}
		u := body[i] ^ escapeXOR
		if !isReserved(u) {
			return nil, fmt.Errorf("%w: bad escape 0x%02X", ErrMalformedFrame, body[i])
		}
		out = append(out, u)
	}
	return out, nil
}

// parseBody 解析去转义后的 addr..checksum，不校验校验和
func parseBody(raw []byte) (Frame, error) {
	if len(raw) < headerLen+1 {
		return Frame{}, fmt.Errorf("%w: short frame %d", ErrMalformedFrame, len(raw))
	}
	n := int(raw[2])
	if len(raw) != headerLen+n+1 {
		return Frame{}, fmt.Errorf("%w: length field %d, body %d", ErrMalformedFrame, n, len(raw))
	}
	f := Frame{
		Address:  raw[0],
		Opcode:   Opcode(raw[1]),
		Checksum: raw[len(raw)-1],
	}
	if n > 0 {
		f.Payload = raw[headerLen : headerLen+n]
	}
	return f, nil
}
