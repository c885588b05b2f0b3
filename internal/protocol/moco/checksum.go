package moco

// Checksum 累加校验（单字节，溢出丢弃高位）
// 覆盖范围：addr + opcode + len + payload，均为去转义后的原值
func Checksum(addr byte, op Opcode, payload []byte) byte {
	sum := addr + byte(op) + byte(len(payload))
	for _, b := range payload {
		sum += b
	}
	return sum
}

// VerifyFrame 校验帧内的校验和
func VerifyFrame(f Frame) error {
	if len(f.Payload) > MaxPayloadLen {
		return ErrPayloadTooLong
	}
	if Checksum(f.Address, f.Opcode, f.Payload) != f.Checksum {
		return ErrBadChecksum
	}
	return nil
}

// bodySumOK raw 为去转义后的 addr..checksum，末字节是前面所有字节的累加和
func bodySumOK(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	var sum byte
	for _, b := range raw[:len(raw)-1] {
		sum += b
	}
	return sum == raw[len(raw)-1]
}
