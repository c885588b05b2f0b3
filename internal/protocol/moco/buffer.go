package moco

// Status TryExtractFrame 的结果
type Status uint8

const (
	Extracted  Status = iota // 取出一帧，游标越过该帧
	Incomplete               // 数据不足，游标不动
	Invalid                  // 坏数据，游标前进一字节以重新同步
)

func (s Status) String() string {
	switch s {
	case Extracted:
		return "extracted"
	case Incomplete:
		return "incomplete"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Buffer 带读游标的字节缓冲，处理半包/粘包
// 已消费的字节不会被再次读取；追加不会覆盖未消费的数据
type Buffer struct {
	buf []byte
	r   int
}

// NewBuffer 创建缓冲区
func NewBuffer(capHint int) *Buffer {
	if capHint <= 0 {
		capHint = 256
	}
	return &Buffer{buf: make([]byte, 0, capHint)}
}

// Append 追加数据
func (b *Buffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
}

// Len 未消费字节数
func (b *Buffer) Len() int { return len(b.buf) - b.r }

// Consumed 已消费但未压缩的字节数
func (b *Buffer) Consumed() int { return b.r }

// Reset 清空
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.r = 0
}

// Compact 丢弃已消费的前缀
func (b *Buffer) Compact() {
	if b.r == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.r:])
	b.buf = b.buf[:n]
	b.r = 0
}

// TryExtractFrame 从游标处尝试取出一帧完整且校验通过的帧
func (b *Buffer) TryExtractFrame() (Frame, Status, FrameErrorKind) {
	data := b.buf[b.r:]
	if len(data) == 0 {
		return Frame{}, Incomplete, FrameOK
	}
	if data[0] != ByteStart {
		b.r++
		return Frame{}, Invalid, FrameResync
	}

	end := -1
	for i := 1; i < len(data); i++ {
		if data[i] == ByteEnd {
			end = i
			break
		}
		// 帧未结束又出现帧头：前一帧被截断
		if data[i] == ByteStart || i >= MaxEncodedFrameLen {
			b.r++
			return Frame{}, Invalid, FrameMalformed
		}
	}
	if end < 0 {
		if len(data) >= MaxEncodedFrameLen {
			b.r++
			return Frame{}, Invalid, FrameMalformed
		}
		return Frame{}, Incomplete, FrameOK
	}

	raw, err := unescape(data[1:end])
	if err != nil || len(raw) < headerLen+1 {
		b.r++
		return Frame{}, Invalid, FrameMalformed
	}
	// 校验和覆盖长度字段，先于长度检查
	if !bodySumOK(raw) {
		b.r++
		return Frame{}, Invalid, FrameBadChecksum
	}
	f, err := parseBody(raw)
	if err != nil {
		b.r++
		return Frame{}, Invalid, FrameMalformed
	}
	b.r += end + 1
	return f, Extracted, FrameOK
}
