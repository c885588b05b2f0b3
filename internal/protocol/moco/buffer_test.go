package moco

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain 反复提取直到数据不足
func drain(b *Buffer) ([]Frame, []FrameErrorKind) {
	var frames []Frame
	var kinds []FrameErrorKind
	for {
		f, st, kind := b.TryExtractFrame()
		switch st {
		case Extracted:
			frames = append(frames, f)
		case Invalid:
			kinds = append(kinds, kind)
		case Incomplete:
			return frames, kinds
		}
	}
}

// splitN 切成 n 段非空分片
func splitN(raw []byte, n int) [][]byte {
	chunks := make([][]byte, 0, n)
	base, rem := len(raw)/n, len(raw)%n
	off := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		chunks = append(chunks, raw[off:off+size])
		off += size
	}
	return chunks
}

func TestBuffer_SplitAcrossChunks(t *testing.T) {
	cmd := NewStatus(12, StatusReport{Position: 0x7E7D, Velocity: -9, State: MotionIdle, Faults: 0x7F})
	raw := MustEncode(cmd)

	for n := 1; n <= len(raw); n++ {
		b := NewBuffer(0)
		var got []Frame
		for _, chunk := range splitN(raw, n) {
			b.Append(chunk)
			frames, kinds := drain(b)
			require.Empty(t, kinds, "n=%d", n)
			got = append(got, frames...)
		}
		require.Len(t, got, 1, "n=%d", n)
		dec, err := Decode(got[0])
		require.NoError(t, err)
		assert.Equal(t, cmd, dec)
	}
}

func TestBuffer_CorruptByteResync(t *testing.T) {
	orig := MustEncode(NewMoveTo(5, 1000))
	good := MustEncode(NewStop(6))

	// 0x7E addr op len [00 00 03 E8] sum 0x7F：逐个篡改 addr..sum 的每个字节
	for pos := 1; pos < len(orig)-1; pos++ {
		for v := 0; v < 256; v++ {
			val := byte(v)
			if val == orig[pos] || isReserved(val) {
				continue
			}
			bad := append([]byte(nil), orig...)
			bad[pos] = val

			b := NewBuffer(0)
			b.Append(bad)
			b.Append(good)
			frames, kinds := drain(b)

			require.NotEmpty(t, kinds, "pos=%d val=0x%02X", pos, val)
			assert.Equal(t, FrameBadChecksum, kinds[0], "pos=%d val=0x%02X", pos, val)
			for _, k := range kinds[1:] {
				assert.Equal(t, FrameResync, k, "pos=%d val=0x%02X", pos, val)
			}
			require.Len(t, frames, 1, "pos=%d val=0x%02X", pos, val)
			dec, err := Decode(frames[0])
			require.NoError(t, err)
			assert.Equal(t, NewStop(6), dec)
		}
	}
}

func TestBuffer_GarbagePrefix(t *testing.T) {
	b := NewBuffer(0)
	b.Append([]byte{0x01, 0x02, ByteEnd})
	b.Append(MustEncode(NewIdentify(2)))

	frames, kinds := drain(b)
	assert.Equal(t, []FrameErrorKind{FrameResync, FrameResync, FrameResync}, kinds)
	require.Len(t, frames, 1)
	assert.Equal(t, OpIdentify, frames[0].Opcode)
}

func TestBuffer_TruncatedFrame(t *testing.T) {
	first := MustEncode(NewMoveTo(2, 1))
	first = first[:len(first)-3] // 截掉末尾三个字节
	b := NewBuffer(0)
	b.Append(first)

	frames, kinds := drain(b)
	assert.Empty(t, frames)
	assert.Empty(t, kinds, "仍可能是半包")

	b.Append(MustEncode(NewQueryStatus(3)))
	frames, kinds = drain(b)
	require.NotEmpty(t, kinds)
	assert.Equal(t, FrameMalformed, kinds[0])
	require.Len(t, frames, 1)
	assert.Equal(t, OpQueryStatus, frames[0].Opcode)
}

func TestBuffer_StickyFramesAndCompact(t *testing.T) {
	b := NewBuffer(0)
	raw := append(MustEncode(NewStop(2)), MustEncode(NewStop(3))...)
	b.Append(raw)
	b.Append([]byte{ByteStart, 0x04}) // 下一帧的前两个字节

	frames, kinds := drain(b)
	assert.Empty(t, kinds)
	require.Len(t, frames, 2)
	assert.Equal(t, byte(2), frames[0].Address)
	assert.Equal(t, byte(3), frames[1].Address)

	assert.Equal(t, len(raw), b.Consumed())
	b.Compact()
	assert.Equal(t, 0, b.Consumed())
	assert.Equal(t, 2, b.Len())
}

func TestBuffer_OversizeWithoutEnd(t *testing.T) {
	b := NewBuffer(0)
	junk := make([]byte, MaxEncodedFrameLen+1)
	junk[0] = ByteStart
	for i := 1; i < len(junk); i++ {
		junk[i] = 0x11
	}
	b.Append(junk)
	_, st, kind := b.TryExtractFrame()
	assert.Equal(t, Invalid, st)
	assert.Equal(t, FrameMalformed, kind)
}

func TestBuffer_LengthMismatchWithValidSum(t *testing.T) {
	// 长度字段声明 3 字节载荷但实际为空，校验和按原样计算
	b := NewBuffer(0)
	b.Append([]byte{ByteStart, 0x02, byte(OpStop), 0x03, 0x02 + byte(OpStop) + 0x03, ByteEnd})
	_, st, kind := b.TryExtractFrame()
	assert.Equal(t, Invalid, st)
	assert.Equal(t, FrameMalformed, kind)
}
