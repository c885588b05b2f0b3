package moco

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameOf(addr byte, op Opcode, payload []byte) Frame {
	return Frame{Address: addr, Opcode: op, Payload: payload, Checksum: Checksum(addr, op, payload)}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
	}{
		{"识别", NewIdentify(2)},
		{"查询状态", NewQueryStatus(0x7E)},
		{"移动-含保留字节", NewMoveTo(3, 0x7E7F7D00)},
		{"移动-负数", NewMoveTo(4, -123456)},
		{"停止", NewStop(255)},
		{"设置参数", NewSetParameter(5, ParamMaxVelocity, 0x7D7D)},
		{"改地址", NewChangeAddress(6, 0x7F)},
		{"广播暂停", NewProgramControl(1, ProgramPause)},
		{"设原点", NewHome(3, HomeSet)},
		{"回原点", NewHome(4, HomeGo)},
		{"相机间隔", NewCamera(5, CameraInterval, 0x7E7D)},
		{"相机曝光", NewCamera(6, CameraExpose, 0)},
		{"应答", NewAck(7, OpMoveTo)},
		{"拒绝", NewNack(8, OpSetParameter, NackBadPayload)},
		{"状态", NewStatus(9, StatusReport{Position: -1000, Velocity: 250, State: MotionMoving, Faults: 0x7E})},
		{"识别应答", NewIdentity(10, Identity{Version: 0x0102, ID: "PAN-01~}", Capabilities: CapMotor | CapCamera})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Encode(tc.cmd)
			require.NoError(t, err)

			b := NewBuffer(0)
			b.Append(raw)
			f, st, kind := b.TryExtractFrame()
			require.Equal(t, Extracted, st, "kind=%s", kind)

			got, err := Decode(f)
			require.NoError(t, err)
			assert.Equal(t, tc.cmd, got)
			assert.Equal(t, 0, b.Len())
		})
	}
}

func TestEncode_EscapesReserved(t *testing.T) {
	raw := MustEncode(NewMoveTo(ByteStart, 0x7E7F7D7E))
	require.Equal(t, ByteStart, raw[0])
	require.Equal(t, ByteEnd, raw[len(raw)-1])
	for i, b := range raw[1 : len(raw)-1] {
		assert.NotEqual(t, ByteStart, b, "offset %d", i+1)
		assert.NotEqual(t, ByteEnd, b, "offset %d", i+1)
	}
}

func TestEncode_PayloadTooLong(t *testing.T) {
	_, err := Encode(Command{Address: 2, Opcode: OpMoveTo, Payload: make([]byte, 256)})
	assert.ErrorIs(t, err, ErrPayloadTooLong)
}

func TestDecode_Errors(t *testing.T) {
	t.Run("校验和错误", func(t *testing.T) {
		f := frameOf(2, OpMoveTo, []byte{0, 0, 0, 1})
		f.Checksum++
		_, err := Decode(f)
		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, DecodeBadChecksum, de.Kind)
		assert.ErrorIs(t, err, ErrBadChecksum)
	})

	t.Run("未知命令码", func(t *testing.T) {
		_, err := Decode(frameOf(3, Opcode(0x42), nil))
		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, DecodeUnknownOpcode, de.Kind)
		assert.Equal(t, byte(3), de.Address)
		assert.Equal(t, Opcode(0x42), de.Opcode)
	})

	t.Run("载荷长度错误", func(t *testing.T) {
		_, err := Decode(frameOf(4, OpMoveTo, []byte{1, 2, 3}))
		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, DecodeMalformedPayload, de.Kind)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("程序控制取值越界", func(t *testing.T) {
		_, err := Decode(frameOf(1, OpProgramControl, []byte{9}))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("原点操作越界", func(t *testing.T) {
		_, err := Decode(frameOf(2, OpHome, []byte{3}))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("相机操作越界", func(t *testing.T) {
		_, err := Decode(frameOf(2, OpCamera, []byte{0, 0, 0, 0, 1}))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("校验先于命令码", func(t *testing.T) {
		f := frameOf(5, Opcode(0x42), nil)
		f.Checksum ^= 0xFF
		_, err := Decode(f)
		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, DecodeBadChecksum, de.Kind)
	})
}

func TestTypedAccessors(t *testing.T) {
	target, err := NewMoveTo(2, -5).MoveTarget()
	require.NoError(t, err)
	assert.Equal(t, int32(-5), target)

	p, v, err := NewSetParameter(2, ParamMicrostep, 16).Parameter()
	require.NoError(t, err)
	assert.Equal(t, ParamMicrostep, p)
	assert.Equal(t, int32(16), v)

	echo, reason, err := NewNack(2, OpStop, NackRejected).NackInfo()
	require.NoError(t, err)
	assert.Equal(t, OpStop, echo)
	assert.Equal(t, NackRejected, reason)

	home, err := NewHome(2, HomeGo).HomeAction()
	require.NoError(t, err)
	assert.Equal(t, HomeGo, home)

	act, val, err := NewCamera(2, CameraExposure, -1).CameraControl()
	require.NoError(t, err)
	assert.Equal(t, CameraExposure, act)
	assert.Equal(t, int32(-1), val)

	_, err = NewStop(2).MoveTarget()
	assert.Error(t, err)
	_, _, err = NewStop(2).CameraControl()
	assert.Error(t, err)
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "AB0     ", SanitizeID("AB\x01"))
	assert.Equal(t, "ABCDEFGH", SanitizeID("ABCDEFGHIJ"))
	assert.Equal(t, "0ok     ", SanitizeID("\x7fok"))
}
