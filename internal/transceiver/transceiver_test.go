package transceiver

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/protocol/moco"
	"github.com/taoyao-code/mocobus/internal/serial"
	"github.com/taoyao-code/mocobus/internal/testutil"
)

func recv(t *testing.T, tx *Transceiver) Inbound {
	t.Helper()
	select {
	case in, ok := <-tx.Inbound():
		require.True(t, ok, "inbound closed")
		return in
	case <-time.After(time.Second):
		t.Fatal("no inbound command")
	}
	return Inbound{}
}

func TestOnBytesReceived_FIFOAndDropCorrupt(t *testing.T) {
	tx := New(testutil.NewMockPort(), WithLogger(zap.NewNop()))

	bad := moco.MustEncode(moco.NewMoveTo(3, 1000))
	bad[5] = 0x01 // 篡改载荷

	var stream []byte
	stream = append(stream, moco.MustEncode(moco.NewAck(2, moco.OpStop))...)
	stream = append(stream, bad...)
	stream = append(stream, moco.MustEncode(moco.NewAck(4, moco.OpMoveTo))...)

	// 逐字节投递
	for _, b := range stream {
		tx.OnBytesReceived([]byte{b})
	}

	first := recv(t, tx)
	second := recv(t, tx)
	assert.NoError(t, first.Err)
	assert.Equal(t, byte(2), first.Command.Address)
	assert.Equal(t, byte(4), second.Command.Address)

	st := tx.Stats()
	assert.Equal(t, uint64(2), st.FramesOK)
	assert.Greater(t, st.FrameErrors, uint64(0))
	assert.Equal(t, uint64(len(stream)), st.BytesIn)
}

func TestOnBytesReceived_UnknownOpcodeDelivered(t *testing.T) {
	tx := New(testutil.NewMockPort())
	tx.OnBytesReceived(moco.MustEncode(moco.Command{Address: 5, Opcode: 0x42}))

	in := recv(t, tx)
	var de *moco.DecodeError
	require.True(t, errors.As(in.Err, &de))
	assert.Equal(t, moco.DecodeUnknownOpcode, de.Kind)
	assert.Equal(t, byte(5), in.Command.Address)
	assert.Equal(t, uint64(1), tx.Stats().DecodeErrors)
}

func TestOnBytesReceived_QueueFullDrops(t *testing.T) {
	tx := New(testutil.NewMockPort(), WithQueueSize(1))
	for i := 0; i < 3; i++ {
		tx.OnBytesReceived(moco.MustEncode(moco.NewAck(byte(2+i), moco.OpStop)))
	}
	assert.Equal(t, uint64(2), tx.Stats().Dropped)
	in := recv(t, tx)
	assert.Equal(t, byte(2), in.Command.Address)
}

func TestSend(t *testing.T) {
	port := testutil.NewMockPort()
	tx := New(port)

	cmd := moco.NewMoveTo(7, -42)
	require.NoError(t, tx.Send(cmd))
	require.Equal(t, 1, port.WriteCount())
	assert.Equal(t, moco.MustEncode(cmd), port.Writes()[0])
	assert.Equal(t, uint64(len(port.Writes()[0])), tx.Stats().BytesOut)

	port.SetWriteErr(errors.New("cable unplugged"))
	err := tx.Send(cmd)
	var te *serial.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "write", te.Op)
}

func TestReadLoopAndClose(t *testing.T) {
	port := testutil.NewMockPort()
	tx := New(port)
	tx.Start()
	assert.True(t, tx.Connected())

	port.Feed(moco.MustEncode(moco.NewStatus(9, moco.StatusReport{Position: 5})))
	in := recv(t, tx)
	assert.Equal(t, moco.OpStatus, in.Command.Opcode)

	require.NoError(t, tx.Close())
	select {
	case _, ok := <-tx.Inbound():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("inbound not closed")
	}
	assert.False(t, tx.Connected())

	err := tx.Send(moco.NewStop(2))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWithoutStart(t *testing.T) {
	tx := New(testutil.NewMockPort())
	require.NoError(t, tx.Close())
	_, ok := <-tx.Inbound()
	assert.False(t, ok)
	tx.OnBytesReceived([]byte{0x7E}) // 关闭后不应 panic
}
