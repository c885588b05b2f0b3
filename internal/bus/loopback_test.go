package bus

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopback_DeliversToOthers(t *testing.T) {
	lb := NewLoopback()
	defer lb.Close()

	a, b, c := lb.Open(), lb.Open(), lb.Open()

	_, err := a.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	for _, ep := range []io.Reader{b, c} {
		buf := make([]byte, 8)
		n, err := ep.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, buf[:n])
	}

	// 发送方自己收不到
	got := make(chan int, 1)
	go func() {
		n, _ := a.Read(make([]byte, 8))
		got <- n
	}()
	select {
	case n := <-got:
		t.Fatalf("sender read %d bytes of its own write", n)
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, a.Close())
	select {
	case n := <-got:
		assert.Equal(t, 0, n)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after close")
	}
}

func TestLoopback_CloseUnblocksAndRejects(t *testing.T) {
	lb := NewLoopback()
	a, b := lb.Open(), lb.Open()

	errC := make(chan error, 1)
	go func() {
		_, err := b.Read(make([]byte, 4))
		errC <- err
	}()

	require.NoError(t, lb.Close())
	select {
	case err := <-errC:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after bus close")
	}

	_, err := a.Write([]byte{1})
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
