package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBusMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewBusMetrics(reg)

	m.AddReceived(10)
	m.AddReceived(0)
	m.Frame("ok")
	m.Frame("ok")
	m.Frame("bad_checksum")
	m.Request("move_to", "acked", 20*time.Millisecond)
	m.Retry("move_to")
	m.SetOnline(3)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.BytesReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("bad_checksum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("move_to", "acked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetriesTotal.WithLabelValues("move_to")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NodesOnline))
}

func TestBusMetrics_NilSafe(t *testing.T) {
	var m *BusMetrics
	assert.NotPanics(t, func() {
		m.AddReceived(1)
		m.AddSent(1)
		m.Frame("ok")
		m.Dropped()
		m.Request("stop", "acked", time.Millisecond)
		m.Retry("stop")
		m.SetOnline(1)
		m.Evicted("stale")
		m.SubscriberDrop()
	})
}
