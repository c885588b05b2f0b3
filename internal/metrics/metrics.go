package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// BusMetrics 总线指标；方法对 nil 接收者安全，测试可直接传 nil
type BusMetrics struct {
	BytesReceived     prometheus.Counter
	BytesSent         prometheus.Counter
	FramesTotal       *prometheus.CounterVec   // labels: result=ok|bad_checksum|malformed|resync|unknown_opcode|malformed_payload
	InboundDropped    prometheus.Counter       // 入站队列满丢弃
	RequestsTotal     *prometheus.CounterVec   // labels: opcode, result
	RetriesTotal      *prometheus.CounterVec   // labels: opcode
	RequestDuration   *prometheus.HistogramVec // labels: opcode
	NodesOnline       prometheus.Gauge
	EvictionsTotal    *prometheus.CounterVec // labels: reason
	SubscriberDropped prometheus.Counter     // 订阅者过慢丢弃的状态事件
}

// NewBusMetrics 注册并返回总线指标
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	m := &BusMetrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moco_bytes_received_total",
			Help: "Total bytes read from the bus transport.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moco_bytes_sent_total",
			Help: "Total bytes written to the bus transport.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moco_frames_total",
			Help: "Frame extraction and decode results.",
		}, []string{"result"}),
		InboundDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moco_inbound_dropped_total",
			Help: "Decoded commands dropped because the inbound queue was full.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moco_requests_total",
			Help: "Master requests by opcode and outcome.",
		}, []string{"opcode", "result"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moco_request_retries_total",
			Help: "Retransmissions after a request timed out.",
		}, []string{"opcode"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moco_request_duration_seconds",
			Help:    "Request round trip including retries.",
			Buckets: []float64{.005, .01, .025, .05, .1, .2, .5, 1, 2},
		}, []string{"opcode"}),
		NodesOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moco_nodes_online",
			Help: "Nodes currently in the registry.",
		}),
		EvictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moco_node_evictions_total",
			Help: "Nodes evicted from the registry by reason.",
		}, []string{"reason"}),
		SubscriberDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moco_status_events_dropped_total",
			Help: "Status events dropped for slow subscribers.",
		}),
	}
	reg.MustRegister(m.BytesReceived, m.BytesSent, m.FramesTotal, m.InboundDropped, m.RequestsTotal,
		m.RetriesTotal, m.RequestDuration, m.NodesOnline, m.EvictionsTotal, m.SubscriberDropped)
	return m
}

func (m *BusMetrics) AddReceived(n int) {
	if m != nil && n > 0 {
		m.BytesReceived.Add(float64(n))
	}
}

func (m *BusMetrics) AddSent(n int) {
	if m != nil && n > 0 {
		m.BytesSent.Add(float64(n))
	}
}

func (m *BusMetrics) Frame(result string) {
	if m != nil {
		m.FramesTotal.WithLabelValues(result).Inc()
	}
}

func (m *BusMetrics) Dropped() {
	if m != nil {
		m.InboundDropped.Inc()
	}
}

func (m *BusMetrics) Request(opcode, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(opcode, result).Inc()
	m.RequestDuration.WithLabelValues(opcode).Observe(d.Seconds())
}

func (m *BusMetrics) Retry(opcode string) {
	if m != nil {
		m.RetriesTotal.WithLabelValues(opcode).Inc()
	}
}

func (m *BusMetrics) SetOnline(n int) {
	if m != nil {
		m.NodesOnline.Set(float64(n))
	}
}

func (m *BusMetrics) Evicted(reason string) {
	if m != nil {
		m.EvictionsTotal.WithLabelValues(reason).Inc()
	}
}

func (m *BusMetrics) SubscriberDrop() {
	if m != nil {
		m.SubscriberDropped.Inc()
	}
}
