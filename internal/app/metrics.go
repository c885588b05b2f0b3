package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taoyao-code/mocobus/internal/metrics"
)

// NewMetrics 初始化注册表与总线指标
func NewMetrics() (*prometheus.Registry, *metrics.BusMetrics) {
	reg := metrics.NewRegistry()
	return reg, metrics.NewBusMetrics(reg)
}
