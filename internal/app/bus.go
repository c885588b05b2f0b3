package app

import (
	"io"

	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/axis"
	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
	"github.com/taoyao-code/mocobus/internal/master"
	"github.com/taoyao-code/mocobus/internal/metrics"
	"github.com/taoyao-code/mocobus/internal/transceiver"
)

// MasterConfig 配置转换为主站参数
func MasterConfig(bc cfgpkg.BusConfig) master.Config {
	return master.Config{
		Timeout:         bc.Timeout,
		MaxRetries:      bc.MaxRetries,
		StaleAfter:      bc.StaleAfter,
		SweepInterval:   bc.SweepInterval,
		PollInterval:    bc.PollInterval,
		DiscoverFrom:    byte(bc.DiscoverFrom),
		DiscoverTo:      byte(bc.DiscoverTo),
		DiscoverRetries: bc.DiscoverRetries,
		FramesPerSec:    bc.FramesPerSec,
		EventBuffer:     bc.EventBuffer,
	}
}

// NewMaster 在已打开的端口上组装收发器、轴表与主站（未启动）
func NewMaster(port io.ReadWriteCloser, profiles []axis.Profile, cfg *cfgpkg.Config, bm *metrics.BusMetrics, log *zap.Logger, observers ...master.Observer) *master.Master {
	tx := transceiver.New(port,
		transceiver.WithLogger(log),
		transceiver.WithMetrics(bm),
		transceiver.WithQueueSize(cfg.Bus.InboundQueue),
	)
	table := axis.NewTable(profiles, cfg.AxisDefaults.Limits())

	opts := []master.Option{master.WithLogger(log), master.WithMetrics(bm)}
	for _, o := range observers {
		opts = append(opts, master.WithObserver(o))
	}
	return master.New(tx, table, MasterConfig(cfg.Bus), opts...)
}
