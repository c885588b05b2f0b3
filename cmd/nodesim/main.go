// nodesim 在串口上模拟一组总线节点，或在内存回环总线上跑一遍主站演示
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/bus"
	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
	"github.com/taoyao-code/mocobus/internal/logging"
	"github.com/taoyao-code/mocobus/internal/master"
	"github.com/taoyao-code/mocobus/internal/node"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
	"github.com/taoyao-code/mocobus/internal/serial"
	"github.com/taoyao-code/mocobus/internal/transceiver"
)

type options struct {
	device    string
	driver    string
	baud      int
	addresses []uint
	idPrefix  string
	version   uint16
	loopback  bool
	camera    bool
	list      bool
	logLevel  string
}

func main() {
	var o options
	pflag.StringVarP(&o.device, "device", "d", "/dev/ttyUSB1", "serial device the simulated nodes listen on")
	pflag.StringVar(&o.driver, "driver", string(serial.DriverBugst), "serial driver: bugst | tarm")
	pflag.IntVarP(&o.baud, "baud", "b", serial.DefaultBaud, "baud rate")
	pflag.UintSliceVarP(&o.addresses, "addresses", "a", []uint{2, 3}, "node addresses (2..255)")
	pflag.StringVar(&o.idPrefix, "id-prefix", "SIM", "node id prefix, address appended")
	pflag.Uint16Var(&o.version, "version", 1, "reported firmware version")
	pflag.BoolVar(&o.loopback, "loopback", false, "run nodes and a demo master on an in-memory bus")
	pflag.BoolVar(&o.camera, "camera", false, "attach a simulated camera to every node")
	pflag.BoolVar(&o.list, "list", false, "list serial ports and exit")
	pflag.StringVar(&o.logLevel, "log-level", "info", "debug | info | warn | error")
	pflag.Parse()

	logger := logging.New(cfgpkg.LoggingConfig{Level: o.logLevel, Format: "console"}, zapcore.AddSync(os.Stderr))
	defer func() { _ = logger.Sync() }()

	if o.list {
		ports, err := serial.ListPorts()
		if err != nil {
			logger.Fatal("list serial ports failed", zap.Error(err))
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nodes, err := buildNodes(o, logger)
	if err != nil {
		logger.Fatal("invalid node set", zap.Error(err))
	}

	if o.loopback {
		if err := runLoopback(ctx, nodes, logger); err != nil {
			logger.Fatal("loopback demo failed", zap.Error(err))
		}
		return
	}

	cfg := serial.DefaultConfig(o.device)
	cfg.Driver = serial.Driver(o.driver)
	cfg.Baud = o.baud
	port, err := serial.Open(cfg, logger)
	if err != nil {
		logger.Fatal("open serial port failed", zap.Error(err))
	}
	host := node.NewHost(transceiver.New(port, transceiver.WithLogger(logger)), logger, nodes...)
	logger.Info("node simulator listening",
		zap.String("device", o.device),
		zap.Int("baud", o.baud),
		zap.Uints("addresses", o.addresses))
	if err := host.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("node host stopped", zap.Error(err))
	}
}

func buildNodes(o options, logger *zap.Logger) ([]*node.Node, error) {
	if len(o.addresses) == 0 {
		return nil, fmt.Errorf("no addresses")
	}
	seen := make(map[uint]bool)
	out := make([]*node.Node, 0, len(o.addresses))
	for _, a := range o.addresses {
		if a > 255 || !bus.IsUnicast(byte(a)) {
			return nil, fmt.Errorf("%w: %d", bus.ErrInvalidAddress, a)
		}
		if seen[a] {
			return nil, fmt.Errorf("duplicate address %d", a)
		}
		seen[a] = true
		cfg := node.Config{
			Address:      byte(a),
			ID:           fmt.Sprintf("%s%d", o.idPrefix, a),
			Version:      o.version,
			Capabilities: moco.CapMotor,
		}
		if o.camera {
			cfg.Camera = node.NewSimCamera()
		}
		out = append(out, node.New(cfg, node.NewSimMotor(0, nil), logger))
	}
	return out, nil
}

// runLoopback 主站发现节点，逐个移动到 1000 步并等待到位
func runLoopback(ctx context.Context, nodes []*node.Node, logger *zap.Logger) error {
	lb := bus.NewLoopback()
	defer lb.Close()

	host := node.NewHost(transceiver.New(lb.Open()), logger, nodes...)
	go func() { _ = host.Serve(ctx) }()

	cfg := master.DefaultConfig()
	cfg.DiscoverTo = maxAddress(nodes)
	m := master.New(transceiver.New(lb.Open()), axis.NewTable(nil, axis.Limits{Min: -100000, Max: 100000}), cfg,
		master.WithLogger(logger))
	m.Start(ctx)
	defer m.Close()

	found, err := m.DiscoverNodes(ctx)
	if err != nil {
		return err
	}
	for _, n := range found {
		logger.Info("node found", zap.Uint8("address", n.Address), zap.String("id", n.ID))
		if err := m.MoveAxis(ctx, n.Address, 1000); err != nil {
			return err
		}
	}

	sub := m.SubscribeStatus(0)
	defer sub.Cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return fmt.Errorf("axes did not settle")
		case st, ok := <-sub.C:
			if !ok {
				return master.ErrConnectionClosed
			}
			logger.Info("axis status",
				zap.Uint8("address", st.Address),
				zap.Int32("position", st.Position),
				zap.String("state", string(st.State)))
			if settled(m.Axes(), 1000) {
				logger.Info("all axes settled")
				return nil
			}
		}
	}
}

func maxAddress(nodes []*node.Node) byte {
	var hi byte = bus.MinUnicast
	for _, n := range nodes {
		hi = max(hi, n.Address())
	}
	return hi
}

func settled(axes []axis.Status, target int32) bool {
	for _, a := range axes {
		if a.Position != target || a.State != axis.StateIdle {
			return false
		}
	}
	return len(axes) > 0
}
