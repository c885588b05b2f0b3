package serial

import (
	"io"

	bugst "go.bug.st/serial"
	"go.uber.org/zap"
)

// Port 串口抽象，便于替换驱动与测试
type Port interface {
	io.ReadWriteCloser

	// Flush 丢弃尚未读取的输入
	Flush() error
}

// Open 先校验参数组合，非法组合在打开时失败而不是在首次写入时
func Open(cfg Config, logger *zap.Logger) (Port, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &TransportError{Op: "open", Device: cfg.Device, Err: err}
	}

	var (
		p   Port
		err error
	)
	switch cfg.Driver {
	case DriverTarm:
		p, err = openTarm(cfg)
	default:
		p, err = openBugst(cfg)
	}
	if err != nil {
		return nil, &TransportError{Op: "open", Device: cfg.Device, Err: err}
	}

	// 丢弃上电残留字节
	if err := p.Flush(); err != nil {
		logger.Warn("serial flush failed", zap.String("device", cfg.Device), zap.Error(err))
	}

	logger.Info("serial port opened",
		zap.String("device", cfg.Device),
		zap.String("driver", string(cfg.Driver)),
		zap.Int("baud", cfg.Baud),
		zap.Int("data_bits", cfg.DataBits),
		zap.String("parity", string(cfg.Parity)),
		zap.String("stop_bits", string(cfg.StopBits)),
		zap.String("flow_control", string(cfg.FlowControl)),
	)
	return p, nil
}

// ListPorts 枚举系统串口
func ListPorts() ([]string, error) {
	return bugst.GetPortsList()
}
