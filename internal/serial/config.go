package serial

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig 串口参数组合非法，打开时即失败
var ErrInvalidConfig = errors.New("invalid serial config")

// Driver 串口驱动实现
type Driver string

const (
	DriverBugst Driver = "bugst" // go.bug.st/serial
	DriverTarm  Driver = "tarm"  // github.com/tarm/serial
)

// Parity 校验位
type Parity string

const (
	ParityNone  Parity = "none"
	ParityOdd   Parity = "odd"
	ParityEven  Parity = "even"
	ParityMark  Parity = "mark"
	ParitySpace Parity = "space"
)

// StopBits 停止位
type StopBits string

const (
	StopBitsOne     StopBits = "1"
	StopBitsOneHalf StopBits = "1.5"
	StopBitsTwo     StopBits = "2"
)

// FlowControl 流控 / RS485 收发方向控制
type FlowControl string

const (
	FlowNone      FlowControl = "none"
	FlowRS485RTS  FlowControl = "rs485-rts"  // 发送期间拉高 RTS 作为 DE
	FlowRS485GPIO FlowControl = "rs485-gpio" // 发送期间拉高 GPIO 作为 DE
)

// 支持的波特率
var standardBauds = map[int]bool{
	1200: true, 2400: true, 4800: true, 9600: true, 19200: true, 38400: true,
	57600: true, 115200: true, 230400: true, 250000: true, 460800: true,
	500000: true, 921600: true, 1000000: true,
}

// DefaultBaud 节点固件默认波特率
const DefaultBaud = 57600

// Config 串口配置
type Config struct {
	Device      string        `mapstructure:"device"`
	Driver      Driver        `mapstructure:"driver"`
	Baud        int           `mapstructure:"baud"`
	DataBits    int           `mapstructure:"dataBits"`
	Parity      Parity        `mapstructure:"parity"`
	StopBits    StopBits      `mapstructure:"stopBits"`
	FlowControl FlowControl   `mapstructure:"flowControl"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	DEPin       string        `mapstructure:"dePin"` // 仅 rs485-gpio
}

// DefaultConfig 57600 8N1，无流控
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Driver:      DriverBugst,
		Baud:        DefaultBaud,
		DataBits:    8,
		Parity:      ParityNone,
		StopBits:    StopBitsOne,
		FlowControl: FlowNone,
		ReadTimeout: 100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Device)
	if c.Driver == "" {
		c.Driver = d.Driver
	}
	if c.Baud == 0 {
		c.Baud = d.Baud
	}
	if c.DataBits == 0 {
		c.DataBits = d.DataBits
	}
	if c.Parity == "" {
		c.Parity = d.Parity
	}
	if c.StopBits == "" {
		c.StopBits = d.StopBits
	}
	if c.FlowControl == "" {
		c.FlowControl = d.FlowControl
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	return c
}

// Validate 校验参数组合（空字段按默认值处理）
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Device == "" {
		return fmt.Errorf("%w: device is empty", ErrInvalidConfig)
	}
	if !standardBauds[c.Baud] {
		return fmt.Errorf("%w: unsupported baud %d", ErrInvalidConfig, c.Baud)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("%w: data bits %d", ErrInvalidConfig, c.DataBits)
	}
	switch c.Parity {
	case ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace:
	default:
		return fmt.Errorf("%w: parity %q", ErrInvalidConfig, c.Parity)
	}
	switch c.StopBits {
	case StopBitsOne:
	case StopBitsOneHalf:
		// 1.5 停止位只在 5 数据位下有定义
		if c.DataBits != 5 {
			return fmt.Errorf("%w: 1.5 stop bits requires 5 data bits", ErrInvalidConfig)
		}
	case StopBitsTwo:
		if c.DataBits == 5 {
			return fmt.Errorf("%w: 2 stop bits not allowed with 5 data bits", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: stop bits %q", ErrInvalidConfig, c.StopBits)
	}
	switch c.FlowControl {
	case FlowNone, FlowRS485RTS:
	case FlowRS485GPIO:
		if c.DEPin == "" {
			return fmt.Errorf("%w: rs485-gpio requires dePin", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: flow control %q", ErrInvalidConfig, c.FlowControl)
	}

	switch c.Driver {
	case DriverBugst:
	case DriverTarm:
		if c.FlowControl != FlowNone {
			return fmt.Errorf("%w: tarm driver has no %s support", ErrInvalidConfig, c.FlowControl)
		}
		if c.Parity == ParityMark || c.Parity == ParitySpace {
			return fmt.Errorf("%w: tarm driver has no %s parity", ErrInvalidConfig, c.Parity)
		}
		if c.StopBits == StopBitsOneHalf {
			return fmt.Errorf("%w: tarm driver has no 1.5 stop bits", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: driver %q", ErrInvalidConfig, c.Driver)
	}
	return nil
}
