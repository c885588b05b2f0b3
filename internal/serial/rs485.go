package serial

import (
	"fmt"
	"io"

	bugst "go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// driverEnable RS485 收发器的 DE 引脚：发送时为 true
type driverEnable interface {
	Set(tx bool) error
}

type rtsEnable struct {
	port bugst.Port
}

func (r rtsEnable) Set(tx bool) error { return r.port.SetRTS(tx) }

type gpioEnable struct {
	pin gpio.PinIO
}

func openGPIOEnable(name string) (*gpioEnable, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return &gpioEnable{pin: pin}, nil
}

func (g *gpioEnable) Set(tx bool) error {
	level := gpio.Low
	if tx {
		level = gpio.High
	}
	return g.pin.Out(level)
}

// writeWithDE 拉高 DE -> 写入 -> 等待发送完毕 -> 释放 DE
// 提前释放会截断最后一个字节
func writeWithDE(de driverEnable, w io.Writer, drain func() error, p []byte) (int, error) {
	if err := de.Set(true); err != nil {
		return 0, fmt.Errorf("assert driver enable: %w", err)
	}
	n, err := w.Write(p)
	if err == nil && drain != nil {
		err = drain()
	}
	if rerr := de.Set(false); rerr != nil && err == nil {
		err = fmt.Errorf("release driver enable: %w", rerr)
	}
	return n, err
}
