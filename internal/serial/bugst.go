package serial

import (
	"fmt"

	bugst "go.bug.st/serial"
)

var bugstParity = map[Parity]bugst.Parity{
	ParityNone:  bugst.NoParity,
	ParityOdd:   bugst.OddParity,
	ParityEven:  bugst.EvenParity,
	ParityMark:  bugst.MarkParity,
	ParitySpace: bugst.SpaceParity,
}

var bugstStopBits = map[StopBits]bugst.StopBits{
	StopBitsOne:     bugst.OneStopBit,
	StopBitsOneHalf: bugst.OnePointFiveStopBits,
	StopBitsTwo:     bugst.TwoStopBits,
}

// bugstPort go.bug.st/serial 实现，支持 RS485 方向控制
type bugstPort struct {
	port bugst.Port
	de   driverEnable
}

func openBugst(cfg Config) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: cfg.DataBits,
		Parity:   bugstParity[cfg.Parity],
		StopBits: bugstStopBits[cfg.StopBits],
	}
	p, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	bp := &bugstPort{port: p}
	switch cfg.FlowControl {
	case FlowRS485RTS:
		bp.de = rtsEnable{port: p}
	case FlowRS485GPIO:
		de, err := openGPIOEnable(cfg.DEPin)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		bp.de = de
	}
	// 空闲时处于接收状态
	if bp.de != nil {
		if err := bp.de.Set(false); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("release driver enable: %w", err)
		}
	}
	return bp, nil
}

func (p *bugstPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *bugstPort) Write(b []byte) (int, error) {
	if p.de == nil {
		return p.port.Write(b)
	}
	return writeWithDE(p.de, p.port, p.port.Drain, b)
}

func (p *bugstPort) Flush() error {
	return p.port.ResetInputBuffer()
}

func (p *bugstPort) Close() error {
	return p.port.Close()
}
