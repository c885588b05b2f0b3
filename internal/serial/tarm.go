package serial

import (
	"errors"
	"io"

	tarm "github.com/tarm/serial"
)

var tarmParity = map[Parity]tarm.Parity{
	ParityNone: tarm.ParityNone,
	ParityOdd:  tarm.ParityOdd,
	ParityEven: tarm.ParityEven,
}

var tarmStopBits = map[StopBits]tarm.StopBits{
	StopBitsOne: tarm.Stop1,
	StopBitsTwo: tarm.Stop2,
}

// tarmPort github.com/tarm/serial 实现，无方向控制
type tarmPort struct {
	port *tarm.Port
}

func openTarm(cfg Config) (Port, error) {
	p, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        byte(cfg.DataBits),
		Parity:      tarmParity[cfg.Parity],
		StopBits:    tarmStopBits[cfg.StopBits],
	})
	if err != nil {
		return nil, err
	}
	return &tarmPort{port: p}, nil
}

// Read 读超时在 posix 上表现为 (0, io.EOF)，按无数据处理
func (p *tarmPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

func (p *tarmPort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *tarmPort) Flush() error                { return p.port.Flush() }
func (p *tarmPort) Close() error                { return p.port.Close() }
