package serial

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig("/dev/ttyUSB0")

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"默认8N1", func(c *Config) {}, true},
		{"空字段使用默认值", func(c *Config) { *c = Config{Device: "/dev/ttyUSB0"} }, true},
		{"缺少设备", func(c *Config) { c.Device = "" }, false},
		{"非标准波特率", func(c *Config) { c.Baud = 12345 }, false},
		{"数据位过大", func(c *Config) { c.DataBits = 9 }, false},
		{"未知校验", func(c *Config) { c.Parity = "weird" }, false},
		{"1.5停止位配8数据位", func(c *Config) { c.StopBits = StopBitsOneHalf }, false},
		{"1.5停止位配5数据位", func(c *Config) { c.StopBits = StopBitsOneHalf; c.DataBits = 5 }, true},
		{"2停止位配5数据位", func(c *Config) { c.StopBits = StopBitsTwo; c.DataBits = 5 }, false},
		{"rs485-gpio缺少引脚", func(c *Config) { c.FlowControl = FlowRS485GPIO }, false},
		{"rs485-gpio", func(c *Config) { c.FlowControl = FlowRS485GPIO; c.DEPin = "GPIO17" }, true},
		{"tarm不支持方向控制", func(c *Config) { c.Driver = DriverTarm; c.FlowControl = FlowRS485RTS }, false},
		{"tarm不支持mark校验", func(c *Config) { c.Driver = DriverTarm; c.Parity = ParityMark }, false},
		{"tarm 8E2", func(c *Config) { c.Driver = DriverTarm; c.Parity = ParityEven; c.StopBits = StopBitsTwo }, true},
		{"未知驱动", func(c *Config) { c.Driver = "ftdi" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestOpen_InvalidConfigFailsAtOpen(t *testing.T) {
	cfg := DefaultConfig("/dev/does-not-matter")
	cfg.StopBits = StopBitsOneHalf

	p, err := Open(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, p)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "open", te.Op)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
