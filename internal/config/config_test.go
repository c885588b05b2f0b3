package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/mocobus/internal/serial"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moco.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  env: test\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mocobus", cfg.App.Name)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, serial.DriverBugst, cfg.Serial.Driver)
	assert.Equal(t, serial.DefaultBaud, cfg.Serial.Baud)
	assert.Equal(t, serial.StopBitsOne, cfg.Serial.StopBits)
	assert.Equal(t, 150*time.Millisecond, cfg.Bus.Timeout)
	assert.Equal(t, 2, cfg.Bus.MaxRetries)
	assert.Equal(t, "moco:", cfg.Redis.KeyPrefix)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoad_FileAndAxes(t *testing.T) {
	path := writeConfig(t, `
serial:
  device: /dev/ttyAMA0
  baud: 115200
  flowControl: rs485-gpio
  dePin: GPIO17
bus:
  timeout: 200ms
  maxRetries: 3
axes:
  - address: 2
    name: pan
    min: -9000
    max: 9000
  - address: 3
    name: tilt
    min: -3000
    max: 3000
    maxVelocity: 500
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyAMA0", cfg.Serial.Device)
	assert.Equal(t, serial.FlowRS485GPIO, cfg.Serial.FlowControl)
	assert.Equal(t, "GPIO17", cfg.Serial.DEPin)
	assert.Equal(t, 200*time.Millisecond, cfg.Bus.Timeout)
	assert.Equal(t, 3, cfg.Bus.MaxRetries)
	require.Len(t, cfg.Axes, 2)
	assert.Equal(t, byte(3), cfg.Axes[1].Address)
	assert.Equal(t, int32(500), cfg.Axes[1].MaxVelocity)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "bus:\n  maxRetries: 1\n")
	t.Setenv("MOCO_BUS_MAXRETRIES", "4")
	t.Setenv("MOCO_SERIAL_DEVICE", "/dev/ttyS3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Bus.MaxRetries)
	assert.Equal(t, "/dev/ttyS3", cfg.Serial.Device)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("发现范围非法", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bus:\n  discoverFrom: 1\n"))
		assert.Error(t, err)
	})

	t.Run("轴限位颠倒", func(t *testing.T) {
		_, err := Load(writeConfig(t, "axes:\n  - address: 4\n    min: 10\n    max: -10\n"))
		assert.Error(t, err)
	})

	t.Run("文件格式错误", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bus: [\n"))
		assert.Error(t, err)
	})
}
