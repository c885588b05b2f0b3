package node

import (
	"errors"
	"fmt"
	"sync"

	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

// ErrCameraRejected 相机拒绝该操作
var ErrCameraRejected = errors.New("camera rejected")

// Camera 节点附带的快门控制
type Camera interface {
	Control(action moco.CameraAction, value int32) error
}

// CameraSettings 相机当前设置快照
type CameraSettings struct {
	Enabled  bool
	Interval int32 // ms
	Exposure int32 // ms
	Focus    int32 // ms
	Delay    int32 // ms
	MaxShots int32
	Shots    int32
}

// SimCamera 记录设置与曝光次数
type SimCamera struct {
	mu  sync.Mutex
	cur CameraSettings
}

func NewSimCamera() *SimCamera {
	return &SimCamera{cur: CameraSettings{Exposure: 100}}
}

func (c *SimCamera) Control(action moco.CameraAction, value int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch action {
	case moco.CameraEnable:
		if value != 0 && value != 1 {
			return fmt.Errorf("%w: enable %d", ErrCameraRejected, value)
		}
		c.cur.Enabled = value == 1
	case moco.CameraExpose:
		if !c.cur.Enabled {
			return fmt.Errorf("%w: camera disabled", ErrCameraRejected)
		}
		if c.cur.MaxShots > 0 && c.cur.Shots >= c.cur.MaxShots {
			return fmt.Errorf("%w: max shots %d reached", ErrCameraRejected, c.cur.MaxShots)
		}
		c.cur.Shots++
	case moco.CameraInterval, moco.CameraExposure, moco.CameraFocus, moco.CameraDelay, moco.CameraMaxShots:
		if value < 0 {
			return fmt.Errorf("%w: %s %d", ErrCameraRejected, action, value)
		}
		c.set(action, value)
	default:
		return fmt.Errorf("%w: action %d", ErrCameraRejected, action)
	}
	return nil
}

// set 调用方持锁
func (c *SimCamera) set(action moco.CameraAction, value int32) {
	switch action {
	case moco.CameraInterval:
		c.cur.Interval = value
	case moco.CameraExposure:
		c.cur.Exposure = value
	case moco.CameraFocus:
		c.cur.Focus = value
	case moco.CameraDelay:
		c.cur.Delay = value
	case moco.CameraMaxShots:
		c.cur.MaxShots = value
		c.cur.Shots = 0
	}
}

func (c *SimCamera) Settings() CameraSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}
