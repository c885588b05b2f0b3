package node

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

// ErrParamRejected 参数值不被电机接受
var ErrParamRejected = errors.New("parameter rejected")

// Motor 节点驱动的执行机构
type Motor interface {
	MoveTo(target int32) error
	Stop()
	Status() moco.StatusReport
	SetParameter(p moco.Param, v int32) error
	Program(action moco.ProgramAction)
	Home(action moco.HomeAction) error
}

const (
	defaultSimVelocity = 2000 // 步/秒
	defaultSimAccel    = 8000
)

// SimMotor 匀速模拟电机，按时间推进位置
type SimMotor struct {
	mu       sync.Mutex
	now      func() time.Time
	pos      float64
	target   int32
	velocity int32
	accel    int32
	micro    int32
	backlash int32
	sleeping bool
	paused   bool
	faults   byte
	last     time.Time
}

// NewSimMotor 创建模拟电机；now 为空时使用 time.Now
func NewSimMotor(start int32, now func() time.Time) *SimMotor {
	if now == nil {
		now = time.Now
	}
	return &SimMotor{
		now:      now,
		pos:      float64(start),
		target:   start,
		velocity: defaultSimVelocity,
		accel:    defaultSimAccel,
		micro:    1,
		last:     now(),
	}
}

// advance 调用方持锁
func (m *SimMotor) advance() {
	t := m.now()
	dt := t.Sub(m.last).Seconds()
	m.last = t
	if m.paused || m.sleeping || dt <= 0 {
		return
	}
	goal := float64(m.target)
	step := float64(m.velocity) * dt
	switch {
	case math.Abs(goal-m.pos) <= step:
		m.pos = goal
	case goal > m.pos:
		m.pos += step
	default:
		m.pos -= step
	}
}

func (m *SimMotor) position() int32 { return int32(math.Round(m.pos)) }

func (m *SimMotor) MoveTo(target int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sleeping {
		return fmt.Errorf("%w: motor sleeping", ErrParamRejected)
	}
	m.advance()
	m.target = target
	return nil
}

func (m *SimMotor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.pos = float64(m.position())
	m.target = m.position()
}

func (m *SimMotor) Status() moco.StatusReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	r := moco.StatusReport{Position: m.position(), State: moco.MotionIdle, Faults: m.faults}
	if m.faults != 0 {
		r.State = moco.MotionFault
		return r
	}
	if r.Position != m.target && !m.paused && !m.sleeping {
		r.State = moco.MotionMoving
		r.Velocity = m.velocity
		if m.target < r.Position {
			r.Velocity = -m.velocity
		}
	}
	return r
}

func (m *SimMotor) SetParameter(p moco.Param, v int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	switch p {
	case moco.ParamMaxVelocity:
		if v <= 0 {
			return fmt.Errorf("%w: velocity %d", ErrParamRejected, v)
		}
		m.velocity = v
	case moco.ParamMaxAccel:
		if v <= 0 {
			return fmt.Errorf("%w: accel %d", ErrParamRejected, v)
		}
		m.accel = v
	case moco.ParamMicrostep:
		switch v {
		case 1, 2, 4, 8, 16:
			m.micro = v
		default:
			return fmt.Errorf("%w: microstep %d", ErrParamRejected, v)
		}
	case moco.ParamSleep:
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: sleep %d", ErrParamRejected, v)
		}
		m.sleeping = v == 1
	case moco.ParamBacklash:
		if v < 0 {
			return fmt.Errorf("%w: backlash %d", ErrParamRejected, v)
		}
		m.backlash = v
	default:
		return fmt.Errorf("%w: unknown param %d", ErrParamRejected, p)
	}
	return nil
}

func (m *SimMotor) Program(action moco.ProgramAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	switch action {
	case moco.ProgramStart:
		m.paused = false
	case moco.ProgramPause:
		m.paused = true
	case moco.ProgramStop:
		m.paused = false
		m.target = m.position()
		m.pos = float64(m.target)
	}
}

// Home set 以当前位置为新原点，go 驶向原点
func (m *SimMotor) Home(action moco.HomeAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	switch action {
	case moco.HomeSet:
		// 整体平移坐标系，未完成的行程保持不变
		off := m.position()
		m.pos -= float64(off)
		m.target -= off
	case moco.HomeGo:
		if m.sleeping {
			return fmt.Errorf("%w: motor sleeping", ErrParamRejected)
		}
		m.target = 0
	default:
		return fmt.Errorf("%w: home action %d", ErrParamRejected, action)
	}
	return nil
}

// SetFault 注入故障码，0 清除
func (m *SimMotor) SetFault(code byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = code
}
