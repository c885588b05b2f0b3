package axis

import (
	"errors"
	"fmt"
	"time"

	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

// ErrUnknownAxis 地址上没有绑定轴
var ErrUnknownAxis = errors.New("unknown axis")

// State 轴运动状态
type State string

const (
	StateUnknown      State = "unknown"
	StateIdle         State = "idle"
	StateMoving       State = "moving"
	StateFault        State = "fault"
	StateDisconnected State = "disconnected"
)

// Limits 行程与运动限制
type Limits struct {
	Min         int32 `json:"min"`
	Max         int32 `json:"max"`
	MaxVelocity int32 `json:"max_velocity"`
	MaxAccel    int32 `json:"max_accel"`
}

// Contains 目标位置是否在 [Min, Max] 内
func (l Limits) Contains(pos int32) bool {
	return pos >= l.Min && pos <= l.Max
}

// RangeError 目标越界，本地拒绝，不会发到总线上
type RangeError struct {
	Address byte
	Target  int32
	Min     int32
	Max     int32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("axis %d: target %d outside [%d, %d]", e.Address, e.Target, e.Min, e.Max)
}

// Axis 绑定到节点地址的逻辑轴，只由主站修改
type Axis struct {
	Address   byte
	Name      string
	Limits    Limits
	Position  int32
	Target    int32
	Velocity  int32
	State     State
	Faults    byte
	UpdatedAt time.Time
}

// CheckTarget 只做范围检查
func (a *Axis) CheckTarget(pos int32) error {
	if !a.Limits.Contains(pos) {
		return &RangeError{Address: a.Address, Target: pos, Min: a.Limits.Min, Max: a.Limits.Max}
	}
	return nil
}

// SetTarget 范围检查通过后记录目标
func (a *Axis) SetTarget(pos int32) error {
	if err := a.CheckTarget(pos); err != nil {
		return err
	}
	a.Target = pos
	return nil
}

// ApplyStatus 用节点上报的状态更新
func (a *Axis) ApplyStatus(r moco.StatusReport, now time.Time) {
	a.Position = r.Position
	a.Velocity = r.Velocity
	a.Faults = r.Faults
	switch r.State {
	case moco.MotionIdle:
		a.State = StateIdle
	case moco.MotionMoving:
		a.State = StateMoving
	case moco.MotionFault:
		a.State = StateFault
	}
	a.UpdatedAt = now
}

// MarkDisconnected 节点被驱逐或链路断开
func (a *Axis) MarkDisconnected() {
	a.State = StateDisconnected
	a.Velocity = 0
}

// Status 对外的只读快照
type Status struct {
	Address   byte      `json:"address"`
	Name      string    `json:"name,omitempty"`
	Position  int32     `json:"position"`
	Target    int32     `json:"target"`
	Velocity  int32     `json:"velocity"`
	State     State     `json:"state"`
	Faults    byte      `json:"faults"`
	Limits    Limits    `json:"limits"`
	UpdatedAt time.Time `json:"updated_at"`
	Stale     bool      `json:"stale"` // 超时未更新，不可信
}

// Snapshot 生成快照，超过 staleAfter 未更新的标记为 Stale
func (a *Axis) Snapshot(now time.Time, staleAfter time.Duration) Status {
	stale := false
	if a.State != StateDisconnected {
		stale = a.UpdatedAt.IsZero() || (staleAfter > 0 && now.Sub(a.UpdatedAt) > staleAfter)
	}
	return Status{
		Address:   a.Address,
		Name:      a.Name,
		Position:  a.Position,
		Target:    a.Target,
		Velocity:  a.Velocity,
		State:     a.State,
		Faults:    a.Faults,
		Limits:    a.Limits,
		UpdatedAt: a.UpdatedAt,
		Stale:     stale,
	}
}
