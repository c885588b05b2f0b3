package api

import (
	"context"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/master"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

// Controller 主站对上接口；*master.Master 实现
type Controller interface {
	DiscoverNodes(ctx context.Context) ([]master.NodeInfo, error)
	Nodes() []master.NodeInfo
	Node(addr byte) (master.NodeInfo, bool)
	Axes() []axis.Status
	Axis(addr byte) (axis.Status, bool)
	QueryStatus(ctx context.Context, addr byte) (axis.Status, error)
	MoveAxis(ctx context.Context, addr byte, target int32) error
	StopAxis(ctx context.Context, addr byte) error
	SetParameter(ctx context.Context, addr byte, p moco.Param, value int32) error
	ChangeAddress(ctx context.Context, from, to byte) error
	Broadcast(ctx context.Context, action moco.ProgramAction) error
	Home(ctx context.Context, addr byte, action moco.HomeAction) error
	Camera(ctx context.Context, addr byte, action moco.CameraAction, value int32) error
	SubscribeStatus(buffer int) *master.Subscription
}

var _ Controller = (*master.Master)(nil)

// 参数名到参数码
var paramNames = map[string]moco.Param{
	"max_velocity": moco.ParamMaxVelocity,
	"max_accel":    moco.ParamMaxAccel,
	"microstep":    moco.ParamMicrostep,
	"sleep":        moco.ParamSleep,
	"backlash":     moco.ParamBacklash,
}

var programActions = map[string]moco.ProgramAction{
	"start": moco.ProgramStart,
	"stop":  moco.ProgramStop,
	"pause": moco.ProgramPause,
}

var homeActions = map[string]moco.HomeAction{
	"set": moco.HomeSet,
	"go":  moco.HomeGo,
}

// disable 映射为 enable=0
var cameraActions = map[string]moco.CameraAction{
	"enable":    moco.CameraEnable,
	"disable":   moco.CameraEnable,
	"expose":    moco.CameraExpose,
	"interval":  moco.CameraInterval,
	"exposure":  moco.CameraExposure,
	"focus":     moco.CameraFocus,
	"delay":     moco.CameraDelay,
	"max_shots": moco.CameraMaxShots,
}
