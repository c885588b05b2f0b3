package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

func TestAccepts(t *testing.T) {
	assert.True(t, Accepts(5, 5))
	assert.True(t, Accepts(5, BroadcastAddress))
	assert.False(t, Accepts(5, 6))
	assert.False(t, Accepts(5, MasterAddress))
}

func TestValidateRequest(t *testing.T) {
	cases := []struct {
		name string
		cmd  moco.Command
		err  error
	}{
		{"单播移动", moco.NewMoveTo(2, 10), nil},
		{"广播停止", moco.NewStop(BroadcastAddress), nil},
		{"广播程序控制", moco.NewProgramControl(BroadcastAddress, moco.ProgramStart), nil},
		{"广播移动不允许", moco.NewMoveTo(BroadcastAddress, 10), ErrNotBroadcastable},
		{"广播识别不允许", moco.NewIdentify(BroadcastAddress), ErrNotBroadcastable},
		{"发往主站地址", moco.NewStop(MasterAddress), ErrInvalidAddress},
		{"主站不能发应答", moco.NewAck(2, moco.OpStop), ErrNotInitiator},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRequest(tc.cmd)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestValidateResponse(t *testing.T) {
	assert.NoError(t, ValidateResponse(moco.NewAck(9, moco.OpMoveTo)))
	assert.ErrorIs(t, ValidateResponse(moco.NewStop(9)), ErrNotResponse)
	assert.ErrorIs(t, ValidateResponse(moco.NewAck(BroadcastAddress, moco.OpMoveTo)), ErrInvalidAddress)
}

func TestExpectsReply(t *testing.T) {
	assert.True(t, ExpectsReply(moco.NewQueryStatus(3)))
	assert.False(t, ExpectsReply(moco.NewStop(BroadcastAddress)))
	assert.False(t, ExpectsReply(moco.NewAck(3, moco.OpStop)))
}

func TestBroadcastable(t *testing.T) {
	for _, op := range []moco.Opcode{moco.OpStop, moco.OpProgramControl, moco.OpSetParameter} {
		assert.True(t, Broadcastable(op), op.String())
	}
	for _, op := range []moco.Opcode{moco.OpIdentify, moco.OpQueryStatus, moco.OpMoveTo, moco.OpChangeAddress} {
		assert.False(t, Broadcastable(op), op.String())
	}
}
