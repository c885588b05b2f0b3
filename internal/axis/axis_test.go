package axis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

func TestSetTarget_Range(t *testing.T) {
	a := &Axis{Address: 2, Limits: Limits{Min: -100, Max: 100}}

	require.NoError(t, a.SetTarget(100))
	assert.Equal(t, int32(100), a.Target)

	err := a.SetTarget(101)
	var re *RangeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, int32(101), re.Target)
	assert.Equal(t, int32(100), a.Target, "越界时不修改目标")
}

func TestSnapshot_Stale(t *testing.T) {
	now := time.Now()
	a := &Axis{Address: 3, State: StateUnknown}
	assert.True(t, a.Snapshot(now, time.Second).Stale, "从未更新视为不可信")

	a.ApplyStatus(moco.StatusReport{Position: 10, Velocity: 5, State: moco.MotionMoving}, now)
	st := a.Snapshot(now.Add(500*time.Millisecond), time.Second)
	assert.False(t, st.Stale)
	assert.Equal(t, StateMoving, st.State)
	assert.Equal(t, int32(10), st.Position)

	assert.True(t, a.Snapshot(now.Add(2*time.Second), time.Second).Stale)

	a.MarkDisconnected()
	st = a.Snapshot(now.Add(2*time.Second), time.Second)
	assert.False(t, st.Stale)
	assert.Equal(t, StateDisconnected, st.State)
	assert.Equal(t, int32(0), st.Velocity)
}

func TestTable(t *testing.T) {
	tbl := NewTable([]Profile{{Address: 2, Name: "pan", Min: -10, Max: 10}}, Limits{Min: -1000, Max: 1000})
	now := time.Now()

	t.Run("未知轴", func(t *testing.T) {
		assert.ErrorIs(t, tbl.CheckTarget(9, 0), ErrUnknownAxis)
		_, ok := tbl.Get(9, now, time.Second)
		assert.False(t, ok)
	})

	t.Run("配置轴限位", func(t *testing.T) {
		var re *RangeError
		assert.True(t, errors.As(tbl.CheckTarget(2, 11), &re))
		assert.NoError(t, tbl.CheckTarget(2, 10))
	})

	t.Run("绑定默认限位", func(t *testing.T) {
		tbl.Bind(5)
		assert.NoError(t, tbl.CheckTarget(5, 999))
		st, ok := tbl.Get(5, now, time.Second)
		require.True(t, ok)
		assert.Equal(t, StateUnknown, st.State)
	})

	t.Run("改地址迁移", func(t *testing.T) {
		require.NoError(t, tbl.Update(5, func(a *Axis) error { a.Position = 42; return nil }))
		tbl.Rebind(5, 6)
		_, ok := tbl.Get(5, now, time.Second)
		assert.False(t, ok)
		st, ok := tbl.Get(6, now, time.Second)
		require.True(t, ok)
		assert.Equal(t, int32(42), st.Position)
	})

	t.Run("全部断开", func(t *testing.T) {
		changed := tbl.MarkAllDisconnected(now)
		assert.Len(t, changed, 2)
		for _, st := range tbl.All(now, time.Second) {
			assert.Equal(t, StateDisconnected, st.State)
		}
		assert.Empty(t, tbl.MarkAllDisconnected(now))
	})
}

func TestParseProfiles(t *testing.T) {
	raw := []byte(`
axes:
  - address: 2
    name: pan
    min: -20000
    max: 20000
    maxVelocity: 4000
  - address: 3
    name: slider
    min: 0
    max: 150000
`)
	ps, err := ParseProfiles(raw)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "pan", ps[0].Name)
	assert.Equal(t, int32(4000), ps[0].Limits().MaxVelocity)

	_, err = ParseProfiles([]byte("axes:\n  - address: 1\n    name: bad\n"))
	assert.Error(t, err)

	_, err = ParseProfiles([]byte("axes:\n  - address: 4\n    min: 5\n    max: 1\n"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := []Profile{{Address: 2, Name: "pan", Max: 10}, {Address: 3, Name: "tilt", Max: 10}}
	override := []Profile{{Address: 3, Name: "tilt", Max: 99}, {Address: 4, Name: "slide", Max: 5}}

	out := Merge(base, override)
	require.Len(t, out, 3)
	assert.Equal(t, int32(99), out[1].Max)
	assert.Equal(t, byte(4), out[2].Address)
}
