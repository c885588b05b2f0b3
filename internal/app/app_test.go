package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/bus"
	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
	"github.com/taoyao-code/mocobus/internal/node"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
	"github.com/taoyao-code/mocobus/internal/storage"
	"github.com/taoyao-code/mocobus/internal/storage/models"
	"github.com/taoyao-code/mocobus/internal/transceiver"
)

// memRepo 内存版 ProfileRepo
type memRepo struct {
	rows    []models.AxisProfile
	moved   [][2]int16
	listErr error
	moveErr error
}

func (r *memRepo) WithTx(ctx context.Context, fn func(storage.ProfileRepo) error) error {
	return fn(r)
}
func (r *memRepo) ListProfiles(context.Context) ([]models.AxisProfile, error) {
	return r.rows, r.listErr
}
func (r *memRepo) GetProfile(_ context.Context, addr int16) (*models.AxisProfile, error) {
	for i := range r.rows {
		if r.rows[i].Address == addr {
			return &r.rows[i], nil
		}
	}
	return nil, errors.New("not found")
}
func (r *memRepo) UpsertProfile(_ context.Context, p *models.AxisProfile) error {
	r.rows = append(r.rows, *p)
	return nil
}
func (r *memRepo) DeleteProfile(context.Context, int16) error { return nil }
func (r *memRepo) MoveProfile(_ context.Context, from, to int16) error {
	r.moved = append(r.moved, [2]int16{from, to})
	return r.moveErr
}

func testConfig() *cfgpkg.Config {
	return &cfgpkg.Config{
		Bus: cfgpkg.BusConfig{
			Timeout:       80 * time.Millisecond,
			MaxRetries:    1,
			SweepInterval: time.Second,
			DiscoverFrom:  2,
			DiscoverTo:    4,
			InboundQueue:  64,
			EventBuffer:   16,
		},
		AxisDefaults: cfgpkg.AxisDefaults{Min: -1000, Max: 1000, MaxVelocity: 2000, MaxAccel: 8000},
	}
}

func TestLoadProfiles(t *testing.T) {
	cfg := testConfig()
	cfg.Axes = []axis.Profile{
		{Address: 2, Name: "pan", Min: 0, Max: 100},
		{Address: 3, Name: "tilt", Min: 0, Max: 100},
	}

	t.Run("只有配置", func(t *testing.T) {
		got, err := LoadProfiles(context.Background(), cfg, nil, zap.NewNop())
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("文件与数据库逐层覆盖", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "axes.yaml")
		require.NoError(t, os.WriteFile(path, []byte("axes:\n  - address: 3\n    name: tilt-file\n    min: -50\n    max: 50\n  - address: 4\n    name: slide\n    min: 0\n    max: 9000\n"), 0o644))
		c := *cfg
		c.AxesFile = path
		repo := &memRepo{rows: []models.AxisProfile{{Address: 4, Name: "slide-db", MinPos: 0, MaxPos: 12000}}}

		got, err := LoadProfiles(context.Background(), &c, repo, zap.NewNop())
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "pan", got[0].Name)
		assert.Equal(t, "tilt-file", got[1].Name)
		assert.Equal(t, "slide-db", got[2].Name)
		assert.Equal(t, int32(12000), got[2].Max)
	})

	t.Run("文件不存在", func(t *testing.T) {
		c := *cfg
		c.AxesFile = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := LoadProfiles(context.Background(), &c, nil, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("数据库读取失败", func(t *testing.T) {
		_, err := LoadProfiles(context.Background(), cfg, &memRepo{listErr: errors.New("boom")}, zap.NewNop())
		assert.Error(t, err)
	})
}

// 经回环总线验证装配出的主站与改地址后的配置迁移
func TestNewMasterAndProfileSync(t *testing.T) {
	lb := bus.NewLoopback()
	defer lb.Close()

	n := node.New(node.Config{Address: 2, ID: "PAN", Capabilities: moco.CapMotor}, node.NewSimMotor(0, nil), nil)
	host := node.NewHost(transceiver.New(lb.Open()), zap.NewNop(), n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = host.Serve(ctx) }()

	_, bm := NewMetrics()
	cfg := testConfig()
	m := NewMaster(lb.Open(), []axis.Profile{{Address: 2, Name: "pan", Min: 0, Max: 500}}, cfg, bm, zap.NewNop())
	m.Start(ctx)
	defer m.Close()

	found, err := m.DiscoverNodes(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)

	var re *axis.RangeError
	assert.ErrorAs(t, m.MoveAxis(ctx, 2, 600), &re)

	repo := &memRepo{moveErr: errors.New("db down")}
	ps := NewProfileSync(m, repo, zap.NewNop())
	require.NoError(t, ps.ChangeAddress(ctx, 2, 9))
	assert.Equal(t, [][2]int16{{2, 9}}, repo.moved)

	_, ok := ps.Node(9)
	assert.True(t, ok)
	st, ok := ps.Axis(9)
	require.True(t, ok)
	assert.Equal(t, "pan", st.Name)
}

func TestMasterConfig(t *testing.T) {
	mc := MasterConfig(cfgpkg.BusConfig{DiscoverFrom: 2, DiscoverTo: 200, MaxRetries: 3, FramesPerSec: 50})
	assert.Equal(t, byte(2), mc.DiscoverFrom)
	assert.Equal(t, byte(200), mc.DiscoverTo)
	assert.Equal(t, 3, mc.MaxRetries)
	assert.Equal(t, 50, mc.FramesPerSec)
}

func TestGenerateInstanceID(t *testing.T) {
	t.Setenv("MOCO_INSTANCE_ID", "rig-a")
	assert.Equal(t, "rig-a", GenerateInstanceID())

	t.Setenv("MOCO_INSTANCE_ID", "")
	assert.Contains(t, GenerateInstanceID(), "mocobus-")
}

func TestOpenStatusMirror_Disabled(t *testing.T) {
	client, mirror, err := OpenStatusMirror(context.Background(), cfgpkg.RedisConfig{}, 8, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.Nil(t, mirror)
}
