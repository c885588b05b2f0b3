package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_events_up.sql":  {Data: []byte("SELECT 2")},
		"migrations/0001_nodes_up.sql":   {Data: []byte("SELECT 1")},
		"migrations/0001_nodes_down.sql": {Data: []byte("SELECT 0")},
		"migrations/readme.md":           {Data: []byte("-")},
		"migrations/next_version_up.sql": {Data: []byte("-")},
		"migrations/0010_archive_up.sql": {Data: []byte("SELECT 10")},
	}

	plan, err := Plan(fsys)
	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, []int64{1, 2, 10}, []int64{plan[0].Version, plan[1].Version, plan[2].Version})
	assert.Equal(t, Migration{Version: 1, Name: "nodes", Path: "migrations/0001_nodes_up.sql"}, plan[0])

	t.Run("版本重复", func(t *testing.T) {
		dup := fstest.MapFS{
			"a/0001_x_up.sql": {Data: []byte("-")},
			"b/0001_y_up.sql": {Data: []byte("-")},
		}
		_, err := Plan(dup)
		assert.ErrorContains(t, err, "duplicate migration version 1")
	})
}

func TestParseName(t *testing.T) {
	m, ok := parseName("x/0003_bus_journal_up.sql")
	require.True(t, ok)
	assert.Equal(t, int64(3), m.Version)
	assert.Equal(t, "bus_journal", m.Name)

	_, ok = parseName("0003_bus_journal_down.sql")
	assert.False(t, ok)
}

func TestRunner_NilFS(t *testing.T) {
	_, err := Runner{}.Up(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFS)
}
