package pg

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/master"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

type fakeStore struct {
	mu       sync.Mutex
	nodes    []master.NodeInfo
	offline  []byte
	requests []master.RequestRecord
	events   []axis.Status
	fail     error
}

func (s *fakeStore) UpsertNode(_ context.Context, info master.NodeInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, info)
	return s.fail
}

func (s *fakeStore) MarkNodeOffline(_ context.Context, addr byte, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = append(s.offline, addr)
	return s.fail
}

func (s *fakeStore) InsertRequest(_ context.Context, rec master.RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, rec)
	return s.fail
}

func (s *fakeStore) InsertAxisEvent(_ context.Context, st axis.Status, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, st)
	return s.fail
}

func (s *fakeStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes) + len(s.offline) + len(s.requests) + len(s.events)
}

func TestJournal_WritesAllKinds(t *testing.T) {
	store := &fakeStore{}
	j := NewJournal(store, 16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = j.Run(ctx)
		close(done)
	}()

	j.NodeSeen(master.NodeInfo{Address: 2, ID: "PAN00001"})
	j.RequestDone(master.RequestRecord{Address: 2, Opcode: moco.OpMoveTo, Attempts: 1, Result: master.ResultAcked, At: time.Now()})
	j.StatusChanged(axis.Status{Address: 2, Position: 10, State: axis.StateIdle})
	j.NodeEvicted(2, "stale")

	require.Eventually(t, func() bool { return store.total() == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	written, dropped := j.Stats()
	assert.Equal(t, uint64(4), written)
	assert.Zero(t, dropped)
	assert.Equal(t, []byte{2}, store.offline)
}

func TestJournal_DropsWhenFull(t *testing.T) {
	j := NewJournal(&fakeStore{}, 2, nil)
	for i := 0; i < 5; i++ {
		j.StatusChanged(axis.Status{Address: 3})
	}
	_, dropped := j.Stats()
	assert.Equal(t, uint64(3), dropped)
}

func TestJournal_DrainOnStop(t *testing.T) {
	store := &fakeStore{}
	j := NewJournal(store, 8, nil)
	for i := 0; i < 3; i++ {
		j.StatusChanged(axis.Status{Address: 4})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, j.Run(ctx))
	assert.Equal(t, 3, store.total(), "停止前写完队列")
}

func TestJournal_WriteErrorNotCounted(t *testing.T) {
	store := &fakeStore{fail: errors.New("db down")}
	j := NewJournal(store, 4, nil)
	j.NodeEvicted(5, "unreachable")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, j.Run(ctx))
	written, _ := j.Stats()
	assert.Zero(t, written)
}
