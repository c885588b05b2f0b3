package axis

import (
	"sort"
	"sync"
	"time"
)

// Table 轴表，由主站独占写入
type Table struct {
	mu       sync.RWMutex
	axes     map[byte]*Axis
	profiles map[byte]Profile
	defaults Limits
}

// NewTable 用配置的轴参数预先建表，未配置的节点使用 defaults
func NewTable(profiles []Profile, defaults Limits) *Table {
	t := &Table{
		axes:     make(map[byte]*Axis),
		profiles: make(map[byte]Profile),
		defaults: defaults,
	}
	for _, p := range profiles {
		t.profiles[p.Address] = p
		t.axes[p.Address] = &Axis{Address: p.Address, Name: p.Name, Limits: p.Limits(), State: StateUnknown}
	}
	return t
}

// Bind 发现节点后绑定轴（已存在则复用）
func (t *Table) Bind(addr byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.axes[addr]; ok {
		return
	}
	t.axes[addr] = &Axis{Address: addr, Limits: t.defaults, State: StateUnknown}
}

// Rebind 节点改地址后迁移轴记录；目标地址有配置时沿用其限位
func (t *Table) Rebind(from, to byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.axes[from]
	if !ok {
		return
	}
	delete(t.axes, from)
	a.Address = to
	if p, ok := t.profiles[to]; ok {
		a.Name = p.Name
		a.Limits = p.Limits()
	}
	t.axes[to] = a
	// 原地址若有配置，保留一个空位
	if p, ok := t.profiles[from]; ok {
		t.axes[from] = &Axis{Address: from, Name: p.Name, Limits: p.Limits(), State: StateDisconnected}
	}
}

// Update 在写锁内修改轴
func (t *Table) Update(addr byte, fn func(*Axis) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.axes[addr]
	if !ok {
		return ErrUnknownAxis
	}
	return fn(a)
}

// CheckTarget 范围检查，不修改状态
func (t *Table) CheckTarget(addr byte, pos int32) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.axes[addr]
	if !ok {
		return ErrUnknownAxis
	}
	return a.CheckTarget(pos)
}

// Get 单个轴快照
func (t *Table) Get(addr byte, now time.Time, staleAfter time.Duration) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.axes[addr]
	if !ok {
		return Status{}, false
	}
	return a.Snapshot(now, staleAfter), true
}

// All 全部轴快照，按地址排序
func (t *Table) All(now time.Time, staleAfter time.Duration) []Status {
	t.mu.RLock()
	out := make([]Status, 0, len(t.axes))
	for _, a := range t.axes {
		out = append(out, a.Snapshot(now, staleAfter))
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// MarkDisconnected 标记单个轴断开
func (t *Table) MarkDisconnected(addr byte, now time.Time) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.axes[addr]
	if !ok {
		return Status{}, false
	}
	a.MarkDisconnected()
	return a.Snapshot(now, 0), true
}

// MarkAllDisconnected 链路故障时全部标记断开
func (t *Table) MarkAllDisconnected(now time.Time) []Status {
	t.mu.Lock()
	out := make([]Status, 0, len(t.axes))
	for _, a := range t.axes {
		if a.State == StateDisconnected {
			continue
		}
		a.MarkDisconnected()
		out = append(out, a.Snapshot(now, 0))
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
