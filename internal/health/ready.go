package health

import "sync/atomic"

// Readiness 启动阶段的就绪标记：总线打开且首轮发现完成
type Readiness struct {
	busOpen    atomic.Bool
	discovered atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetBusOpen(v bool)    { r.busOpen.Store(v) }
func (r *Readiness) SetDiscovered(v bool) { r.discovered.Store(v) }

// Ready 各阶段均为 true
func (r *Readiness) Ready() bool {
	return r.busOpen.Load() && r.discovered.Load()
}
