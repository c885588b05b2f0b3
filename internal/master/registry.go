package master

import (
	"sort"
	"sync"
	"time"
)

// RequestState 单个节点上请求的状态
type RequestState string

const (
	StateIdle         RequestState = "idle"
	StateSent         RequestState = "sent"
	StateAcked        RequestState = "acked"
	StateTimedOut     RequestState = "timed_out"
	StateNackReceived RequestState = "nack_received"
)

// NodeInfo 节点记录
type NodeInfo struct {
	Address      byte         `json:"address"`
	ID           string       `json:"id"`
	Version      uint16       `json:"version"`
	Capabilities byte         `json:"capabilities"`
	LastSeen     time.Time    `json:"last_seen"`
	Request      RequestState `json:"request_state"`
	LastOpcode   string       `json:"last_opcode,omitempty"`
}

// registry 节点表，由主站独占
type registry struct {
	mu    sync.RWMutex
	nodes map[byte]*NodeInfo
}

func newRegistry() *registry {
	return &registry{nodes: make(map[byte]*NodeInfo)}
}

func (r *registry) upsert(info NodeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.nodes[info.Address]; ok {
		cur.ID = info.ID
		cur.Version = info.Version
		cur.Capabilities = info.Capabilities
		cur.LastSeen = info.LastSeen
		return
	}
	n := info
	if n.Request == "" {
		n.Request = StateIdle
	}
	r.nodes[info.Address] = &n
}

// touch 刷新最后应答时间，未注册的节点忽略
func (r *registry) touch(addr byte, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[addr]; ok {
		n.LastSeen = now
	}
}

func (r *registry) setState(addr byte, st RequestState, op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[addr]; ok {
		n.Request = st
		n.LastOpcode = op
	}
}

func (r *registry) rename(from, to byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[from]
	if !ok {
		return
	}
	delete(r.nodes, from)
	n.Address = to
	r.nodes[to] = n
}

func (r *registry) remove(addr byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[addr]; !ok {
		return false
	}
	delete(r.nodes, addr)
	return true
}

func (r *registry) has(addr byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[addr]
	return ok
}

func (r *registry) get(addr byte) (NodeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[addr]
	if !ok {
		return NodeInfo{}, false
	}
	return *n, true
}

func (r *registry) list() []NodeInfo {
	r.mu.RLock()
	out := make([]NodeInfo, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, *n)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (r *registry) addresses() []byte {
	r.mu.RLock()
	out := make([]byte, 0, len(r.nodes))
	for a := range r.nodes {
		out = append(out, a)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// stale 超过 after 未应答的节点
func (r *registry) stale(now time.Time, after time.Duration) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []byte
	for a, n := range r.nodes {
		if now.Sub(n.LastSeen) > after {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *registry) clear() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, 0, len(r.nodes))
	for a := range r.nodes {
		out = append(out, a)
	}
	r.nodes = make(map[byte]*NodeInfo)
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
