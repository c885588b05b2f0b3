package node

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/transceiver"
)

// Host 在同一收发器上承载多个节点
type Host struct {
	tx     *transceiver.Transceiver
	logger *zap.Logger

	mu    sync.RWMutex
	nodes []*Node
}

func NewHost(tx *transceiver.Transceiver, logger *zap.Logger, nodes ...*Node) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{tx: tx, logger: logger.With(zap.String("component", "node_host")), nodes: nodes}
}

// Add 挂载节点
func (h *Host) Add(n *Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes = append(h.nodes, n)
}

// Nodes 已挂载节点快照
func (h *Host) Nodes() []*Node {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Node, len(h.nodes))
	copy(out, h.nodes)
	return out
}

// Serve 阻塞处理入站命令，直到 ctx 取消或收发器关闭
func (h *Host) Serve(ctx context.Context) error {
	h.tx.Start()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-h.tx.Inbound():
			if !ok {
				return nil
			}
			for _, n := range h.Nodes() {
				reply, send := n.HandleInbound(in)
				if !send {
					continue
				}
				if err := h.tx.Send(reply); err != nil {
					h.logger.Warn("reply failed", zap.Uint8("addr", reply.Address), zap.Error(err))
					return err
				}
			}
		}
	}
}
