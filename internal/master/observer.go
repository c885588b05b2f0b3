package master

import (
	"context"
	"time"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

// Requester 发起命令并等待应答的能力
type Requester interface {
	Request(ctx context.Context, cmd moco.Command) (moco.Command, error)
}

var _ Requester = (*Master)(nil)

// 请求结果标签
const (
	ResultAcked          = "acked"
	ResultNack           = "nack"
	ResultTimeout        = "timeout"
	ResultTransportError = "transport_error"
	ResultClosed         = "closed"
	ResultCanceled       = "canceled"
	ResultBroadcast      = "broadcast"
	ResultProtocolError  = "protocol_error"
)

// RequestRecord 一次请求的结果
type RequestRecord struct {
	Address  byte
	Opcode   moco.Opcode
	Attempts int
	Result   string
	Err      string
	Duration time.Duration
	At       time.Time
}

// Observer 主站事件旁路（日志库、Redis 镜像等）
// 回调在主站的请求路径上同步调用，实现方不得阻塞
type Observer interface {
	NodeSeen(info NodeInfo)
	NodeEvicted(addr byte, reason string)
	RequestDone(rec RequestRecord)
	StatusChanged(st axis.Status)
}
