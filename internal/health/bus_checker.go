package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/mocobus/internal/transceiver"
)

// BusLink 总线链路状态来源
type BusLink interface {
	Connected() bool
	LinkStats() transceiver.Stats
	NodeCount() int
}

// BusChecker 串口总线健康检查器
type BusChecker struct {
	link   BusLink
	device string
}

// NewBusChecker 创建总线健康检查器
func NewBusChecker(link BusLink, device string) *BusChecker {
	return &BusChecker{link: link, device: device}
}

func (c *BusChecker) Name() string {
	return "serial_bus"
}

// Check 链路断开为 Unhealthy；无在线节点或坏帧比例过高为 Degraded
func (c *BusChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.link.LinkStats()
	nodes := c.link.NodeCount()

	details := map[string]any{
		"device":        c.device,
		"nodes_online":  nodes,
		"bytes_in":      st.BytesIn,
		"bytes_out":     st.BytesOut,
		"frames_ok":     st.FramesOK,
		"frame_errors":  st.FrameErrors,
		"decode_errors": st.DecodeErrors,
		"dropped":       st.Dropped,
	}

	if !c.link.Connected() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "serial link closed",
			Details: details,
			Latency: time.Since(start),
		}
	}

	status := StatusHealthy
	message := "ok"

	bad := st.FrameErrors + st.DecodeErrors
	if total := st.FramesOK + bad; total > 0 {
		ratio := float64(bad) / float64(total)
		details["error_ratio"] = fmt.Sprintf("%.1f%%", ratio*100)
		if ratio > 0.1 {
			status = StatusDegraded
			message = "high frame error ratio"
		}
	}
	if nodes == 0 {
		status = StatusDegraded
		message = "no nodes online"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
