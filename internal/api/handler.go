package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/bus"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
)

const defaultSSEKeepalive = 15 * time.Second

// Handler 总线控制接口
type Handler struct {
	ctrl      Controller
	logger    *zap.Logger
	keepalive time.Duration
}

// NewHandler 创建处理器
func NewHandler(ctrl Controller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ctrl: ctrl, logger: logger, keepalive: defaultSSEKeepalive}
}

type moveRequest struct {
	Target *int32 `json:"target" binding:"required"`
}

type paramRequest struct {
	Param string `json:"param" binding:"required"`
	Value int32  `json:"value"`
}

type homeRequest struct {
	Action string `json:"action" binding:"required"`
}

type cameraRequest struct {
	Action string `json:"action" binding:"required"`
	Value  int32  `json:"value"`
}

type addressRequest struct {
	Address int `json:"address" binding:"required"`
}

// parseAddr 路径中的总线地址 0..255
func parseAddr(c *gin.Context) (byte, bool) {
	v, err := strconv.ParseUint(c.Param("addr"), 10, 8)
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid address %q", c.Param("addr")))
		return 0, false
	}
	return byte(v), true
}

// ListNodes 节点列表
// @Summary 查询在线节点
// @Tags 总线
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/nodes [get]
func (h *Handler) ListNodes(c *gin.Context) {
	nodes := h.ctrl.Nodes()
	c.JSON(http.StatusOK, gin.H{"nodes": nodes, "count": len(nodes)})
}

// GetNode 单个节点
func (h *Handler) GetNode(c *gin.Context) {
	addr, ok := parseAddr(c)
	if !ok {
		return
	}
	n, found := h.ctrl.Node(addr)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_node", "message": fmt.Sprintf("node %d not registered", addr)})
		return
	}
	c.JSON(http.StatusOK, n)
}

// Discover 扫描地址范围
// @Summary 节点发现
// @Tags 总线
// @Produce json
// @Router /api/v1/nodes/discover [post]
func (h *Handler) Discover(c *gin.Context) {
	found, err := h.ctrl.DiscoverNodes(c.Request.Context())
	if err != nil {
		h.logger.Warn("discovery aborted", zap.Error(err), zap.Int("found", len(found)))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": found, "count": len(found)})
}

// ChangeAddress 修改节点地址
func (h *Handler) ChangeAddress(c *gin.Context) {
	from, ok := parseAddr(c)
	if !ok {
		return
	}
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Address < 0 || req.Address > 255 {
		badRequest(c, fmt.Sprintf("address %d out of byte range", req.Address))
		return
	}
	if err := h.ctrl.ChangeAddress(c.Request.Context(), from, byte(req.Address)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": req.Address})
}

// ListAxes 所有轴快照
// @Summary 查询轴状态
// @Tags 轴
// @Produce json
// @Router /api/v1/axes [get]
func (h *Handler) ListAxes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"axes": h.ctrl.Axes()})
}

// AxisStatus 单轴状态；refresh=1 时向节点查询
// @Summary 单轴状态
// @Tags 轴
// @Param addr path int true "节点地址"
// @Param refresh query int false "1=向节点查询"
// @Router /api/v1/axes/{addr}/status [get]
func (h *Handler) AxisStatus(c *gin.Context) {
	addr, ok := parseAddr(c)
	if !ok {
		return
	}
	if c.Query("refresh") == "1" {
		st, err := h.ctrl.QueryStatus(c.Request.Context(), addr)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
		return
	}
	st, found := h.ctrl.Axis(addr)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_axis", "message": fmt.Sprintf("axis %d not bound", addr)})
		return
	}
	c.JSON(http.StatusOK, st)
}

// Move 绝对定位
// @Summary 轴移动
// @Tags 轴
// @Accept json
// @Param addr path int true "节点地址"
// @Router /api/v1/axes/{addr}/move [post]
func (h *Handler) Move(c *gin.Context) {
	addr, ok := parseAddr(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.ctrl.MoveAxis(c.Request.Context(), addr, *req.Target); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"address": addr, "target": *req.Target})
}

// Stop 停止；地址 1 时广播
func (h *Handler) Stop(c *gin.Context) {
	addr, ok := parseAddr(c)
	if !ok {
		return
	}
	if err := h.ctrl.StopAxis(c.Request.Context(), addr); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "broadcast": addr == bus.BroadcastAddress})
}

// SetParam 设置电机参数
func (h *Handler) SetParam(c *gin.Context) {
	addr, ok := parseAddr(c)
	if !ok {
		return
	}
	var req paramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, known := paramNames[req.Param]
	if !known {
		badRequest(c, fmt.Sprintf("unknown param %q", req.Param))
		return
	}
	if err := h.ctrl.SetParameter(c.Request.Context(), addr, p, req.Value); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "param": req.Param, "value": req.Value})
}

// Home 设原点或回原点
// @Summary 轴原点
// @Tags 轴
// @Accept json
// @Param addr path int true "节点地址"
// @Router /api/v1/axes/{addr}/home [post]
func (h *Handler) Home(c *gin.Context) {
	addr, ok := parseAddr(c)
	if !ok {
		return
	}
	var req homeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	action, known := homeActions[req.Action]
	if !known {
		badRequest(c, fmt.Sprintf("unknown home action %q", req.Action))
		return
	}
	if err := h.ctrl.Home(c.Request.Context(), addr, action); err != nil {
		writeError(c, err)
		return
	}
	code := http.StatusOK
	if action == moco.HomeGo {
		code = http.StatusAccepted
	}
	c.JSON(code, gin.H{"address": addr, "action": action.String()})
}

// Camera 相机控制，仅对声明相机能力的节点
// @Summary 相机控制
// @Tags 节点
// @Accept json
// @Param addr path int true "节点地址"
// @Router /api/v1/nodes/{addr}/camera [post]
func (h *Handler) Camera(c *gin.Context) {
	addr, ok := parseAddr(c)
	if !ok {
		return
	}
	var req cameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	action, known := cameraActions[req.Action]
	if !known {
		badRequest(c, fmt.Sprintf("unknown camera action %q", req.Action))
		return
	}
	switch req.Action {
	case "enable":
		req.Value = 1
	case "disable":
		req.Value = 0
	}
	if err := h.ctrl.Camera(c.Request.Context(), addr, action, req.Value); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "action": req.Action, "value": req.Value})
}

// Program 广播程序控制
// @Summary 程序控制广播
// @Tags 总线
// @Param action path string true "start|stop|pause"
// @Router /api/v1/program/{action} [post]
func (h *Handler) Program(c *gin.Context) {
	action, known := programActions[c.Param("action")]
	if !known {
		badRequest(c, fmt.Sprintf("unknown action %q", c.Param("action")))
		return
	}
	if err := h.ctrl.Broadcast(c.Request.Context(), action); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"action": action.String()})
}

// StatusStream SSE 推送轴状态；先发一次全量快照
// @Summary 轴状态事件流
// @Tags 轴
// @Produce text/event-stream
// @Router /api/v1/status/stream [get]
func (h *Handler) StatusStream(c *gin.Context) {
	sub := h.ctrl.SubscribeStatus(0)
	defer sub.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.SSEvent("snapshot", h.ctrl.Axes())
	c.Writer.Flush()

	ctx := c.Request.Context()
	tick := time.NewTicker(h.keepalive)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-sub.C:
			if !ok {
				return
			}
			c.SSEvent("status", st)
			c.Writer.Flush()
		case <-tick.C:
			c.SSEvent("ping", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}
