package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusCode Degraded 仍可服务，只有 Unhealthy 返回 503
func statusCode(st Status) int {
	if st == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

type routes struct {
	agg *Aggregator
}

// RegisterHTTPRoutes 挂载 /health 系列路由
//
//	GET /health         全量报告
//	GET /health/ready   总线可用即就绪
//	GET /health/live    进程存活
//	GET /health/c/:name 单个检查器（serial_bus / database / redis）
func RegisterHTTPRoutes(r gin.IRoutes, aggregator *Aggregator) {
	h := routes{agg: aggregator}
	r.GET("/health", h.report)
	r.GET("/health/ready", h.ready)
	r.GET("/health/live", h.live)
	r.GET("/health/c/:name", h.single)
}

func (h routes) report(c *gin.Context) {
	rep := h.agg.Report(c.Request.Context())
	c.JSON(statusCode(rep.Status), rep)
}

func (h routes) ready(c *gin.Context) {
	ok := h.agg.Ready(c.Request.Context())
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ok})
}

func (h routes) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alive": h.agg.Alive()})
}

func (h routes) single(c *gin.Context) {
	name := c.Param("name")
	res, ok := h.agg.CheckOne(c.Request.Context(), name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown check", "name": name})
		return
	}
	c.JSON(statusCode(res.Status), res)
}
