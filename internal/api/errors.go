package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/mocobus/internal/axis"
	"github.com/taoyao-code/mocobus/internal/bus"
	"github.com/taoyao-code/mocobus/internal/master"
	"github.com/taoyao-code/mocobus/internal/protocol/moco"
	"github.com/taoyao-code/mocobus/internal/serial"
)

// statusOf 错误到 HTTP 状态码
func statusOf(err error) (int, string) {
	var (
		rangeErr *axis.RangeError
		protoErr *master.ProtocolError
		transErr *serial.TransportError
	)
	switch {
	case errors.As(err, &rangeErr):
		return http.StatusUnprocessableEntity, "out_of_range"
	case errors.Is(err, axis.ErrUnknownAxis):
		return http.StatusNotFound, "unknown_axis"
	case errors.Is(err, bus.ErrInvalidAddress), errors.Is(err, bus.ErrNotBroadcastable):
		return http.StatusBadRequest, "invalid_address"
	case errors.Is(err, master.ErrAddressInUse):
		return http.StatusConflict, "address_in_use"
	case errors.Is(err, master.ErrNotCapable):
		return http.StatusConflict, "not_capable"
	case errors.Is(err, master.ErrNodeUnreachable):
		return http.StatusGatewayTimeout, "node_unreachable"
	case errors.As(err, &protoErr):
		if protoErr.Kind == master.ProtoNack && protoErr.Reason == moco.NackRejected {
			return http.StatusConflict, "rejected"
		}
		return http.StatusBadGateway, "protocol_error"
	case errors.Is(err, master.ErrConnectionClosed), errors.As(err, &transErr):
		return http.StatusServiceUnavailable, "bus_unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	code, kind := statusOf(err)
	body := gin.H{"error": kind, "message": err.Error()}
	var rangeErr *axis.RangeError
	if errors.As(err, &rangeErr) {
		body["min"] = rangeErr.Min
		body["max"] = rangeErr.Max
		body["target"] = rangeErr.Target
	}
	_ = c.Error(err)
	c.JSON(code, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": msg})
}
