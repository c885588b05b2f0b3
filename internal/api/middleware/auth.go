// Package middleware 控制接口的 HTTP 中间件
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
)

// CtxKeyPrefix gin 上下文中保存的调用方 key 前缀，handler 审计日志使用
const CtxKeyPrefix = "api_key_prefix"

type keyring [][]byte

func newKeyring(keys []string) keyring {
	out := make(keyring, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

// match 逐个做常数时间比较，不提前返回
func (r keyring) match(key string) bool {
	found := 0
	for _, k := range r {
		found |= subtle.ConstantTimeCompare(k, []byte(key))
	}
	return found == 1
}

// APIKeyAuth 校验 X-API-Key 或 Authorization: Bearer <key>
// 缺少 key 返回 401，key 不在列表中返回 403；写命令的调用记 Info 审计日志
func APIKeyAuth(cfg cfgpkg.APIAuthConfig, logger *zap.Logger) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	ring := newKeyring(cfg.APIKeys)

	return func(c *gin.Context) {
		key := extractKey(c.Request)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("remote_addr", c.ClientIP()),
		}
		switch {
		case key == "":
			logger.Warn("api auth: missing key", fields...)
			deny(c, http.StatusUnauthorized, "unauthorized", "missing X-API-Key or bearer token")
			return
		case !ring.match(key):
			logger.Warn("api auth: invalid key", append(fields, zap.String(CtxKeyPrefix, maskAPIKey(key)))...)
			deny(c, http.StatusForbidden, "forbidden", "invalid api key")
			return
		}

		c.Set(CtxKeyPrefix, maskAPIKey(key))
		if c.Request.Method != http.MethodGet {
			logger.Info("api command authorized", append(fields, zap.String(CtxKeyPrefix, maskAPIKey(key)))...)
		}
		c.Next()
	}
}

func deny(c *gin.Context, code int, kind, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": kind, "message": msg})
}

func extractKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

// maskAPIKey 只保留首尾 4 位
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// CORS 允许浏览器控制台跨域访问
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
