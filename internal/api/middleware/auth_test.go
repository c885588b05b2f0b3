package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
)

func newEngine(cfg cfgpkg.APIAuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(), APIKeyAuth(cfg, zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := cfgpkg.APIAuthConfig{Enabled: true, APIKeys: []string{"sk_test_12345678"}}

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"缺少Key", nil, http.StatusUnauthorized},
		{"无效Key", map[string]string{"X-API-Key": "wrong"}, http.StatusForbidden},
		{"X-API-Key", map[string]string{"X-API-Key": "sk_test_12345678"}, http.StatusOK},
		{"Bearer", map[string]string{"Authorization": "Bearer sk_test_12345678"}, http.StatusOK},
		{"非Bearer格式", map[string]string{"Authorization": "Basic sk_test_12345678"}, http.StatusUnauthorized},
	}
	r := newEngine(cfg)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}

	t.Run("未启用直接放行", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newEngine(cfgpkg.APIAuthConfig{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	rr := httptest.NewRecorder()
	newEngine(cfgpkg.APIAuthConfig{}).ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "sk_t****5678", maskAPIKey("sk_test_12345678"))
}

func TestKeyring(t *testing.T) {
	ring := newKeyring([]string{" sk_a ", "", "sk_b"})
	assert.Len(t, ring, 2, "空白项忽略")
	assert.True(t, ring.match("sk_a"))
	assert.True(t, ring.match("sk_b"))
	assert.False(t, ring.match("sk_c"))
	assert.False(t, ring.match(""))
}
