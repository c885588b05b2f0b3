package app

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// InstanceIDEnv 固定实例标识的环境变量，日志库按此区分多个控制器
const InstanceIDEnv = "MOCO_INSTANCE_ID"

// GenerateInstanceID 环境变量优先，否则 mocobus-<host>-<uuid 前 8 位>
func GenerateInstanceID() string {
	if id := strings.TrimSpace(os.Getenv(InstanceIDEnv)); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	host, _, _ = strings.Cut(host, ".")
	return "mocobus-" + host + "-" + uuid.NewString()[:8]
}
