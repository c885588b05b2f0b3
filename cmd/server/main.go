package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taoyao-code/mocobus/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
	"github.com/taoyao-code/mocobus/internal/logging"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "config file (default: $MOCO_CONFIG or configs/example.yaml)")
	pflag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	// 3) 启动
	if err := bootstrap.Run(cfg, logger); err != nil {
		logger.Error("controller exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
