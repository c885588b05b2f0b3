package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	cfgpkg "github.com/taoyao-code/mocobus/internal/config"
)

// InitLogger 初始化 zap 日志器（支持 lumberjack 滚动文件），并替换全局 logger
func InitLogger(cfg cfgpkg.LoggingConfig) (*zap.Logger, error) {
	var sinks []zapcore.WriteSyncer
	sinks = append(sinks, zapcore.AddSync(os.Stdout))
	// 文件名为空时只写控制台
	if cfg.File.Filename != "" {
		sinks = append(sinks, zapcore.AddSync(rollingFile(cfg.File)))
	}
	logger := New(cfg, zapcore.NewMultiWriteSyncer(sinks...))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// New 按配置构建写到 ws 的日志器
func New(cfg cfgpkg.LoggingConfig, ws zapcore.WriteSyncer) *zap.Logger {
	core := zapcore.NewCore(newEncoder(cfg.Format), ws, parseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller())
}

// Component 带组件名的子日志器
func Component(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		l = zap.L()
	}
	return l.With(zap.String("component", name))
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if strings.ToLower(format) == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

func rollingFile(f cfgpkg.LumberjackConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   f.Filename,
		MaxSize:    f.MaxSizeMB,
		MaxBackups: f.MaxBackups,
		MaxAge:     f.MaxAgeDays,
		Compress:   f.Compress,
	}
}
