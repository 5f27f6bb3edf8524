package service

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 是全局日志接口
// 在其他模块中使用：service.Logger.Info("Pane mounted", zap.String("Pane", name))
// InitLogger 之前为 Nop Logger，测试和库代码不需要额外初始化
var Logger = zap.NewNop()

// InitLogger 初始化 Zap 日志
// env 为 "development" 时使用开发配置 (DPanic 会直接 panic)，否则使用生产配置
func InitLogger(env, level string) error {
	config := zap.NewProductionConfig()
	if strings.EqualFold(env, "development") {
		config = zap.NewDevelopmentConfig()
	}

	// 格式化时间
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "time"

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := config.Build()
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}
