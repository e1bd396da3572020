// Package logger 全局日志
//
// 基于zap + lumberjack，首次调用时按config.Log初始化
package logger

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/codelieche/analytics/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 全局日志器
var (
	logger *zap.Logger
	level  zap.AtomicLevel
	once   sync.Once
)

// createFileSyncer 创建文件日志写入器（按大小滚动）
func createFileSyncer() zapcore.WriteSyncer {
	logConfig := config.Log

	// 确保日志目录存在
	if err := os.MkdirAll(path.Dir(logConfig.FilePath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "创建日志目录失败: %v\n", err)
		return zapcore.AddSync(os.Stdout)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   logConfig.FilePath,
		MaxSize:    logConfig.MaxSize,
		MaxAge:     logConfig.MaxAge,
		MaxBackups: logConfig.MaxBackups,
		Compress:   logConfig.Compress,
	})
}

// InitLogger 初始化日志
func InitLogger() {
	once.Do(func() {
		logConfig := config.Log

		level = zap.NewAtomicLevel()
		setLogLevel(logConfig.Level)

		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "time"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

		var encoder zapcore.Encoder
		if logConfig.Format == "json" {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}

		// 日志输出到文件/console
		var writeSyncer zapcore.WriteSyncer
		switch logConfig.Output {
		case "all", "both":
			writeSyncer = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), createFileSyncer())
		case "file":
			writeSyncer = createFileSyncer()
		default:
			writeSyncer = zapcore.AddSync(os.Stdout)
		}

		logger = zap.New(
			zapcore.NewCore(encoder, writeSyncer, level),
			zap.AddCaller(),
			zap.AddCallerSkip(1), // 跳过本包的包装函数
			zap.AddStacktrace(zapcore.FatalLevel),
		)

		zap.ReplaceGlobals(logger)
	})
}

// setLogLevel 设置日志级别
func setLogLevel(levelStr string) {
	var zapLevel zapcore.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	case "fatal":
		zapLevel = zapcore.FatalLevel
	default:
		zapLevel = zapcore.InfoLevel
		fmt.Fprintf(os.Stderr, "无效的日志级别: %s, 使用默认级别 info\n", levelStr)
	}
	level.SetLevel(zapLevel)
}

// SetLevel 运行时调整日志级别
func SetLevel(levelStr string) {
	InitLogger()
	setLogLevel(levelStr)
}

// GetLevel 获取当前日志级别
func GetLevel() string {
	InitLogger()
	return level.String()
}

// Logger 获取logger实例
func Logger() *zap.Logger {
	InitLogger()
	return logger
}

// Debug 级别日志
func Debug(msg string, fields ...zap.Field) {
	InitLogger()
	logger.Debug(msg, fields...)
}

// Info 级别日志
func Info(msg string, fields ...zap.Field) {
	InitLogger()
	logger.Info(msg, fields...)
}

// Warn 级别日志
func Warn(msg string, fields ...zap.Field) {
	InitLogger()
	logger.Warn(msg, fields...)
}

// Error 级别日志
func Error(msg string, fields ...zap.Field) {
	InitLogger()
	logger.Error(msg, fields...)
}

// Panic 级别日志
func Panic(msg string, fields ...zap.Field) {
	InitLogger()
	logger.Panic(msg, fields...)
}

// Fatal 级别日志
func Fatal(msg string, fields ...zap.Field) {
	InitLogger()
	logger.Fatal(msg, fields...)
}

// With 包装字段，返回新的logger
func With(fields ...zap.Field) *zap.Logger {
	InitLogger()
	return logger.With(fields...).WithOptions(zap.AddCallerSkip(-1))
}

// Sync 刷新日志缓存到磁盘
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}
