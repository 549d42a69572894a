package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数（由 config.LogConfig 转换而来）
type LogOption struct {
	Format   string // "console" 或 "json"
	LogDir   string // 日志目录，为空时仅输出到 stderr
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩轮转后的旧日志
}

const (
	defaultFileName   = "indexer.log"
	defaultMaxSizeMB  = 200
	defaultMaxBackups = 20
	defaultMaxAgeDays = 7
)

var sugar atomic.Pointer[zap.SugaredLogger]

func init() {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	)
	sugar.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar())
}

// Init 按配置重建全局 logger，可重复调用（以最后一次为准）
func Init(opt LogOption) error {
	level, err := zapcore.ParseLevel(strings.ToLower(opt.Level))
	if err != nil || opt.Level == "" {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(opt.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	default:
		return fmt.Errorf("unsupported log format %q", opt.Format)
	}

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir %s: %w", opt.LogDir, err)
		}
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, defaultFileName),
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   opt.Compress,
			LocalTime:  true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	sugar.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar())
	return nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func Debugf(format string, args ...any) { sugar.Load().Debugf(format, args...) }

func Infof(format string, args ...any) { sugar.Load().Infof(format, args...) }

func Warnf(format string, args ...any) { sugar.Load().Warnf(format, args...) }

func Errorf(format string, args ...any) { sugar.Load().Errorf(format, args...) }

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	_ = sugar.Load().Sync()
}
