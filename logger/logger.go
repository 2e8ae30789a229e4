package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 是全局可用的 SugaredLogger；Init 之前为空实现，测试中可直接使用
var Log = zap.NewNop().Sugar()

// 流量日志开关（控制台 io / data 命令切换）
var (
	ioLog   atomic.Bool
	dataLog atomic.Bool
)

// Options 日志输出配置
type Options struct {
	File       string // 日志文件路径，如 "webgame.log"
	Level      string // debug | info | warn | error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    bool // 同时输出 INFO 及以上到标准输出
}

// Init 初始化 zap 日志到本地文件（支持滚动），可选同时输出到控制台
func Init(opts Options) error {
	if opts.File == "" {
		opts.File = "webgame.log"
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB, // MB
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays, // days
		Compress:   false,
	}

	level := zapcore.DebugLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return err
		}
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)
	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(lj), level)}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapcore.InfoLevel))
	}

	// 添加调用者信息（文件:行号）
	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar()
	return nil
}

// Sync 清理和同步缓冲
func Sync() {
	_ = Log.Sync()
}

// IOLog 是否记录每次读写的字节数
func IOLog() bool { return ioLog.Load() }

// DataLog 是否同时记录报文内容（仅在 IOLog 打开时生效）
func DataLog() bool { return dataLog.Load() }

// SetIOLog 设置 io 日志开关
func SetIOLog(on bool) { ioLog.Store(on) }

// SetDataLog 设置 data 日志开关
func SetDataLog(on bool) { dataLog.Store(on) }

// ToggleIOLog 切换 io 日志并返回新值
func ToggleIOLog() bool {
	for {
		old := ioLog.Load()
		if ioLog.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// ToggleDataLog 切换 data 日志并返回新值
func ToggleDataLog() bool {
	for {
		old := dataLog.Load()
		if dataLog.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
