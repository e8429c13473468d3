// Package logger 提供 netsetup 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别（子系统名按 "/" 分层回退）
//   - 环境变量配置（NETSETUP_LOG_LEVEL, NETSETUP_LOG_FORMAT）
//   - 运行时通过 Configure 切换级别与格式
//
// 使用示例:
//
//	var logger = logger.Logger("core/graph")
//
//	logger.Debug("节点已添加", "id", id, "nodes", g.NodeCount())
//
// 环境变量配置:
//
//	# 默认 info，core/graph 及其子系统为 debug
//	NETSETUP_LOG_LEVEL=core/graph=debug,info
//
//	# 使用 JSON 格式输出
//	NETSETUP_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler
)

func init() {
	currentFormat.Store(int32(ConfigFromEnv().Format))
}

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	h := newHandler(subsystem, ConfigFromEnv())
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// Configure 应用显式配置，覆盖环境变量
//
// 已创建的 Logger 立即按新配置调整级别和格式。
func Configure(cfg *Config) {
	if cfg == nil {
		return
	}

	configMu.Lock()
	configCache = cfg
	configMu.Unlock()

	currentFormat.Store(int32(cfg.Format))
	handlers.Range(func(key, value any) bool {
		value.(*subsystemHandler).SetLevel(cfg.LevelForSubsystem(key.(string)))
		return true
	})
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// Discard 返回一个丢弃所有日志的 Logger，主要用于测试
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 同样会写入新的目标。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
