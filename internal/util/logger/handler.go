package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	globalOutput   io.Writer = os.Stderr
	globalOutputMu sync.RWMutex
)

// dynamicWriter 每次写入时查找当前输出目标，
// SetOutput 对已创建的 Logger 同样生效
type dynamicWriter struct{}

func (dynamicWriter) Write(p []byte) (int, error) {
	globalOutputMu.RLock()
	out := globalOutput
	globalOutputMu.RUnlock()
	return out.Write(p)
}

// currentFormat 当前输出格式，Configure 可在运行时切换
var currentFormat atomic.Int32

// subsystemHandler 支持运行时调整级别和格式的子系统 Handler
//
// 级别由同一子系统的所有派生 Handler 共享。
type subsystemHandler struct {
	subsystem string
	level     *atomic.Int64
	text      slog.Handler
	json      slog.Handler
}

func newHandler(subsystem string, cfg *Config) *subsystemHandler {
	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelToString(lvl))
				}
			}
			return a
		},
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}

	level := new(atomic.Int64)
	level.Store(int64(cfg.LevelForSubsystem(subsystem)))

	return &subsystemHandler{
		subsystem: subsystem,
		level:     level,
		text:      slog.NewTextHandler(dynamicWriter{}, opts).WithAttrs(attrs),
		json:      slog.NewJSONHandler(dynamicWriter{}, opts).WithAttrs(attrs),
	}
}

func (h *subsystemHandler) inner() slog.Handler {
	if LogFormat(currentFormat.Load()) == FormatJSON {
		return h.json
	}
	return h.text
}

func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	return int64(level) >= h.level.Load()
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner().Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{
		subsystem: h.subsystem,
		level:     h.level,
		text:      h.text.WithAttrs(attrs),
		json:      h.json.WithAttrs(attrs),
	}
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{
		subsystem: h.subsystem,
		level:     h.level,
		text:      h.text.WithGroup(name),
		json:      h.json.WithGroup(name),
	}
}

// SetLevel 动态设置级别
func (h *subsystemHandler) SetLevel(level slog.Level) {
	h.level.Store(int64(level))
}

func levelToString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// DiscardHandler 返回一个丢弃所有日志的 Handler
func DiscardHandler() slog.Handler {
	return discardHandler{}
}
