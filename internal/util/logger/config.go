package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量名
const (
	EnvLevel     = "NETSETUP_LOG_LEVEL"
	EnvFormat    = "NETSETUP_LOG_FORMAT"
	EnvAddSource = "NETSETUP_LOG_ADD_SOURCE"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// ParseFormat 解析格式名称，未知名称回落到文本格式
func ParseFormat(name string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(name), "json") {
		return FormatJSON
	}
	return FormatText
}

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的日志级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// LevelForSubsystem 获取指定子系统的日志级别
//
// 子系统名按层级回退：core/graph 未配置时查找 core。
func (c *Config) LevelForSubsystem(subsystem string) slog.Level {
	name := subsystem
	for {
		if level, ok := c.SubsystemLevels[name]; ok {
			return level
		}
		idx := strings.LastIndex(name, "/")
		if idx < 0 {
			return c.DefaultLevel
		}
		name = name[:idx]
	}
}

var (
	configMu    sync.RWMutex
	configCache *Config
)

// ConfigFromEnv 返回当前生效的配置
//
// 首次调用时从环境变量解析；Configure 之后返回显式设置的配置。
func ConfigFromEnv() *Config {
	configMu.RLock()
	cfg := configCache
	configMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	configMu.Lock()
	defer configMu.Unlock()
	if configCache == nil {
		configCache = parseEnv()
	}
	return configCache
}

// ParseSpec 解析级别描述字符串
//
// 格式: 子系统=级别,子系统=级别,默认级别
// 示例: core/graph=debug,mmst=warn,info
func ParseSpec(spec string, format LogFormat) *Config {
	cfg := defaultConfig()
	cfg.Format = format
	parseLevelSpec(cfg, spec)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}
}

func parseEnv() *Config {
	cfg := defaultConfig()

	if spec := os.Getenv(EnvLevel); spec != "" {
		parseLevelSpec(cfg, spec)
	}
	if format := os.Getenv(EnvFormat); format != "" {
		cfg.Format = ParseFormat(format)
	}
	if v := os.Getenv(EnvAddSource); v != "" {
		cfg.AddSource = v != "false" && v != "0"
	}
	return cfg
}

func parseLevelSpec(cfg *Config, spec string) {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		subsystem, levelName, found := strings.Cut(part, "=")
		if !found {
			if level, ok := ParseLevel(part); ok {
				cfg.DefaultLevel = level
			}
			continue
		}
		if level, ok := ParseLevel(strings.TrimSpace(levelName)); ok {
			cfg.SubsystemLevels[strings.TrimSpace(subsystem)] = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResetConfig 重置配置缓存（仅用于测试）
func ResetConfig() {
	configMu.Lock()
	configCache = nil
	configMu.Unlock()
}
