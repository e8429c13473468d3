package config

import "strings"

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别描述，格式同 NETSETUP_LOG_LEVEL: "graph=debug,info"
	// 为空时沿用环境变量
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format 输出格式: text 或 json
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// DefaultLogConfig 返回默认配置
func DefaultLogConfig() LogConfig {
	return LogConfig{}
}

// Validate 验证配置
func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
	default:
		return invalid("unknown log format %q", c.Format)
	}
	for _, part := range strings.Split(c.Level, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			part = part[idx+1:]
		}
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "debug", "info", "warn", "warning", "error":
		default:
			return invalid("unknown log level %q", part)
		}
	}
	return nil
}

// IsSet 是否显式配置了日志
func (c LogConfig) IsSet() bool {
	return c.Level != "" || c.Format != ""
}
