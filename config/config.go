// Package config 提供 netsetup 的统一配置
//
// 主 Config 由各子配置组成，每个子配置在独立文件中定义，
// 提供 DefaultXxxConfig、Validate 和 WithXxx 构造方法。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.MMST = cfg.MMST.WithMaxPeers(6)
//
//	// 从 JSON / YAML 文件加载
//	cfg, err := config.LoadFile("netsetup.json")
package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig 配置无效
var ErrInvalidConfig = errors.New("config: invalid")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Config netsetup 完整配置
//   - Network: 拓扑协调器
//   - MMST: 生成树发现插件
//   - Log: 日志
//   - Metrics: 指标
//   - Introspect: 本地自省服务
type Config struct {
	// Network 拓扑协调器配置
	Network NetworkConfig `json:"network" yaml:"network"`

	// MMST 生成树发现配置
	MMST MMSTConfig `json:"mmst" yaml:"mmst"`

	// Log 日志配置
	Log LogConfig `json:"log" yaml:"log"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Introspect 自省服务配置
	Introspect IntrospectConfig `json:"introspect" yaml:"introspect"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Network:    DefaultNetworkConfig(),
		MMST:       DefaultMMSTConfig(),
		Log:        DefaultLogConfig(),
		Metrics:    DefaultMetricsConfig(),
		Introspect: DefaultIntrospectConfig(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return invalid("config is nil")
	}
	if err := c.Network.Validate(); err != nil {
		return err
	}
	if err := c.MMST.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Introspect.Validate()
}

// Clone 返回配置副本
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
