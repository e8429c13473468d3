package config

import "time"

// ID 规范化方式
const (
	// IDFormatIdentity 原样使用
	IDFormatIdentity = "identity"
	// IDFormatString 转为字符串
	IDFormatString = "string"
	// IDFormatHex 字节串转为十六进制字符串
	IDFormatHex = "hex"
)

// NetworkConfig 拓扑协调器配置
type NetworkConfig struct {
	// IDFormat 未显式提供规范化函数时使用的内置规范化方式
	IDFormat string `json:"id_format" yaml:"id_format"`

	// OpenTimeout AddPeer/AddConnection 等待打开结果的上限，0 表示不限
	// 超时只结束调用方的等待，不取消打开
	OpenTimeout Duration `json:"open_timeout" yaml:"open_timeout"`

	// CloseTimeout 单个实体 doClose 的执行上限，同时也是整体关闭网络的等待上限，0 表示不限
	// 超时的实体以 CloseFailed 结束并移出拓扑
	CloseTimeout Duration `json:"close_timeout" yaml:"close_timeout"`

	// EmitTopologyEvents 是否在总线上发布增删事件
	EmitTopologyEvents bool `json:"emit_topology_events" yaml:"emit_topology_events"`
}

// DefaultNetworkConfig 返回默认配置
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		IDFormat:           IDFormatIdentity,
		OpenTimeout:        0,
		CloseTimeout:       Duration(30 * time.Second),
		EmitTopologyEvents: true,
	}
}

// Validate 验证配置
func (c NetworkConfig) Validate() error {
	switch c.IDFormat {
	case IDFormatIdentity, IDFormatString, IDFormatHex:
	default:
		return invalid("unknown id format %q", c.IDFormat)
	}
	if c.OpenTimeout < 0 {
		return invalid("open timeout must be non-negative")
	}
	if c.CloseTimeout < 0 {
		return invalid("close timeout must be non-negative")
	}
	return nil
}

// WithIDFormat 设置规范化方式
func (c NetworkConfig) WithIDFormat(format string) NetworkConfig {
	c.IDFormat = format
	return c
}

// WithOpenTimeout 设置打开等待上限
func (c NetworkConfig) WithOpenTimeout(d time.Duration) NetworkConfig {
	c.OpenTimeout = Duration(d)
	return c
}

// WithCloseTimeout 设置关闭等待上限
func (c NetworkConfig) WithCloseTimeout(d time.Duration) NetworkConfig {
	c.CloseTimeout = Duration(d)
	return c
}
