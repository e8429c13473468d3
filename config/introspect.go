package config

// IntrospectConfig 本地自省 HTTP 服务配置
type IntrospectConfig struct {
	// Enabled 是否启动自省服务
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Addr 监听地址，默认只绑定本机
	Addr string `json:"addr" yaml:"addr"`
}

// DefaultIntrospectConfig 返回默认配置
func DefaultIntrospectConfig() IntrospectConfig {
	return IntrospectConfig{
		Enabled: false,
		Addr:    "127.0.0.1:6060",
	}
}

// Validate 验证配置
func (c IntrospectConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return invalid("introspect addr is required when enabled")
	}
	return nil
}
