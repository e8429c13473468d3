package config

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否注册 Prometheus 收集器
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace 指标命名空间
	Namespace string `json:"namespace" yaml:"namespace"`
}

// DefaultMetricsConfig 返回默认配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "netsetup",
	}
}

// Validate 验证配置
func (c MetricsConfig) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return invalid("metrics namespace is required when enabled")
	}
	return nil
}
