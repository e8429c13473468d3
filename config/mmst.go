package config

import "time"

// MMSTConfig 生成树发现配置
type MMSTConfig struct {
	// SampleSize 每次查找采样的候选节点数
	SampleSize int `json:"sample_size" yaml:"sample_size"`

	// PercentFar 额外连接最远候选的概率
	PercentFar float64 `json:"percent_far" yaml:"percent_far"`

	// MaxPeers 节点接受连接的上限
	MaxPeers int `json:"max_peers" yaml:"max_peers"`

	// LookupTimeout 单次查找的超时
	LookupTimeout Duration `json:"lookup_timeout" yaml:"lookup_timeout"`

	// Seed 随机种子，0 表示每次随机
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DefaultMMSTConfig 返回默认配置
func DefaultMMSTConfig() MMSTConfig {
	return MMSTConfig{
		SampleSize:    10,
		PercentFar:    0.33,
		MaxPeers:      4,
		LookupTimeout: Duration(time.Second),
	}
}

// Validate 验证配置
func (c MMSTConfig) Validate() error {
	if c.SampleSize <= 0 {
		return invalid("mmst sample size must be positive")
	}
	if c.PercentFar < 0 || c.PercentFar > 1 {
		return invalid("mmst percent far must be within [0, 1]")
	}
	if c.MaxPeers <= 0 {
		return invalid("mmst max peers must be positive")
	}
	if c.LookupTimeout <= 0 {
		return invalid("mmst lookup timeout must be positive")
	}
	return nil
}

// WithSampleSize 设置采样数
func (c MMSTConfig) WithSampleSize(n int) MMSTConfig {
	c.SampleSize = n
	return c
}

// WithPercentFar 设置远连接概率
func (c MMSTConfig) WithPercentFar(p float64) MMSTConfig {
	c.PercentFar = p
	return c
}

// WithMaxPeers 设置连接上限
func (c MMSTConfig) WithMaxPeers(n int) MMSTConfig {
	c.MaxPeers = n
	return c
}

// WithLookupTimeout 设置查找超时
func (c MMSTConfig) WithLookupTimeout(d time.Duration) MMSTConfig {
	c.LookupTimeout = Duration(d)
	return c
}

// WithSeed 设置随机种子
func (c MMSTConfig) WithSeed(seed int64) MMSTConfig {
	c.Seed = seed
	return c
}
