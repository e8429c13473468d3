package netsetup

import (
	"encoding/hex"
	"fmt"

	"github.com/dep2p/go-netsetup/config"
	"github.com/dep2p/go-netsetup/internal/core/eventbus"
	"github.com/dep2p/go-netsetup/internal/core/metrics"
)

// IDFunc 将调用方提供的原始 ID 映射为规范 ID
//
// 必须是确定性的，且对规范 ID 再次应用结果不变。
type IDFunc func(raw any) any

// IdentityID 原样返回
func IdentityID(raw any) any { return raw }

// StringID 转为字符串
func StringID(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// HexID 字节串转为十六进制字符串，字符串原样返回
func HexID(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return v
	case []byte:
		return hex.EncodeToString(v)
	case [32]byte:
		return hex.EncodeToString(v[:])
	default:
		return fmt.Sprintf("%x", v)
	}
}

// IDFuncFor 返回配置中内置规范化方式对应的函数
func IDFuncFor(format string) IDFunc {
	switch format {
	case config.IDFormatString:
		return StringID
	case config.IDFormatHex:
		return HexID
	default:
		return IdentityID
	}
}

// Option 网络配置选项
type Option func(*options) error

type options struct {
	idFunc   IDFunc
	bus      *eventbus.Bus
	reporter metrics.Reporter
	cfg      config.NetworkConfig
}

func defaultOptions() options {
	return options{cfg: config.DefaultNetworkConfig()}
}

// WithIDFunc 设置规范化函数，优先于配置中的 IDFormat
func WithIDFunc(fn IDFunc) Option {
	return func(o *options) error {
		if fn == nil {
			return fmt.Errorf("%w: nil id func", ErrInvalidID)
		}
		o.idFunc = fn
		return nil
	}
}

// WithEventBus 使用共享事件总线
func WithEventBus(bus *eventbus.Bus) Option {
	return func(o *options) error {
		o.bus = bus
		return nil
	}
}

// WithReporter 使用共享生命周期计数
func WithReporter(r metrics.Reporter) Option {
	return func(o *options) error {
		o.reporter = r
		return nil
	}
}

// WithConfig 设置协调器配置
func WithConfig(cfg config.NetworkConfig) Option {
	return func(o *options) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.cfg = cfg
		return nil
	}
}
