package introspect

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-netsetup/config"
	"github.com/dep2p/go-netsetup/internal/core/metrics"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	Config    *config.Config
	Snapshots metrics.SnapshotSource `optional:"true"`
	Registry  *prometheus.Registry   `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Server *Server
}

// ProvideServer 提供自省服务
func ProvideServer(in ModuleInput) ModuleOutput {
	cfg := Config{
		Addr:      in.Config.Introspect.Addr,
		Snapshots: in.Snapshots,
	}
	if in.Registry != nil {
		cfg.Gatherer = in.Registry
	}
	return ModuleOutput{
		Server: New(cfg),
	}
}

// Module 返回 introspect fx 模块
//
// Introspect.Enabled 为 false 时只构造不监听。
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(ProvideServer),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *Server) {
			if !cfg.Introspect.Enabled {
				return
			}
			lc.Append(fx.Hook{
				OnStart: s.Start,
				OnStop:  s.Stop,
			})
		}),
	)
}
