package netsetup

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-netsetup/config"
	"github.com/dep2p/go-netsetup/internal/core/eventbus"
	"github.com/dep2p/go-netsetup/internal/core/introspect"
	"github.com/dep2p/go-netsetup/internal/core/metrics"
	"github.com/dep2p/go-netsetup/internal/util/logger"
)

// Factories 注入到 fx 的工厂对
type Factories struct {
	OnPeer       PeerFactory
	OnConnection ConnectionFactory
}

// DefaultFactories 空操作工厂
func DefaultFactories() Factories {
	return Factories{
		OnPeer:       DefaultPeerFactory,
		OnConnection: DefaultConnectionFactory,
	}
}

// Module 返回 Fx 模块
//
// 需要外部提供 *config.Config 与 Factories。模块提供：
//   - *eventbus.Bus（所有网络共享）
//   - metrics.Reporter 与 *prometheus.Registry
//   - *Setup，OnStop 时关闭其构建的全部网络
//   - *introspect.Server，Introspect.Enabled 时随应用启动
//
// Metrics.Enabled 时把拓扑收集器注册到 Registry。
func Module() fx.Option {
	return fx.Module("netsetup",
		eventbus.Module(),
		metrics.Module,
		introspect.Module(),
		fx.Provide(newSetupFx, snapshotSource),
		fx.Invoke(registerCollector),
		fx.Invoke(registerSetupLifecycle),
	)
}

// NewApp 组装 fx 应用，fx 自身的事件日志静默
func NewApp(cfg *config.Config, f Factories, extra ...fx.Option) (*fx.App, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	ApplyLogConfig(cfg.Log)

	opts := []fx.Option{
		fx.Supply(cfg),
		fx.Supply(f),
		Module(),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	}
	opts = append(opts, extra...)
	return fx.New(opts...), nil
}

// ApplyLogConfig 显式配置了日志时覆盖环境变量
func ApplyLogConfig(c config.LogConfig) {
	if !c.IsSet() {
		return
	}
	format := logger.ConfigFromEnv().Format
	if c.Format != "" {
		format = logger.ParseFormat(c.Format)
	}
	logger.Configure(logger.ParseSpec(c.Level, format))
}

type setupInput struct {
	fx.In

	Config    *config.Config
	Factories Factories
	Bus       *eventbus.Bus
	Reporter  metrics.Reporter
}

func newSetupFx(in setupInput) (*Setup, error) {
	return NewSetup(in.Factories.OnPeer, in.Factories.OnConnection,
		WithConfig(in.Config.Network),
		WithEventBus(in.Bus),
		WithReporter(in.Reporter),
	)
}

func snapshotSource(s *Setup) metrics.SnapshotSource {
	return s.Snapshots
}

type collectorInput struct {
	fx.In

	Config   *config.Config
	Registry *prometheus.Registry
	Reporter metrics.Reporter
	Setup    *Setup
}

func registerCollector(in collectorInput) error {
	if !in.Config.Metrics.Enabled {
		return nil
	}
	c := metrics.NewCollector(in.Config.Metrics.Namespace, in.Reporter, in.Setup.Snapshots)
	return in.Registry.Register(c)
}

type lifecycleInput struct {
	fx.In

	LC    fx.Lifecycle
	Setup *Setup
}

func registerSetupLifecycle(in lifecycleInput) {
	in.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Debug("关闭全部网络", "networks", len(in.Setup.Networks()))
			return in.Setup.Close(ctx)
		},
	})
}
