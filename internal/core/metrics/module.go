package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module 是 metrics 的 Fx 模块
//
// 提供 Reporter（*Counters）与独立的 Prometheus Registry。
var Module = fx.Module("metrics",
	fx.Provide(
		fx.Annotate(
			NewCounters,
			fx.As(new(Reporter)),
		),
		prometheus.NewRegistry,
	),
)
