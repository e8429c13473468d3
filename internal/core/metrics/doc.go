// Package metrics 提供拓扑与生命周期指标
//
//   - Counters: 实体打开/关闭/移除计数（实现 Reporter）
//   - TopologySnapshot: 某一时刻的拓扑度分布快照
//   - Collector: 将上述数据导出为 Prometheus 指标
package metrics
