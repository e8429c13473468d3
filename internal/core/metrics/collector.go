package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SnapshotSource 返回当前所有拓扑的快照
type SnapshotSource func() []TopologySnapshot

// Collector Prometheus 收集器
//
// 每次抓取时从 SnapshotSource 取快照并读取 Reporter 的累计计数。
type Collector struct {
	reporter Reporter
	source   SnapshotSource

	networks    *prometheus.Desc
	peers       *prometheus.Desc
	connections *prometheus.Desc
	maxDegree   *prometheus.Desc
	lifecycle   *prometheus.Desc
	removals    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建收集器，reporter 与 source 均可为 nil
func NewCollector(namespace string, reporter Reporter, source SnapshotSource) *Collector {
	return &Collector{
		reporter: reporter,
		source:   source,
		networks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "networks"),
			"Number of live topologies.", nil, nil),
		peers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "peers"),
			"Number of peers across all topologies.", nil, nil),
		connections: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "connections"),
			"Number of connections across all topologies.", nil, nil),
		maxDegree: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "max_degree"),
			"Largest peer degree across all topologies.", nil, nil),
		lifecycle: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "lifecycle", "operations_total"),
			"Completed open/close operations by entity kind and result.",
			[]string{"kind", "op", "result"}, nil),
		removals: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "lifecycle", "removals_total"),
			"Entities removed from topologies.",
			[]string{"kind"}, nil),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.networks
	ch <- c.peers
	ch <- c.connections
	ch <- c.maxDegree
	ch <- c.lifecycle
	ch <- c.removals
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source != nil {
		snaps := c.source()
		var peers, conns, maxDeg int
		for _, s := range snaps {
			peers += s.TotalPeers
			conns += s.TotalConnections
			maxDeg = max(maxDeg, s.MaxDegree)
		}
		ch <- prometheus.MustNewConstMetric(c.networks, prometheus.GaugeValue, float64(len(snaps)))
		ch <- prometheus.MustNewConstMetric(c.peers, prometheus.GaugeValue, float64(peers))
		ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(conns))
		ch <- prometheus.MustNewConstMetric(c.maxDegree, prometheus.GaugeValue, float64(maxDeg))
	}

	if c.reporter == nil {
		return
	}
	stats := c.reporter.Stats()
	for _, kind := range []struct {
		name string
		s    OpStats
	}{{"peer", stats.Peers}, {"connection", stats.Connections}} {
		c.counter(ch, kind.s.Opened, kind.name, "open", "ok")
		c.counter(ch, kind.s.OpenFailed, kind.name, "open", "error")
		c.counter(ch, kind.s.Closed, kind.name, "close", "ok")
		c.counter(ch, kind.s.CloseFailed, kind.name, "close", "error")
		ch <- prometheus.MustNewConstMetric(c.removals, prometheus.CounterValue, float64(kind.s.Removed), kind.name)
	}
}

func (c *Collector) counter(ch chan<- prometheus.Metric, v int64, labels ...string) {
	ch <- prometheus.MustNewConstMetric(c.lifecycle, prometheus.CounterValue, float64(v), labels...)
}
