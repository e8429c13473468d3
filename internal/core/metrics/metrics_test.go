package metrics

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-netsetup/internal/core/eventbus"
	"github.com/dep2p/go-netsetup/internal/core/lifecycle"
)

// ============================================================================
//                              计数器
// ============================================================================

// TestCounters_RecordOp 测试按类型与结果计数
func TestCounters_RecordOp(t *testing.T) {
	c := NewCounters()
	boom := errors.New("boom")

	c.RecordOp(eventbus.KindPeer, lifecycle.OpOpen, nil)
	c.RecordOp(eventbus.KindPeer, lifecycle.OpOpen, nil)
	c.RecordOp(eventbus.KindPeer, lifecycle.OpClose, boom)
	c.RecordOp(eventbus.KindConnection, lifecycle.OpOpen, boom)
	c.RecordOp(eventbus.KindConnection, lifecycle.OpClose, nil)
	c.RecordRemoval(eventbus.KindConnection)

	stats := c.Stats()
	assert.Equal(t, OpStats{Opened: 2, CloseFailed: 1}, stats.Peers)
	assert.Equal(t, OpStats{OpenFailed: 1, Closed: 1, Removed: 1}, stats.Connections)
}

// ============================================================================
//                              拓扑快照
// ============================================================================

// TestNewTopologySnapshot 测试度分布统计
func TestNewTopologySnapshot(t *testing.T) {
	s := NewTopologySnapshot([]PeerDegree{
		{ID: 0, Degree: 2, State: "open"},
		{ID: 1, Degree: 1, State: "open"},
		{ID: 2, Degree: 3, State: "opening"},
	}, 3)

	assert.Equal(t, 3, s.TotalPeers)
	assert.Equal(t, 3, s.TotalConnections)
	assert.Equal(t, 1, s.MinDegree)
	assert.Equal(t, 3, s.MaxDegree)
	assert.InDelta(t, 2.0, s.AvgDegree, 1e-9)
	assert.Equal(t, map[string]int{"0": 2, "1": 1, "2": 3}, s.ConnPerPeer)
	assert.Equal(t, map[string]int{"open": 2, "opening": 1}, s.PeerStates)

	keys, hist := s.DegreeHistogram()
	assert.Equal(t, []int{1, 2, 3}, keys)
	assert.Equal(t, 1, hist[2])
}

// TestNewTopologySnapshot_Empty 测试空拓扑
func TestNewTopologySnapshot_Empty(t *testing.T) {
	s := NewTopologySnapshot(nil, 0)
	assert.Zero(t, s.TotalPeers)
	assert.Zero(t, s.MaxDegree)
	assert.NotNil(t, s.ConnPerPeer)
}

// TestLogSnapshot 测试快照日志字段
func TestLogSnapshot(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	LogSnapshot(l, NewTopologySnapshot([]PeerDegree{
		{ID: "a", Degree: 1, State: "open"},
		{ID: "b", Degree: 2, State: "open"},
		{ID: "c", Degree: 1, State: "open"},
	}, 2))

	out := buf.String()
	assert.Contains(t, out, "msg=拓扑快照")
	assert.Contains(t, out, "peers=3")
	assert.Contains(t, out, "connections=2")
	assert.Contains(t, out, "minDegree=1")
	assert.Contains(t, out, "maxDegree=2")
	assert.Contains(t, out, "avgDegree=1.33")
}

// ============================================================================
//                              Prometheus
// ============================================================================

// TestCollector 测试导出的指标
func TestCollector(t *testing.T) {
	counters := NewCounters()
	counters.RecordOp(eventbus.KindPeer, lifecycle.OpOpen, nil)
	counters.RecordRemoval(eventbus.KindPeer)

	source := func() []TopologySnapshot {
		return []TopologySnapshot{
			NewTopologySnapshot([]PeerDegree{{ID: "a", Degree: 1}, {ID: "b", Degree: 1}}, 1),
			NewTopologySnapshot([]PeerDegree{{ID: "c", Degree: 4}}, 2),
		}
	}
	c := NewCollector("netsetup", counters, source)

	expected := `
# HELP netsetup_peers Number of peers across all topologies.
# TYPE netsetup_peers gauge
netsetup_peers 3
# HELP netsetup_connections Number of connections across all topologies.
# TYPE netsetup_connections gauge
netsetup_connections 3
# HELP netsetup_max_degree Largest peer degree across all topologies.
# TYPE netsetup_max_degree gauge
netsetup_max_degree 4
# HELP netsetup_lifecycle_removals_total Entities removed from topologies.
# TYPE netsetup_lifecycle_removals_total counter
netsetup_lifecycle_removals_total{kind="connection"} 0
netsetup_lifecycle_removals_total{kind="peer"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"netsetup_peers", "netsetup_connections", "netsetup_max_degree", "netsetup_lifecycle_removals_total"))

	// networks + peers + connections + max_degree + 8 lifecycle + 2 removals
	assert.Equal(t, 14, testutil.CollectAndCount(c))
}

// TestCollector_NilSources 测试无数据源时不导出
func TestCollector_NilSources(t *testing.T) {
	c := NewCollector("netsetup", nil, nil)
	assert.Equal(t, 0, testutil.CollectAndCount(c))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
}

// TestModule 测试 Fx 模块
func TestModule(t *testing.T) {
	var (
		reporter Reporter
		registry *prometheus.Registry
	)
	app := fxtest.New(t, Module, fx.Populate(&reporter, &registry))
	defer app.RequireStart().RequireStop()

	require.NotNil(t, reporter)
	require.NotNil(t, registry)
	reporter.RecordRemoval(eventbus.KindPeer)
	assert.Equal(t, int64(1), reporter.Stats().Peers.Removed)
}
