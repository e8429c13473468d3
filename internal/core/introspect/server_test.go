package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-netsetup/config"
	"github.com/dep2p/go-netsetup/internal/core/metrics"
)

func fixedSnapshots() []metrics.TopologySnapshot {
	return []metrics.TopologySnapshot{
		metrics.NewTopologySnapshot([]metrics.PeerDegree{
			{ID: 0, Degree: 2, State: "open"},
			{ID: 1, Degree: 2, State: "open"},
			{ID: 2, Degree: 2, State: "open"},
		}, 3),
		metrics.NewTopologySnapshot([]metrics.PeerDegree{
			{ID: "a", Degree: 1, State: "open"},
			{ID: "b", Degree: 1, State: "open"},
		}, 1),
	}
}

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	s := New(cfg)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// TestNew 测试默认地址
func TestNew(t *testing.T) {
	assert.Equal(t, DefaultAddr, New(Config{}).Addr())
	assert.Equal(t, "127.0.0.1:8080", New(Config{Addr: "127.0.0.1:8080"}).Addr())
}

// TestServer_StartStop 测试启动与停止幂等
func TestServer_StartStop(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.running)
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.running)
	require.NoError(t, s.Stop(ctx))
}

// TestServer_Introspect 测试汇总端点
func TestServer_Introspect(t *testing.T) {
	s := startServer(t, Config{Snapshots: fixedSnapshots})

	var resp IntrospectResponse
	getJSON(t, "http://"+s.Addr()+"/debug/introspect", &resp)
	assert.Equal(t, 2, resp.Networks)
	assert.Equal(t, 5, resp.Peers)
	assert.Equal(t, 4, resp.Connections)
	assert.Equal(t, 2, resp.MaxDegree)
	require.Len(t, resp.Snapshots, 2)
	assert.Equal(t, 2, resp.Snapshots[0].ConnPerPeer["1"])
}

// TestServer_Degrees 测试合并度分布
func TestServer_Degrees(t *testing.T) {
	s := startServer(t, Config{Snapshots: fixedSnapshots})

	var resp DegreesResponse
	getJSON(t, "http://"+s.Addr()+"/debug/introspect/degrees", &resp)
	assert.Equal(t, []int{1, 2}, resp.Degrees)
	assert.Equal(t, map[int]int{1: 2, 2: 3}, resp.Counts)
}

// TestServer_Health 测试健康检查
func TestServer_Health(t *testing.T) {
	s := startServer(t, Config{})

	var health HealthResponse
	getJSON(t, "http://"+s.Addr()+"/health", &health)
	assert.Equal(t, "degraded", health.Status)
	assert.NotEmpty(t, health.Uptime)

	var introspect IntrospectResponse
	getJSON(t, "http://"+s.Addr()+"/debug/introspect", &introspect)
	assert.Zero(t, introspect.Networks)
	assert.Empty(t, introspect.Snapshots)
}

// TestServer_Metrics 测试 Prometheus 端点
func TestServer_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(metrics.NewCollector("netsetup", nil, fixedSnapshots)))
	s := startServer(t, Config{Gatherer: registry})

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "netsetup_peers 5")
}

// TestServer_MethodNotAllowed 测试非 GET 请求
func TestServer_MethodNotAllowed(t *testing.T) {
	s := startServer(t, Config{})

	resp, err := http.Post("http://"+s.Addr()+"/debug/introspect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// TestModule 测试 Fx 模块只在启用时监听
func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Introspect = config.IntrospectConfig{Enabled: true, Addr: "127.0.0.1:0"}

	var s *Server
	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Supply(metrics.SnapshotSource(fixedSnapshots)),
		Module(),
		fx.Populate(&s),
	)
	app.RequireStart()
	assert.True(t, s.running)

	var resp IntrospectResponse
	getJSON(t, "http://"+s.Addr()+"/debug/introspect", &resp)
	assert.Equal(t, 2, resp.Networks)

	app.RequireStop()
	assert.False(t, s.running)
}
