// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的拓扑诊断信息，用于调试和监控。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// 端点：
//   - GET /debug/introspect          - 全部拓扑的汇总与快照 (JSON)
//   - GET /debug/introspect/degrees  - 合并后的度分布
//   - GET /metrics                   - Prometheus 指标
//   - GET /debug/pprof/*             - Go pprof 端点
//   - GET /health                    - 健康检查
package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-netsetup/internal/core/metrics"
	"github.com/dep2p/go-netsetup/internal/util/logger"
)

var log = logger.Logger("core/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// Server 本地自省 HTTP 服务
type Server struct {
	source   metrics.SnapshotSource
	gatherer prometheus.Gatherer

	addr    string
	started time.Time

	server   *http.Server
	listener net.Listener

	running bool
	mu      sync.Mutex
}

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"，端口 0 表示随机端口
	Addr string

	// Snapshots 拓扑快照来源，可为 nil
	Snapshots metrics.SnapshotSource

	// Gatherer 指标来源，为 nil 时不挂载 /metrics
	Gatherer prometheus.Gatherer
}

// New 创建自省服务
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		source:   cfg.Snapshots,
		gatherer: cfg.Gatherer,
		addr:     addr,
	}
}

// Start 启动服务，重复调用无效
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	mux := http.NewServeMux()
	s.routes(mux)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.started = time.Now()

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("自省服务异常退出", "error", err)
		}
	}()

	s.running = true
	log.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/introspect", s.handleIntrospect)
	mux.HandleFunc("/debug/introspect/degrees", s.handleDegrees)
	mux.HandleFunc("/health", s.handleHealth)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

// Stop 停止服务，重复调用无效
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	log.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// IntrospectResponse 完整诊断响应
type IntrospectResponse struct {
	Networks    int                        `json:"networks"`
	Peers       int                        `json:"peers"`
	Connections int                        `json:"connections"`
	MaxDegree   int                        `json:"max_degree"`
	Snapshots   []metrics.TopologySnapshot `json:"snapshots"`
}

// DegreesResponse 合并后的度分布
type DegreesResponse struct {
	// Degrees 升序的度
	Degrees []int `json:"degrees"`

	// Counts 度 -> 节点数
	Counts map[int]int `json:"counts"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) snapshots() []metrics.TopologySnapshot {
	if s.source == nil {
		return nil
	}
	return s.source()
}

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snaps := s.snapshots()
	resp := IntrospectResponse{
		Networks:  len(snaps),
		Snapshots: snaps,
	}
	if resp.Snapshots == nil {
		resp.Snapshots = []metrics.TopologySnapshot{}
	}
	for _, snap := range snaps {
		resp.Peers += snap.TotalPeers
		resp.Connections += snap.TotalConnections
		resp.MaxDegree = max(resp.MaxDegree, snap.MaxDegree)
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleDegrees(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := DegreesResponse{Degrees: []int{}, Counts: make(map[int]int)}
	for _, snap := range s.snapshots() {
		_, hist := snap.DegreeHistogram()
		for d, c := range hist {
			if _, ok := resp.Counts[d]; !ok {
				resp.Degrees = append(resp.Degrees, d)
			}
			resp.Counts[d] += c
		}
	}
	slices.Sort(resp.Degrees)
	s.writeJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
	if s.source == nil {
		health.Status = "degraded"
	}
	s.writeJSON(w, health)
}

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		log.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
