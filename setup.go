package netsetup

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-netsetup/internal/core/metrics"
	"github.com/dep2p/go-netsetup/pkg/generator"
)

// Setup 批量构建网络
//
// 每次构建创建一个新的 Network，Setup 记录所有构建出的网络，Close 统一关闭。
type Setup struct {
	onPeer       PeerFactory
	onConnection ConnectionFactory
	opts         []Option

	mu       sync.Mutex
	networks []*Network
}

// NewSetup 创建 Setup，opts 应用到每个构建出的 Network
func NewSetup(onPeer PeerFactory, onConnection ConnectionFactory, opts ...Option) (*Setup, error) {
	if onPeer == nil || onConnection == nil {
		return nil, ErrMissingFactory
	}
	checked := defaultOptions()
	for _, opt := range opts {
		if err := opt(&checked); err != nil {
			return nil, err
		}
	}
	return &Setup{
		onPeer:       onPeer,
		onConnection: onConnection,
		opts:         opts,
	}, nil
}

func (s *Setup) newNetwork(extra ...Option) (*Network, error) {
	opts := append(append([]Option(nil), s.opts...), extra...)
	n, err := NewNetwork(s.onPeer, s.onConnection, opts...)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.networks = append(s.networks, n)
	s.mu.Unlock()
	return n, nil
}

// Build 按拓扑描述构建网络
//
// 先并发添加全部节点，全部打开成功后再并发添加全部连接。结果为首个失败；
// 失败时仍返回已部分构建的网络以便关闭，其余打开不等待也不取消，会在后台继续完成。
func (s *Setup) Build(ctx context.Context, g generator.Graph) (*Network, error) {
	n, err := s.newNetwork()
	if err != nil {
		return nil, err
	}

	peers, peersCtx := errgroup.WithContext(ctx)
	for _, spec := range g.Nodes {
		peers.Go(func() error {
			_, err := n.AddPeer(peersCtx, spec.ID, spec.Payload)
			return err
		})
	}
	if err := peers.Wait(); err != nil {
		log.Debug("节点构建失败", "peers", len(g.Nodes), "err", err)
		return n, err
	}

	conns, connsCtx := errgroup.WithContext(ctx)
	for _, spec := range g.Links {
		conns.Go(func() error {
			_, err := n.AddConnection(connsCtx, spec.From, spec.To, spec.Payload)
			return err
		})
	}
	if err := conns.Wait(); err != nil {
		log.Debug("连接构建失败", "connections", len(g.Links), "err", err)
		return n, err
	}

	metrics.LogSnapshot(log, n.Snapshot())
	return n, nil
}

// Networks 返回构建过的全部网络
func (s *Setup) Networks() []*Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Network(nil), s.networks...)
}

// Snapshots 返回每个网络的拓扑快照
func (s *Setup) Snapshots() []metrics.TopologySnapshot {
	networks := s.Networks()
	out := make([]metrics.TopologySnapshot, 0, len(networks))
	for _, n := range networks {
		out = append(out, n.Snapshot())
	}
	return out
}

// Close 关闭构建过的全部网络
func (s *Setup) Close(ctx context.Context) error {
	s.mu.Lock()
	networks := s.networks
	s.networks = nil
	s.mu.Unlock()

	var errs error
	for _, n := range networks {
		errs = multierr.Append(errs, n.Close(ctx))
	}
	return errs
}

// ════════════════════════════════════════════════════════════════════════════
//                              生成器
// ════════════════════════════════════════════════════════════════════════════

func (s *Setup) generate(ctx context.Context, gen func() (generator.Graph, error)) (*Network, error) {
	g, err := gen()
	if err != nil {
		return nil, err
	}
	return s.Build(ctx, g)
}

// Ladder 梯形拓扑
func (s *Setup) Ladder(ctx context.Context, steps int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.Ladder(steps) })
}

// CircularLadder 环形梯形拓扑
func (s *Setup) CircularLadder(ctx context.Context, steps int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.CircularLadder(steps) })
}

// Complete 完全图拓扑
func (s *Setup) Complete(ctx context.Context, n int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.Complete(n) })
}

// CompleteBipartite 完全二部图拓扑
func (s *Setup) CompleteBipartite(ctx context.Context, n, m int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.CompleteBipartite(n, m) })
}

// Path 路径拓扑
func (s *Setup) Path(ctx context.Context, n int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.Path(n) })
}

// Grid 二维网格拓扑
func (s *Setup) Grid(ctx context.Context, n, m int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.Grid(n, m) })
}

// Grid3 三维网格拓扑
func (s *Setup) Grid3(ctx context.Context, n, m, z int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.Grid3(n, m, z) })
}

// BalancedBinTree 满二叉树拓扑
func (s *Setup) BalancedBinTree(ctx context.Context, depth int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.BalancedBinTree(depth) })
}

// NoLinks 无连接拓扑
func (s *Setup) NoLinks(ctx context.Context, n int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.NoLinks(n) })
}

// CliqueCircle 团环拓扑
func (s *Setup) CliqueCircle(ctx context.Context, cliqueCount, cliqueSize int) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.CliqueCircle(cliqueCount, cliqueSize) })
}

// WattsStrogatz 小世界拓扑
func (s *Setup) WattsStrogatz(ctx context.Context, n, k int, p float64, seed uint64) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.WattsStrogatz(n, k, p, seed) })
}

// FromFile 从 YAML/HCL 拓扑文件构建
func (s *Setup) FromFile(ctx context.Context, path string) (*Network, error) {
	return s.generate(ctx, func() (generator.Graph, error) { return generator.LoadFile(path) })
}
