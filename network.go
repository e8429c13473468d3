package netsetup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/dep2p/go-netsetup/config"
	"github.com/dep2p/go-netsetup/internal/core/eventbus"
	"github.com/dep2p/go-netsetup/internal/core/lifecycle"
	"github.com/dep2p/go-netsetup/internal/core/metrics"
	"github.com/dep2p/go-netsetup/internal/util/logger"
	"github.com/dep2p/go-netsetup/pkg/graph"
)

var log = logger.Logger("netsetup")

// ============================================================================
//                              Network
// ============================================================================

// Network 生命周期协调器
//
// 图是 Peer/Connection 的唯一登记处，Network 只响应图的变更批次：
//   - added: 调用工厂得到实体，挂载到节点/连边上并异步打开
//   - removed: 异步关闭挂载的实体
//
// 实体关闭完成后从图中移除自身。显式关闭 → 移出图，移出图 → 关闭，
// 两条路径依赖 Close 的幂等性汇合为一次 doClose。
type Network struct {
	graph        *graph.Graph
	onPeer       PeerFactory
	onConnection ConnectionFactory
	idFunc       IDFunc
	cfg          config.NetworkConfig

	bus      *eventbus.Bus
	reporter metrics.Reporter
	emitters emitters

	// ctx 异步关闭使用的上下文
	ctx    context.Context
	closed atomic.Bool
}

// NewNetwork 创建网络，两个工厂都是必需的
func NewNetwork(onPeer PeerFactory, onConnection ConnectionFactory, opts ...Option) (*Network, error) {
	if onPeer == nil || onConnection == nil {
		return nil, ErrMissingFactory
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.idFunc == nil {
		o.idFunc = IDFuncFor(o.cfg.IDFormat)
	}
	if o.bus == nil {
		o.bus = eventbus.NewBus()
	}
	if o.reporter == nil {
		o.reporter = metrics.NewCounters()
	}

	n := &Network{
		onPeer:       onPeer,
		onConnection: onConnection,
		idFunc:       o.idFunc,
		cfg:          o.cfg,
		bus:          o.bus,
		reporter:     o.reporter,
		ctx:          context.Background(),
	}
	if err := n.emitters.init(o.bus, o.cfg.EmitTopologyEvents); err != nil {
		return nil, fmt.Errorf("init emitters: %w", err)
	}
	n.graph = graph.New(graph.WithObserver(n.reconcile))
	return n, nil
}

// ============================================================================
//                              变更
// ============================================================================

// AddPeer 添加节点并等待其打开结果
//
// 打开失败时返回错误，但节点保留在图中（不可用状态），直到被显式删除。
// 规范 ID 已存在时返回 ErrPeerExists。
func (n *Network) AddPeer(ctx context.Context, rawID, payload any) (*Peer, error) {
	if n.closed.Load() {
		return nil, ErrNetworkClosed
	}
	id, err := n.canonical(rawID)
	if err != nil {
		return nil, err
	}

	node, err := n.graph.AddNode(id, payload)
	if err != nil {
		if errors.Is(err, graph.ErrNodeExists) {
			return nil, fmt.Errorf("%w: %v", ErrPeerExists, id)
		}
		return nil, err
	}
	peer := node.Value().(*Peer)

	ctx, cancel := n.openContext(ctx)
	defer cancel()
	return peer, peer.Open(ctx)
}

// AddConnection 添加从 rawFrom 到 rawTo 的连接并等待其打开结果
//
// 两端节点必须已存在，否则返回 ErrPeerNotFound。
func (n *Network) AddConnection(ctx context.Context, rawFrom, rawTo, payload any) (*Connection, error) {
	if n.closed.Load() {
		return nil, ErrNetworkClosed
	}
	from, err := n.canonical(rawFrom)
	if err != nil {
		return nil, err
	}
	to, err := n.canonical(rawTo)
	if err != nil {
		return nil, err
	}

	link, err := n.graph.AddLink(from, to, payload)
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrPeerNotFound, err)
		}
		return nil, err
	}
	conn := link.Value().(*Connection)

	ctx, cancel := n.openContext(ctx)
	defer cancel()
	return conn, conn.Open(ctx)
}

// DeletePeer 关闭节点并等待关闭完成
//
// 关闭完成时节点及其全部连接已移出图，连接的关闭随后异步进行。
// 节点不存在时返回 nil。
func (n *Network) DeletePeer(ctx context.Context, rawID any) error {
	id, err := n.canonical(rawID)
	if err != nil {
		return err
	}
	peer, ok := n.peerByID(id)
	if !ok {
		return nil
	}
	return peer.Close(ctx)
}

// DeleteConnection 关闭连接并等待关闭完成，完成时连接已移出图
func (n *Network) DeleteConnection(ctx context.Context, conn *Connection) error {
	if conn == nil || conn.Resource == nil {
		return ErrInvalidConnection
	}
	return conn.Close(ctx)
}

// Close 关闭全部连接与节点，汇总所有关闭错误
func (n *Network) Close(ctx context.Context) error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	if d := n.cfg.CloseTimeout.Duration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	conns := n.Connections()
	peers := n.Peers()
	log.Debug("关闭网络", "peers", len(peers), "connections", len(conns))

	var errs error
	errs = multierr.Append(errs, closeAll(ctx, conns))
	errs = multierr.Append(errs, closeAll(ctx, peers))
	n.emitters.close()
	return errs
}

func closeAll[T interface{ Close(context.Context) error }](ctx context.Context, items []T) error {
	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, item := range items {
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			if err := item.Close(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()
	return errs
}

// ============================================================================
//                              查询
// ============================================================================

// GetPeer 按原始 ID 查找节点
func (n *Network) GetPeer(rawID any) (*Peer, bool) {
	id, err := n.canonical(rawID)
	if err != nil {
		return nil, false
	}
	return n.peerByID(id)
}

// GetConnection 按连接 ID 查找
func (n *Network) GetConnection(id string) (*Connection, bool) {
	link, ok := n.graph.GetLink(id)
	if !ok {
		return nil, false
	}
	conn, ok := link.Value().(*Connection)
	return conn, ok
}

// GetConnectionsFromPeer 返回节点的全部连接（出向与入向）
func (n *Network) GetConnectionsFromPeer(rawID any) []*Connection {
	id, err := n.canonical(rawID)
	if err != nil {
		return nil
	}
	var out []*Connection
	n.graph.ForEachIncidentLink(id, func(l *graph.Link) bool {
		if conn, ok := l.Value().(*Connection); ok {
			out = append(out, conn)
		}
		return true
	})
	return out
}

// ConnectionCount 返回节点当前的连接数
func (n *Network) ConnectionCount(rawID any) int {
	id, err := n.canonical(rawID)
	if err != nil {
		return 0
	}
	return n.graph.Degree(id)
}

// HasPeer 节点是否在图中
func (n *Network) HasPeer(rawID any) bool {
	_, ok := n.GetPeer(rawID)
	return ok
}

// Peers 按加入顺序返回全部节点
func (n *Network) Peers() []*Peer {
	out := make([]*Peer, 0, n.graph.NodeCount())
	n.graph.ForEachNode(func(node *graph.Node) bool {
		if p, ok := node.Value().(*Peer); ok {
			out = append(out, p)
		}
		return true
	})
	return out
}

// Connections 按加入顺序返回全部连接
func (n *Network) Connections() []*Connection {
	out := make([]*Connection, 0, n.graph.LinkCount())
	n.graph.ForEachLink(func(l *graph.Link) bool {
		if c, ok := l.Value().(*Connection); ok {
			out = append(out, c)
		}
		return true
	})
	return out
}

// NumPeers 返回节点数
func (n *Network) NumPeers() int { return n.graph.NodeCount() }

// NumConnections 返回连接数
func (n *Network) NumConnections() int { return n.graph.LinkCount() }

// Snapshot 返回当前拓扑快照
func (n *Network) Snapshot() metrics.TopologySnapshot {
	nodes := n.graph.Nodes()
	peers := make([]metrics.PeerDegree, 0, len(nodes))
	for _, node := range nodes {
		pd := metrics.PeerDegree{ID: node.ID(), Degree: n.graph.Degree(node.ID())}
		if p, ok := node.Value().(*Peer); ok {
			pd.State = p.State().String()
		}
		peers = append(peers, pd)
	}
	return metrics.NewTopologySnapshot(peers, n.graph.LinkCount())
}

// Subscribe 订阅网络事件，例如 new(EvtLifecycleFailure)
func (n *Network) Subscribe(eventType any, opts ...eventbus.SubscriptionOpt) (*Subscription, error) {
	return n.bus.Subscribe(eventType, opts...)
}

// Graph 返回底层拓扑图
//
// 直接从图中移除节点或连边同样会关闭对应实体。
func (n *Network) Graph() *graph.Graph { return n.graph }

// Reporter 返回生命周期计数
func (n *Network) Reporter() metrics.Reporter { return n.reporter }

// Canonical 返回原始 ID 的规范形式
func (n *Network) Canonical(rawID any) (any, error) {
	return n.canonical(rawID)
}

func (n *Network) canonical(rawID any) (any, error) {
	if rawID == nil {
		return nil, ErrInvalidID
	}
	id := n.idFunc(rawID)
	if err := graph.ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	return id, nil
}

func (n *Network) peerByID(id any) (*Peer, bool) {
	node, ok := n.graph.GetNode(id)
	if !ok {
		return nil, false
	}
	p, ok := node.Value().(*Peer)
	return p, ok
}

func (n *Network) openContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := n.cfg.OpenTimeout.Duration(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

// ============================================================================
//                              变更协调
// ============================================================================

// reconcile 处理图的变更批次
//
// added 批次返回错误会撤销图中的添加，契约错误借此同步返回给调用方。
func (n *Network) reconcile(changes []graph.Change) error {
	for _, c := range changes {
		var err error
		switch {
		case c.Kind == graph.Added && c.IsNode():
			err = n.attachPeer(c.Node)
		case c.Kind == graph.Added:
			err = n.attachConnection(c.Link)
		case c.IsNode():
			n.detachPeer(c.Node)
		default:
			n.detachConnection(c.Link)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) attachPeer(node *graph.Node) error {
	res, err := n.onPeer(node)
	if err != nil {
		return fmt.Errorf("peer factory %v: %w", node.ID(), err)
	}
	peer, err := res.normalize(node)
	if err != nil {
		return err
	}

	id := node.ID()
	err = peer.Bind(lifecycle.Watcher{
		OnOpen: func(err error) {
			n.observe(KindPeer, id, OpOpen, err)
		},
		OnClosed: func(err error) {
			if peer.HandlerClosed() {
				n.observe(KindPeer, id, OpClose, err)
			}
			n.graph.EvictNode(node)
		},
	}, n.resourceOptions()...)
	if err != nil {
		return fmt.Errorf("%w: peer %v: %w", ErrFactoryContract, id, err)
	}

	node.SetValue(peer)
	peer.Start()
	n.emitters.emit(n.emitters.peerAdded, EvtPeerAdded{ID: id})
	return nil
}

func (n *Network) attachConnection(link *graph.Link) error {
	from, ok := n.peerByID(link.FromID())
	if !ok {
		return fmt.Errorf("%w: %v", ErrPeerNotFound, link.FromID())
	}
	to, ok := n.peerByID(link.ToID())
	if !ok {
		return fmt.Errorf("%w: %v", ErrPeerNotFound, link.ToID())
	}

	res, err := n.onConnection(link, from, to)
	if err != nil {
		return fmt.Errorf("connection factory %v->%v: %w", link.FromID(), link.ToID(), err)
	}
	conn, err := res.normalize(link)
	if err != nil {
		return err
	}

	id := link.ID()
	err = conn.Bind(lifecycle.Watcher{
		OnOpen: func(err error) {
			n.observe(KindConnection, id, OpOpen, err)
		},
		OnClosed: func(err error) {
			if conn.HandlerClosed() {
				n.observe(KindConnection, id, OpClose, err)
			}
			n.graph.RemoveLink(link)
		},
	}, n.resourceOptions()...)
	if err != nil {
		return fmt.Errorf("%w: connection %s: %w", ErrFactoryContract, id, err)
	}

	link.SetValue(conn)
	conn.Start()
	n.emitters.emit(n.emitters.connAdded, EvtConnectionAdded{ID: id, FromID: link.FromID(), ToID: link.ToID()})
	return nil
}

// resourceOptions 挂载时应用到实体的生命周期选项
func (n *Network) resourceOptions() []lifecycle.Option {
	return []lifecycle.Option{lifecycle.WithCloseTimeout(n.cfg.CloseTimeout.Duration())}
}

func (n *Network) detachPeer(node *graph.Node) {
	n.reporter.RecordRemoval(KindPeer)
	n.emitters.emit(n.emitters.peerRemoved, EvtPeerRemoved{ID: node.ID()})
	if p, ok := node.Value().(*Peer); ok {
		n.closeAsync(p.Resource)
	}
}

func (n *Network) detachConnection(link *graph.Link) {
	n.reporter.RecordRemoval(KindConnection)
	n.emitters.emit(n.emitters.connRemoved, EvtConnectionRemoved{ID: link.ID(), FromID: link.FromID(), ToID: link.ToID()})
	if c, ok := link.Value().(*Connection); ok {
		n.closeAsync(c.Resource)
	}
}

// closeAsync 移出图的实体在后台关闭，已关闭的实体跳过
func (n *Network) closeAsync(r *lifecycle.Resource) {
	if r.State().IsClosed() {
		return
	}
	go func() {
		_ = r.Close(n.ctx)
	}()
}

func (n *Network) observe(kind EntityKind, id any, op Op, err error) {
	n.reporter.RecordOp(kind, op, err)
	if err == nil {
		return
	}
	log.Warn("实体生命周期失败", "kind", kind.String(), "id", id, "op", op.String(), "err", err)
	n.emitters.emit(n.emitters.failure, EvtLifecycleFailure{Kind: kind, ID: id, Op: op, Err: err})
}

// ============================================================================
//                              事件发射
// ============================================================================

type emitters struct {
	failure     *eventbus.Emitter
	peerAdded   *eventbus.Emitter
	peerRemoved *eventbus.Emitter
	connAdded   *eventbus.Emitter
	connRemoved *eventbus.Emitter
}

func (e *emitters) init(bus *eventbus.Bus, topology bool) error {
	var err error
	if e.failure, err = bus.Emitter(new(EvtLifecycleFailure)); err != nil {
		return err
	}
	if !topology {
		return nil
	}
	if e.peerAdded, err = bus.Emitter(new(EvtPeerAdded)); err != nil {
		return err
	}
	if e.peerRemoved, err = bus.Emitter(new(EvtPeerRemoved)); err != nil {
		return err
	}
	if e.connAdded, err = bus.Emitter(new(EvtConnectionAdded)); err != nil {
		return err
	}
	e.connRemoved, err = bus.Emitter(new(EvtConnectionRemoved))
	return err
}

func (e *emitters) emit(em *eventbus.Emitter, evt any) {
	if em != nil {
		_ = em.Emit(evt)
	}
}

func (e *emitters) close() {
	for _, em := range []*eventbus.Emitter{e.failure, e.peerAdded, e.peerRemoved, e.connAdded, e.connRemoved} {
		if em != nil {
			_ = em.Close()
		}
	}
}
