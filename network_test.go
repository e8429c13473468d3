package netsetup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netsetup/config"
	"github.com/dep2p/go-netsetup/internal/core/metrics"
	"github.com/dep2p/go-netsetup/pkg/graph"
)

// tally 统计工厂构造的实体的 doOpen/doClose 次数
type tally struct {
	peerOpen, peerClose atomic.Int32
	connOpen, connClose atomic.Int32
}

func (p *tally) onPeer(*graph.Node) (PeerResult, error) {
	return PeerHandler(HandlerFuncs{
		OpenFunc: func(context.Context) error {
			p.peerOpen.Add(1)
			return nil
		},
		CloseFunc: func(context.Context) error {
			p.peerClose.Add(1)
			return nil
		},
	}), nil
}

func (p *tally) onConnection(*graph.Link, *Peer, *Peer) (ConnectionResult, error) {
	return ConnectionHandler(HandlerFuncs{
		OpenFunc: func(context.Context) error {
			p.connOpen.Add(1)
			return nil
		},
		CloseFunc: func(context.Context) error {
			p.connClose.Add(1)
			return nil
		},
	}), nil
}

func newCounted(t *testing.T, opts ...Option) (*Network, *tally) {
	t.Helper()
	p := &tally{}
	n, err := NewNetwork(p.onPeer, p.onConnection, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close(context.Background()) })
	return n, p
}

func recv[T any](t *testing.T, sub *Subscription) T {
	t.Helper()
	select {
	case evt := <-sub.Out():
		v, ok := evt.(T)
		require.True(t, ok, "unexpected event %T", evt)
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("未收到 %T", *new(T))
	}
	panic("unreachable")
}

const waitFor = 2 * time.Second

// ============================================================================
//                              构造
// ============================================================================

// TestNewNetwork_MissingFactory 测试缺少工厂
func TestNewNetwork_MissingFactory(t *testing.T) {
	_, err := NewNetwork(nil, DefaultConnectionFactory)
	assert.ErrorIs(t, err, ErrMissingFactory)

	_, err = NewNetwork(DefaultPeerFactory, nil)
	assert.ErrorIs(t, err, ErrMissingFactory)
}

// TestNewNetwork_InvalidConfig 测试非法配置
func TestNewNetwork_InvalidConfig(t *testing.T) {
	cfg := config.DefaultNetworkConfig().WithIDFormat("base58")
	_, err := NewNetwork(DefaultPeerFactory, DefaultConnectionFactory, WithConfig(cfg))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = NewNetwork(DefaultPeerFactory, DefaultConnectionFactory, WithIDFunc(nil))
	assert.ErrorIs(t, err, ErrInvalidID)
}

// ============================================================================
//                              场景
// ============================================================================

// TestNetwork_CompleteGraphScenario 测试三节点完全图的删除序列
func TestNetwork_CompleteGraphScenario(t *testing.T) {
	ctx := context.Background()
	p := &tally{}
	setup, err := NewSetup(p.onPeer, p.onConnection)
	require.NoError(t, err)
	t.Cleanup(func() { _ = setup.Close(ctx) })

	n, err := setup.Complete(ctx, 3)
	require.NoError(t, err)
	require.Len(t, n.Peers(), 3)
	require.Len(t, n.Connections(), 3)
	assert.Equal(t, int32(3), p.peerOpen.Load())
	assert.Equal(t, int32(3), p.connOpen.Load())

	conns := n.GetConnectionsFromPeer(0)
	require.Len(t, conns, 2)

	require.NoError(t, n.DeleteConnection(ctx, conns[0]))
	assert.Equal(t, 1, n.ConnectionCount(0))

	require.NoError(t, conns[1].Close(ctx))
	assert.Equal(t, 0, n.ConnectionCount(0))

	require.NoError(t, n.DeletePeer(ctx, 0))
	assert.Len(t, n.Peers(), 2)
	assert.Len(t, n.Connections(), 1)

	require.NoError(t, n.DeletePeer(ctx, 1))
	assert.Len(t, n.Peers(), 1)
	assert.Len(t, n.Connections(), 0)

	require.Eventually(t, func() bool { return p.connClose.Load() == 3 }, waitFor, time.Millisecond)
	assert.Equal(t, int32(3), p.peerOpen.Load())
	assert.Equal(t, int32(2), p.peerClose.Load())
	assert.Equal(t, int32(3), p.connOpen.Load())
}

// TestNetwork_Cascade 测试删除节点级联关闭其全部连接
func TestNetwork_Cascade(t *testing.T) {
	ctx := context.Background()
	n, p := newCounted(t)

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := n.AddPeer(ctx, id, nil)
		require.NoError(t, err)
	}
	for _, pair := range [][2]string{{"a", "b"}, {"c", "a"}, {"a", "d"}, {"b", "c"}} {
		_, err := n.AddConnection(ctx, pair[0], pair[1], nil)
		require.NoError(t, err)
	}
	require.Equal(t, 3, n.ConnectionCount("a"))

	require.NoError(t, n.DeletePeer(ctx, "a"))
	assert.Equal(t, 1, n.NumConnections())
	assert.False(t, n.HasPeer("a"))
	assert.Equal(t, 1, n.ConnectionCount("b"))

	require.Eventually(t, func() bool { return p.connClose.Load() == 3 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), p.connClose.Load(), "每条连接只关闭一次")
}

// TestNetwork_DeleteOneOfParallelConnections 测试多重边只删除一条
func TestNetwork_DeleteOneOfParallelConnections(t *testing.T) {
	ctx := context.Background()
	n, _ := newCounted(t)

	_, _ = n.AddPeer(ctx, "a", nil)
	_, _ = n.AddPeer(ctx, "b", nil)
	_, _ = n.AddPeer(ctx, "c", nil)
	first, err := n.AddConnection(ctx, "a", "b", "first")
	require.NoError(t, err)
	second, err := n.AddConnection(ctx, "a", "b", "second")
	require.NoError(t, err)
	other, err := n.AddConnection(ctx, "b", "c", nil)
	require.NoError(t, err)

	require.NoError(t, n.DeleteConnection(ctx, first))
	assert.Equal(t, []*Connection{second}, n.GetConnectionsFromPeer("a"))
	assert.Equal(t, []*Connection{second, other}, n.GetConnectionsFromPeer("b"))
	assert.Equal(t, StateOpen, second.State())
}

// ============================================================================
//                              ID
// ============================================================================

// TestNetwork_Canonicalization 测试规范化的一致性
func TestNetwork_Canonicalization(t *testing.T) {
	ctx := context.Background()
	lower := func(raw any) any {
		if s, ok := raw.(string); ok {
			return strings.ToLower(s)
		}
		return raw
	}
	n, _ := newCounted(t, WithIDFunc(lower))

	peer, err := n.AddPeer(ctx, "Alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", peer.ID())

	for _, raw := range []any{"Alice", "ALICE", "alice", lower(lower("aLiCe"))} {
		got, ok := n.GetPeer(raw)
		require.True(t, ok)
		assert.Same(t, peer, got)
	}

	_, _ = n.AddPeer(ctx, "Bob", nil)
	conn, err := n.AddConnection(ctx, "ALICE", "BOB", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", conn.FromID())
	assert.Equal(t, "bob", conn.ToID())
	assert.Len(t, n.GetConnectionsFromPeer("Bob"), 1)

	require.NoError(t, n.DeletePeer(ctx, "aLIce"))
	assert.False(t, n.HasPeer("alice"))
}

// TestNetwork_HexIDs 测试十六进制规范化
func TestNetwork_HexIDs(t *testing.T) {
	ctx := context.Background()
	n, _ := newCounted(t, WithConfig(config.DefaultNetworkConfig().WithIDFormat(config.IDFormatHex)))

	peer, err := n.AddPeer(ctx, []byte{0xde, 0xad}, nil)
	require.NoError(t, err)
	assert.Equal(t, "dead", peer.ID())

	got, ok := n.GetPeer("dead")
	require.True(t, ok)
	assert.Same(t, peer, got)
}

// TestNetwork_InvalidID 测试非法 ID
func TestNetwork_InvalidID(t *testing.T) {
	ctx := context.Background()
	n, _ := newCounted(t)

	_, err := n.AddPeer(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = n.AddPeer(ctx, []byte("raw"), nil)
	assert.ErrorIs(t, err, ErrInvalidID)

	_, ok := n.GetPeer(nil)
	assert.False(t, ok)
	assert.ErrorIs(t, n.DeletePeer(ctx, nil), ErrInvalidID)
	assert.ErrorIs(t, n.DeleteConnection(ctx, nil), ErrInvalidConnection)
}

// TestNetwork_ReAddRejected 测试仍在图中（包括关闭中）的 ID 不能重新添加
func TestNetwork_ReAddRejected(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	onPeer := func(*graph.Node) (PeerResult, error) {
		return PeerHandler(HandlerFuncs{
			CloseFunc: func(context.Context) error {
				<-release
				return nil
			},
		}), nil
	}
	n, err := NewNetwork(onPeer, DefaultConnectionFactory)
	require.NoError(t, err)

	_, err = n.AddPeer(ctx, 1, nil)
	require.NoError(t, err)
	_, err = n.AddPeer(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrPeerExists)

	deleted := make(chan error, 1)
	go func() { deleted <- n.DeletePeer(ctx, 1) }()
	peer, _ := n.GetPeer(1)
	require.Eventually(t, func() bool { return peer.State() == StateClosing }, waitFor, time.Millisecond)

	_, err = n.AddPeer(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrPeerExists)

	close(release)
	require.NoError(t, <-deleted)

	fresh, err := n.AddPeer(ctx, 1, nil)
	require.NoError(t, err)
	assert.NotSame(t, peer, fresh)
	require.NoError(t, n.Close(ctx))
}

// ============================================================================
//                              失败
// ============================================================================

// TestNetwork_OpenFailureStaysUntilDeleted 测试打开失败的节点保留在图中
func TestNetwork_OpenFailureStaysUntilDeleted(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	onPeer := func(node *graph.Node) (PeerResult, error) {
		if node.ID() == "bad" {
			return PeerHandler(HandlerFuncs{OpenFunc: func(context.Context) error { return boom }}), nil
		}
		return DefaultPeer(), nil
	}
	n, err := NewNetwork(onPeer, DefaultConnectionFactory)
	require.NoError(t, err)
	defer n.Close(ctx)

	sub, err := n.Subscribe(new(EvtLifecycleFailure))
	require.NoError(t, err)
	defer sub.Close()

	_, err = n.AddPeer(ctx, "good", nil)
	require.NoError(t, err)
	peer, err := n.AddPeer(ctx, "bad", nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateOpenFailed, peer.State())
	assert.True(t, n.HasPeer("bad"))

	evt := recv[EvtLifecycleFailure](t, sub)
	assert.Equal(t, KindPeer, evt.Kind)
	assert.Equal(t, "bad", evt.ID)
	assert.Equal(t, OpOpen, evt.Op)
	assert.ErrorIs(t, evt, boom)

	require.NoError(t, n.DeletePeer(ctx, "bad"))
	assert.False(t, n.HasPeer("bad"))
	assert.True(t, n.HasPeer("good"))

	// good 仍在拓扑中，bad 从未打开成功，移出时不调用 doClose，也不计入关闭
	require.Eventually(t, func() bool {
		s := n.Reporter().Stats().Peers
		return s.Opened == 1 && s.OpenFailed == 1 && s.Removed == 1
	}, waitFor, time.Millisecond)
	s := n.Reporter().Stats().Peers
	assert.Zero(t, s.Closed)
	assert.Zero(t, s.CloseFailed)
	assert.False(t, peer.HandlerClosed())
}

// TestNetwork_CloseUnopenedNotCounted 测试未打开即关闭的实体不计入关闭结果
func TestNetwork_CloseUnopenedNotCounted(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	defer close(release)
	onConnection := func(*graph.Link, *Peer, *Peer) (ConnectionResult, error) {
		return ConnectionHandler(HandlerFuncs{OpenFunc: func(context.Context) error {
			<-release
			return errors.New("never opened")
		}}), nil
	}
	n, err := NewNetwork(DefaultPeerFactory, onConnection)
	require.NoError(t, err)
	defer n.Close(ctx)

	_, _ = n.AddPeer(ctx, "a", nil)
	_, _ = n.AddPeer(ctx, "b", nil)

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	conn, err := n.AddConnection(openCtx, "a", "b", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// 关闭请求在打开失败后直接结束，doClose 不执行
	closed := make(chan error, 1)
	go func() { closed <- n.DeleteConnection(ctx, conn) }()
	require.Eventually(t, func() bool { return conn.State() == StateOpening }, waitFor, time.Millisecond)
	release <- struct{}{}

	require.NoError(t, <-closed)
	assert.Equal(t, 0, n.NumConnections())
	assert.False(t, conn.HandlerClosed())

	s := n.Reporter().Stats().Connections
	assert.Equal(t, int64(1), s.OpenFailed)
	assert.Zero(t, s.Closed)
	assert.Equal(t, int64(1), s.Removed)
}

// TestNetwork_CloseTimeout 测试 doClose 超过时限后实体仍移出拓扑
func TestNetwork_CloseTimeout(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultNetworkConfig().WithCloseTimeout(50 * time.Millisecond)
	onPeer := func(*graph.Node) (PeerResult, error) {
		return PeerHandler(HandlerFuncs{CloseFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}}), nil
	}
	n, err := NewNetwork(onPeer, DefaultConnectionFactory, WithConfig(cfg))
	require.NoError(t, err)

	sub, err := n.Subscribe(new(EvtLifecycleFailure))
	require.NoError(t, err)
	defer sub.Close()

	peer, err := n.AddPeer(ctx, "a", nil)
	require.NoError(t, err)

	err = n.DeletePeer(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateCloseFailed, peer.State())
	assert.False(t, n.HasPeer("a"))

	evt := recv[EvtLifecycleFailure](t, sub)
	assert.Equal(t, OpClose, evt.Op)
	assert.ErrorIs(t, evt, context.DeadlineExceeded)

	// ID 可以重新加入
	again, err := n.AddPeer(ctx, "a", nil)
	require.NoError(t, err)
	assert.NotSame(t, peer, again)

	err = n.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Eventually(t, func() bool { return n.NumPeers() == 0 }, waitFor, time.Millisecond)
}

// TestNetwork_CloseFailure 测试关闭失败仍移出图
func TestNetwork_CloseFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("close boom")
	onConnection := func(*graph.Link, *Peer, *Peer) (ConnectionResult, error) {
		return ConnectionHandler(HandlerFuncs{CloseFunc: func(context.Context) error { return boom }}), nil
	}
	n, err := NewNetwork(DefaultPeerFactory, onConnection)
	require.NoError(t, err)

	sub, err := n.Subscribe(new(EvtLifecycleFailure))
	require.NoError(t, err)
	defer sub.Close()

	_, _ = n.AddPeer(ctx, "a", nil)
	_, _ = n.AddPeer(ctx, "b", nil)
	conn, err := n.AddConnection(ctx, "a", "b", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, n.DeleteConnection(ctx, conn), boom)
	assert.Equal(t, StateCloseFailed, conn.State())
	assert.Equal(t, 0, n.NumConnections())

	evt := recv[EvtLifecycleFailure](t, sub)
	assert.Equal(t, KindConnection, evt.Kind)
	assert.Equal(t, conn.ID(), evt.ID)
	assert.Equal(t, OpClose, evt.Op)

	require.NoError(t, n.Close(ctx))
}

// TestNetwork_SiblingFailureIsolated 测试一个实体失败不影响同批其他实体
func TestNetwork_SiblingFailureIsolated(t *testing.T) {
	ctx := context.Background()
	onConnection := func(link *graph.Link, _, _ *Peer) (ConnectionResult, error) {
		if link.Payload() == "fail" {
			return ConnectionHandler(HandlerFuncs{CloseFunc: func(context.Context) error { return errors.New("x") }}), nil
		}
		return DefaultConnection(), nil
	}
	n, err := NewNetwork(DefaultPeerFactory, onConnection)
	require.NoError(t, err)

	_, _ = n.AddPeer(ctx, "a", nil)
	_, _ = n.AddPeer(ctx, "b", nil)
	bad, _ := n.AddConnection(ctx, "a", "b", "fail")
	good, _ := n.AddConnection(ctx, "a", "b", "ok")

	require.NoError(t, n.DeletePeer(ctx, "a"))
	require.Eventually(t, func() bool {
		return bad.State().IsClosed() && good.State().IsClosed()
	}, waitFor, time.Millisecond)
	assert.Equal(t, StateCloseFailed, bad.State())
	assert.Equal(t, StateClosed, good.State())
}

// ============================================================================
//                              工厂契约
// ============================================================================

// TestNetwork_FactoryContract 测试工厂返回值不合法时同步失败且不留下节点
func TestNetwork_FactoryContract(t *testing.T) {
	ctx := context.Background()
	orphan, err := NewPeer(&graph.Node{}, nil, nil)
	require.ErrorIs(t, err, ErrInvalidID)
	require.Nil(t, orphan)

	var stale *Peer
	factoryErr := errors.New("factory failed")

	tests := []struct {
		name    string
		factory PeerFactory
		want    error
	}{
		{
			name:    "nil entity",
			factory: func(*graph.Node) (PeerResult, error) { return PeerEntity(nil), nil },
			want:    ErrFactoryContract,
		},
		{
			name:    "nil handler",
			factory: func(*graph.Node) (PeerResult, error) { return PeerHandler(nil), nil },
			want:    ErrFactoryContract,
		},
		{
			name: "entity for another node",
			factory: func(node *graph.Node) (PeerResult, error) {
				other := graph.New()
				on, _ := other.AddNode(node.ID(), nil)
				p, _ := NewPeer(on, nil, nil)
				return PeerEntity(p), nil
			},
			want: ErrFactoryContract,
		},
		{
			name: "entity already opened",
			factory: func(node *graph.Node) (PeerResult, error) {
				p, _ := NewPeer(node, nil, nil)
				_ = p.Open(context.Background())
				return PeerEntity(p), nil
			},
			want: ErrFactoryContract,
		},
		{
			name: "entity reused",
			factory: func(node *graph.Node) (PeerResult, error) {
				if stale == nil {
					stale, _ = NewPeer(node, nil, nil)
					_ = stale.Watch(Watcher{})
				}
				return PeerEntity(stale), nil
			},
			want: ErrFactoryContract,
		},
		{
			name: "entity already closed",
			factory: func(node *graph.Node) (PeerResult, error) {
				p, _ := NewPeer(node, nil, nil)
				_ = p.Close(context.Background())
				return PeerEntity(p), nil
			},
			want: ErrFactoryContract,
		},
		{
			name:    "factory error",
			factory: func(*graph.Node) (PeerResult, error) { return PeerResult{}, factoryErr },
			want:    factoryErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNetwork(tt.factory, DefaultConnectionFactory)
			require.NoError(t, err)

			_, err = n.AddPeer(ctx, "x", nil)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, n.HasPeer("x"))
			assert.Equal(t, 0, n.NumPeers())
		})
	}
}

// TestNetwork_FactoryEntity 测试工厂直接构造实体
func TestNetwork_FactoryEntity(t *testing.T) {
	ctx := context.Background()
	var built *Peer
	onPeer := func(node *graph.Node) (PeerResult, error) {
		p, err := NewPeer(node, nil, "custom")
		built = p
		return PeerEntity(p), err
	}
	onConnection := func(link *graph.Link, from, to *Peer) (ConnectionResult, error) {
		return ConnectionPayload([2]any{from.ID(), to.ID()}), nil
	}
	n, err := NewNetwork(onPeer, onConnection)
	require.NoError(t, err)
	defer n.Close(ctx)

	peer, err := n.AddPeer(ctx, "a", "ignored")
	require.NoError(t, err)
	assert.Same(t, built, peer)
	assert.Equal(t, "custom", peer.Payload())

	_, _ = n.AddPeer(ctx, "b", nil)
	conn, err := n.AddConnection(ctx, "a", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, [2]any{"a", "b"}, conn.Payload())
}

// TestNetwork_DefaultPayload 测试默认实体沿用图中的业务数据
func TestNetwork_DefaultPayload(t *testing.T) {
	ctx := context.Background()
	n, err := NewNetwork(DefaultPeerFactory, DefaultConnectionFactory)
	require.NoError(t, err)
	defer n.Close(ctx)

	peer, err := n.AddPeer(ctx, "a", map[string]int{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 1}, peer.Payload())

	conn, err := n.AddConnection(ctx, "a", "a", "loop")
	require.NoError(t, err)
	assert.Equal(t, "loop", conn.Payload())
	assert.Equal(t, 1, n.ConnectionCount("a"))
}

// TestNetwork_AddConnectionUnknownPeer 测试端点不存在
func TestNetwork_AddConnectionUnknownPeer(t *testing.T) {
	ctx := context.Background()
	n, _ := newCounted(t)
	_, _ = n.AddPeer(ctx, "a", nil)

	_, err := n.AddConnection(ctx, "a", "ghost", nil)
	assert.ErrorIs(t, err, ErrPeerNotFound)
	assert.Equal(t, 0, n.NumConnections())
}

// ============================================================================
//                              移除路径
// ============================================================================

// TestNetwork_GraphRemovalCloses 测试直接从图中移除节点会关闭实体
func TestNetwork_GraphRemovalCloses(t *testing.T) {
	ctx := context.Background()
	n, p := newCounted(t)

	peer, _ := n.AddPeer(ctx, "a", nil)
	_, _ = n.AddPeer(ctx, "b", nil)
	conn, _ := n.AddConnection(ctx, "a", "b", nil)

	require.True(t, n.Graph().RemoveNode("a"))
	assert.Equal(t, 0, n.NumConnections())

	select {
	case <-peer.Done():
	case <-time.After(waitFor):
		t.Fatal("节点未关闭")
	}
	select {
	case <-conn.Done():
	case <-time.After(waitFor):
		t.Fatal("连接未关闭")
	}
	assert.Equal(t, int32(1), p.peerClose.Load())
	assert.Equal(t, int32(1), p.connClose.Load())
}

// TestNetwork_SelfClose 测试实体自行关闭后移出图
func TestNetwork_SelfClose(t *testing.T) {
	ctx := context.Background()
	n, p := newCounted(t)

	peer, _ := n.AddPeer(ctx, "a", nil)
	_, _ = n.AddPeer(ctx, "b", nil)
	_, _ = n.AddConnection(ctx, "b", "a", nil)

	require.NoError(t, peer.Close(ctx))
	assert.False(t, n.HasPeer("a"))
	assert.Equal(t, 0, n.ConnectionCount("b"))

	require.NoError(t, peer.Close(ctx))
	require.NoError(t, n.DeletePeer(ctx, "a"))
	require.Eventually(t, func() bool { return p.connClose.Load() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, int32(1), p.peerClose.Load())
}

// TestNetwork_DeleteWhileOpening 测试打开中删除
func TestNetwork_DeleteWhileOpening(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	var opens, closes atomic.Int32
	onPeer := func(*graph.Node) (PeerResult, error) {
		return PeerHandler(HandlerFuncs{
			OpenFunc: func(context.Context) error {
				opens.Add(1)
				<-release
				return nil
			},
			CloseFunc: func(context.Context) error {
				closes.Add(1)
				return nil
			},
		}), nil
	}
	n, err := NewNetwork(onPeer, DefaultConnectionFactory)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = n.AddPeer(ctx, "a", nil)
	}()
	require.Eventually(t, func() bool { return opens.Load() == 1 }, waitFor, time.Millisecond)

	deleted := make(chan error, 1)
	go func() { deleted <- n.DeletePeer(ctx, "a") }()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), closes.Load())

	close(release)
	require.NoError(t, <-deleted)
	wg.Wait()
	assert.Equal(t, int32(1), closes.Load())
	assert.False(t, n.HasPeer("a"))
}

// ============================================================================
//                              事件与快照
// ============================================================================

// TestNetwork_TopologyEvents 测试拓扑事件
func TestNetwork_TopologyEvents(t *testing.T) {
	ctx := context.Background()
	n, _ := newCounted(t)

	added, err := n.Subscribe(new(EvtPeerAdded))
	require.NoError(t, err)
	defer added.Close()
	removed, err := n.Subscribe(new(EvtConnectionRemoved))
	require.NoError(t, err)
	defer removed.Close()

	_, _ = n.AddPeer(ctx, "a", nil)
	_, _ = n.AddPeer(ctx, "b", nil)
	conn, _ := n.AddConnection(ctx, "a", "b", nil)

	assert.Equal(t, EvtPeerAdded{ID: "a"}, recv[EvtPeerAdded](t, added))
	assert.Equal(t, EvtPeerAdded{ID: "b"}, recv[EvtPeerAdded](t, added))

	require.NoError(t, n.DeletePeer(ctx, "b"))
	assert.Equal(t, EvtConnectionRemoved{ID: conn.ID(), FromID: "a", ToID: "b"}, recv[EvtConnectionRemoved](t, removed))
}

// TestNetwork_TopologyEventsDisabled 测试关闭拓扑事件
func TestNetwork_TopologyEventsDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultNetworkConfig()
	cfg.EmitTopologyEvents = false
	n, _ := newCounted(t, WithConfig(cfg))

	added, err := n.Subscribe(new(EvtPeerAdded))
	require.NoError(t, err)
	defer added.Close()

	_, _ = n.AddPeer(ctx, "a", nil)
	select {
	case evt := <-added.Out():
		t.Fatalf("unexpected event %v", evt)
	case <-time.After(20 * time.Millisecond):
	}
}

// TestNetwork_Snapshot 测试拓扑快照
func TestNetwork_Snapshot(t *testing.T) {
	ctx := context.Background()
	n, _ := newCounted(t)

	_, _ = n.AddPeer(ctx, "a", nil)
	_, _ = n.AddPeer(ctx, "b", nil)
	_, _ = n.AddPeer(ctx, "c", nil)
	_, _ = n.AddConnection(ctx, "a", "b", nil)
	_, _ = n.AddConnection(ctx, "a", "c", nil)

	s := n.Snapshot()
	assert.Equal(t, 3, s.TotalPeers)
	assert.Equal(t, 2, s.TotalConnections)
	assert.Equal(t, 1, s.MinDegree)
	assert.Equal(t, 2, s.MaxDegree)
	assert.Equal(t, 3, s.PeerStates["open"])
}

// TestNetwork_SharedReporter 测试共享计数
func TestNetwork_SharedReporter(t *testing.T) {
	ctx := context.Background()
	r := metrics.NewCounters()
	n, _ := newCounted(t, WithReporter(r))

	_, _ = n.AddPeer(ctx, "a", nil)
	require.NoError(t, n.DeletePeer(ctx, "a"))

	require.Eventually(t, func() bool {
		s := r.Stats().Peers
		return s.Opened == 1 && s.Closed == 1 && s.Removed == 1
	}, waitFor, time.Millisecond)
}

// ============================================================================
//                              关闭
// ============================================================================

// TestNetwork_Close 测试关闭网络汇总错误
func TestNetwork_Close(t *testing.T) {
	ctx := context.Background()
	e1, e2 := errors.New("peer close"), errors.New("conn close")
	onPeer := func(node *graph.Node) (PeerResult, error) {
		if node.ID() == "a" {
			return PeerHandler(HandlerFuncs{CloseFunc: func(context.Context) error { return e1 }}), nil
		}
		return DefaultPeer(), nil
	}
	onConnection := func(*graph.Link, *Peer, *Peer) (ConnectionResult, error) {
		return ConnectionHandler(HandlerFuncs{CloseFunc: func(context.Context) error { return e2 }}), nil
	}
	n, err := NewNetwork(onPeer, onConnection)
	require.NoError(t, err)

	_, _ = n.AddPeer(ctx, "a", nil)
	_, _ = n.AddPeer(ctx, "b", nil)
	_, _ = n.AddConnection(ctx, "a", "b", nil)

	err = n.Close(ctx)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.Equal(t, 0, n.NumPeers())
	assert.Equal(t, 0, n.NumConnections())

	assert.NoError(t, n.Close(ctx))
	_, err = n.AddPeer(ctx, "c", nil)
	assert.ErrorIs(t, err, ErrNetworkClosed)
}

// TestNetwork_OpenTimeout 测试等待打开超时
func TestNetwork_OpenTimeout(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	onPeer := func(*graph.Node) (PeerResult, error) {
		return PeerHandler(HandlerFuncs{OpenFunc: func(context.Context) error {
			<-release
			return nil
		}}), nil
	}
	cfg := config.DefaultNetworkConfig().WithOpenTimeout(10 * time.Millisecond)
	n, err := NewNetwork(onPeer, DefaultConnectionFactory, WithConfig(cfg))
	require.NoError(t, err)

	peer, err := n.AddPeer(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateOpening, peer.State())

	close(release)
	require.NoError(t, peer.Open(ctx))
	require.NoError(t, n.Close(ctx))
}
