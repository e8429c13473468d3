package netsetup

import (
	"fmt"

	"github.com/dep2p/go-netsetup/internal/core/lifecycle"
	"github.com/dep2p/go-netsetup/pkg/graph"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Peer
// ════════════════════════════════════════════════════════════════════════════

// Peer 拓扑中的一个参与者
//
// Peer 内嵌生命周期状态机：Open/Close 幂等，Close 等待进行中的 Open。
type Peer struct {
	*lifecycle.Resource

	node    *graph.Node
	payload any
}

// NewPeer 为图节点构造 Peer，h 为 nil 时打开与关闭均为空操作
func NewPeer(node *graph.Node, h Handler, payload any) (*Peer, error) {
	if node == nil || graph.ValidateID(node.ID()) != nil {
		return nil, fmt.Errorf("%w: peer requires a node with an id", ErrInvalidID)
	}
	return &Peer{
		Resource: lifecycle.New(h),
		node:     node,
		payload:  payload,
	}, nil
}

// ID 返回规范 ID
func (p *Peer) ID() any { return p.node.ID() }

// Payload 返回业务数据
func (p *Peer) Payload() any { return p.payload }

// Node 返回所在的图节点
func (p *Peer) Node() *graph.Node { return p.node }

func (p *Peer) String() string {
	return fmt.Sprintf("peer(%v, %s)", p.ID(), p.State())
}

// ════════════════════════════════════════════════════════════════════════════
//                              Connection
// ════════════════════════════════════════════════════════════════════════════

// Connection 两个节点之间的一条有向连接
type Connection struct {
	*lifecycle.Resource

	link    *graph.Link
	payload any
}

// NewConnection 为图连边构造 Connection
func NewConnection(link *graph.Link, h Handler, payload any) (*Connection, error) {
	if link == nil || link.ID() == "" {
		return nil, fmt.Errorf("%w: connection requires a link", ErrInvalidID)
	}
	if graph.ValidateID(link.FromID()) != nil || graph.ValidateID(link.ToID()) != nil {
		return nil, fmt.Errorf("%w: connection requires both endpoints", ErrInvalidID)
	}
	return &Connection{
		Resource: lifecycle.New(h),
		link:     link,
		payload:  payload,
	}, nil
}

// ID 返回生成的连接 ID
func (c *Connection) ID() string { return c.link.ID() }

// FromID 返回起点的规范 ID
func (c *Connection) FromID() any { return c.link.FromID() }

// ToID 返回终点的规范 ID
func (c *Connection) ToID() any { return c.link.ToID() }

// Payload 返回业务数据
func (c *Connection) Payload() any { return c.payload }

// Link 返回所在的图连边
func (c *Connection) Link() *graph.Link { return c.link }

func (c *Connection) String() string {
	return fmt.Sprintf("connection(%s: %v->%v, %s)", c.ID(), c.FromID(), c.ToID(), c.State())
}
