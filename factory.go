package netsetup

import (
	"fmt"

	"github.com/dep2p/go-netsetup/pkg/graph"
)

// PeerFactory 为新加入的节点决定其 Peer
//
// 在图变更批次中同步调用：可以读取网络，但不能同步修改网络。
type PeerFactory func(node *graph.Node) (PeerResult, error)

// ConnectionFactory 为新加入的连边决定其 Connection，from/to 为已解析的端点
type ConnectionFactory func(link *graph.Link, from, to *Peer) (ConnectionResult, error)

type resultKind int

const (
	resultDefault resultKind = iota
	resultEntity
	resultHandler
	resultPayload
	resultHandlerPayload
)

// ════════════════════════════════════════════════════════════════════════════
//                              PeerResult
// ════════════════════════════════════════════════════════════════════════════

// PeerResult 工厂返回值：完整实体、打开/关闭实现、或仅业务数据
//
// 零值等同 DefaultPeer()。
type PeerResult struct {
	kind    resultKind
	peer    *Peer
	handler Handler
	payload any
}

// DefaultPeer 使用空操作 Handler，业务数据取自节点
func DefaultPeer() PeerResult { return PeerResult{} }

// PeerEntity 直接使用工厂构造的 Peer，必须是为该节点新建且未打开的实体
func PeerEntity(p *Peer) PeerResult { return PeerResult{kind: resultEntity, peer: p} }

// PeerHandler 使用给定 Handler，业务数据取自节点
func PeerHandler(h Handler) PeerResult { return PeerResult{kind: resultHandler, handler: h} }

// PeerPayload 使用空操作 Handler 与给定业务数据
func PeerPayload(payload any) PeerResult {
	return PeerResult{kind: resultPayload, payload: payload}
}

// PeerHandlerWithPayload 使用给定 Handler 与业务数据
func PeerHandlerWithPayload(h Handler, payload any) PeerResult {
	return PeerResult{kind: resultHandlerPayload, handler: h, payload: payload}
}

func (r PeerResult) normalize(node *graph.Node) (*Peer, error) {
	switch r.kind {
	case resultEntity:
		if r.peer == nil || r.peer.Resource == nil {
			return nil, fmt.Errorf("%w: nil peer for %v", ErrFactoryContract, node.ID())
		}
		if r.peer.node != node {
			return nil, fmt.Errorf("%w: peer built for another node (%v)", ErrFactoryContract, node.ID())
		}
		if r.peer.State() != StateUnopened {
			return nil, fmt.Errorf("%w: peer %v already %s", ErrFactoryContract, node.ID(), r.peer.State())
		}
		return r.peer, nil
	case resultHandler, resultHandlerPayload:
		if r.handler == nil {
			return nil, fmt.Errorf("%w: nil handler for %v", ErrFactoryContract, node.ID())
		}
		payload := node.Payload()
		if r.kind == resultHandlerPayload {
			payload = r.payload
		}
		return NewPeer(node, r.handler, payload)
	case resultPayload:
		return NewPeer(node, nil, r.payload)
	default:
		return NewPeer(node, nil, node.Payload())
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              ConnectionResult
// ════════════════════════════════════════════════════════════════════════════

// ConnectionResult 连接工厂返回值，零值等同 DefaultConnection()
type ConnectionResult struct {
	kind    resultKind
	conn    *Connection
	handler Handler
	payload any
}

// DefaultConnection 使用空操作 Handler，业务数据取自连边
func DefaultConnection() ConnectionResult { return ConnectionResult{} }

// ConnectionEntity 直接使用工厂构造的 Connection
func ConnectionEntity(c *Connection) ConnectionResult {
	return ConnectionResult{kind: resultEntity, conn: c}
}

// ConnectionHandler 使用给定 Handler，业务数据取自连边
func ConnectionHandler(h Handler) ConnectionResult {
	return ConnectionResult{kind: resultHandler, handler: h}
}

// ConnectionPayload 使用空操作 Handler 与给定业务数据
func ConnectionPayload(payload any) ConnectionResult {
	return ConnectionResult{kind: resultPayload, payload: payload}
}

// ConnectionHandlerWithPayload 使用给定 Handler 与业务数据
func ConnectionHandlerWithPayload(h Handler, payload any) ConnectionResult {
	return ConnectionResult{kind: resultHandlerPayload, handler: h, payload: payload}
}

func (r ConnectionResult) normalize(link *graph.Link) (*Connection, error) {
	switch r.kind {
	case resultEntity:
		if r.conn == nil || r.conn.Resource == nil {
			return nil, fmt.Errorf("%w: nil connection for %s", ErrFactoryContract, link.ID())
		}
		if r.conn.link != link {
			return nil, fmt.Errorf("%w: connection built for another link (%s)", ErrFactoryContract, link.ID())
		}
		if r.conn.State() != StateUnopened {
			return nil, fmt.Errorf("%w: connection %s already %s", ErrFactoryContract, link.ID(), r.conn.State())
		}
		return r.conn, nil
	case resultHandler, resultHandlerPayload:
		if r.handler == nil {
			return nil, fmt.Errorf("%w: nil handler for %s", ErrFactoryContract, link.ID())
		}
		payload := link.Payload()
		if r.kind == resultHandlerPayload {
			payload = r.payload
		}
		return NewConnection(link, r.handler, payload)
	case resultPayload:
		return NewConnection(link, nil, r.payload)
	default:
		return NewConnection(link, nil, link.Payload())
	}
}

// DefaultPeerFactory 为每个节点构造空操作 Peer
func DefaultPeerFactory(*graph.Node) (PeerResult, error) {
	return DefaultPeer(), nil
}

// DefaultConnectionFactory 为每条连边构造空操作 Connection
func DefaultConnectionFactory(*graph.Link, *Peer, *Peer) (ConnectionResult, error) {
	return DefaultConnection(), nil
}
