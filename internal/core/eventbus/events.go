package eventbus

import (
	"fmt"

	"github.com/dep2p/go-netsetup/internal/core/lifecycle"
)

// EntityKind 实体类型
type EntityKind int

const (
	// KindPeer 节点
	KindPeer EntityKind = iota
	// KindConnection 连接
	KindConnection
)

// String 返回实体类型名称
func (k EntityKind) String() string {
	if k == KindPeer {
		return "peer"
	}
	return "connection"
}

// ============================================================================
//                              拓扑事件
// ============================================================================

// EvtLifecycleFailure 实体 doOpen/doClose 失败
//
// 失败从不通过触发变更的调用返回，而是经由此事件带外投递。
type EvtLifecycleFailure struct {
	Kind EntityKind
	// ID 节点的规范 ID，或连接的生成 ID
	ID  any
	Op  lifecycle.Op
	Err error
}

// Error 实现 error
func (e EvtLifecycleFailure) Error() string {
	return fmt.Sprintf("%s %v %s: %v", e.Kind, e.ID, e.Op, e.Err)
}

// Unwrap 返回底层错误
func (e EvtLifecycleFailure) Unwrap() error { return e.Err }

// EvtPeerAdded 节点加入拓扑
type EvtPeerAdded struct {
	ID any
}

// EvtPeerRemoved 节点移出拓扑
type EvtPeerRemoved struct {
	ID any
}

// EvtConnectionAdded 连接加入拓扑
type EvtConnectionAdded struct {
	ID     string
	FromID any
	ToID   any
}

// EvtConnectionRemoved 连接移出拓扑
type EvtConnectionRemoved struct {
	ID     string
	FromID any
	ToID   any
}
