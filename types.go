package netsetup

import (
	"github.com/dep2p/go-netsetup/internal/core/eventbus"
	"github.com/dep2p/go-netsetup/internal/core/lifecycle"
)

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

type (
	// Handler 实体的 doOpen/doClose 实现
	Handler = lifecycle.Handler

	// HandlerFuncs 将一对函数适配为 Handler
	HandlerFuncs = lifecycle.HandlerFuncs

	// State 实体生命周期状态
	State = lifecycle.State

	// Op 生命周期操作
	Op = lifecycle.Op

	// Watcher 实体的带外观察者，每个实体只能挂载一次
	Watcher = lifecycle.Watcher
)

// 生命周期状态
const (
	StateUnopened    = lifecycle.StateUnopened
	StateOpening     = lifecycle.StateOpening
	StateOpen        = lifecycle.StateOpen
	StateOpenFailed  = lifecycle.StateOpenFailed
	StateClosing     = lifecycle.StateClosing
	StateClosed      = lifecycle.StateClosed
	StateCloseFailed = lifecycle.StateCloseFailed
)

// 生命周期操作
const (
	OpOpen  = lifecycle.OpOpen
	OpClose = lifecycle.OpClose
)

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

type (
	// EntityKind 实体类型
	EntityKind = eventbus.EntityKind

	// EvtLifecycleFailure 带外投递的 doOpen/doClose 失败
	EvtLifecycleFailure = eventbus.EvtLifecycleFailure

	// EvtPeerAdded 节点加入拓扑
	EvtPeerAdded = eventbus.EvtPeerAdded

	// EvtPeerRemoved 节点移出拓扑
	EvtPeerRemoved = eventbus.EvtPeerRemoved

	// EvtConnectionAdded 连接加入拓扑
	EvtConnectionAdded = eventbus.EvtConnectionAdded

	// EvtConnectionRemoved 连接移出拓扑
	EvtConnectionRemoved = eventbus.EvtConnectionRemoved

	// Subscription 事件订阅
	Subscription = eventbus.Subscription
)

// 实体类型
const (
	KindPeer       = eventbus.KindPeer
	KindConnection = eventbus.KindConnection
)
