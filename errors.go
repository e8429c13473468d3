package netsetup

import "errors"

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 契约错误（编程错误，在违反契约的调用上同步返回）
	// ────────────────────────────────────────────────────────────────────────

	// ErrMissingFactory 未提供 onPeer 或 onConnection 工厂
	ErrMissingFactory = errors.New("netsetup: missing factory")

	// ErrInvalidID ID 为空或无法作为键
	ErrInvalidID = errors.New("netsetup: invalid id")

	// ErrFactoryContract 工厂返回值不满足实体契约
	ErrFactoryContract = errors.New("netsetup: factory contract violation")

	// ErrInvalidConnection 连接句柄为空
	ErrInvalidConnection = errors.New("netsetup: invalid connection")

	// ────────────────────────────────────────────────────────────────────────
	// 拓扑错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrPeerExists 同一规范 ID 的节点仍在拓扑中（包括关闭中）
	ErrPeerExists = errors.New("netsetup: peer already exists")

	// ErrPeerNotFound 连接端点不存在
	ErrPeerNotFound = errors.New("netsetup: peer not found")

	// ErrNetworkClosed 网络已关闭
	ErrNetworkClosed = errors.New("netsetup: network closed")
)
