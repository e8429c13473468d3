package lifecycle

import "fmt"

// ============================================================================
//                              状态定义
// ============================================================================

// State 资源生命周期状态
//
// 状态只向前推进：
//
//	Unopened → Opening → Open → Closing → Closed
//	              ↘ OpenFailed ↗      ↘ CloseFailed
//
// OpenFailed 不可用但仍未关闭，需要显式 Close 才进入 Closed。
type State int

const (
	// StateUnopened 已创建，尚未打开
	StateUnopened State = iota
	// StateOpening doOpen 执行中
	StateOpening
	// StateOpen 已打开
	StateOpen
	// StateOpenFailed doOpen 失败，资源不可用
	StateOpenFailed
	// StateClosing doClose 执行中
	StateClosing
	// StateClosed 已关闭
	StateClosed
	// StateCloseFailed doClose 失败，按已关闭处理
	StateCloseFailed
)

// String 返回状态字符串表示
func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateOpenFailed:
		return "open_failed"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateCloseFailed:
		return "close_failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsClosed 是否已到达关闭终态
func (s State) IsClosed() bool {
	return s == StateClosed || s == StateCloseFailed
}

// Op 生命周期操作
type Op int

const (
	// OpOpen 打开
	OpOpen Op = iota
	// OpClose 关闭
	OpClose
)

// String 返回操作名称
func (o Op) String() string {
	if o == OpOpen {
		return "open"
	}
	return "close"
}
