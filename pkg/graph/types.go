package graph

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrInvalidID ID 为 nil 或不可比较
	ErrInvalidID = errors.New("graph: invalid id")

	// ErrNodeExists 节点已存在
	ErrNodeExists = errors.New("graph: node already exists")

	// ErrNodeNotFound 节点不存在
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrObserverSet 观察者已注册
	ErrObserverSet = errors.New("graph: observer already set")
)

// slot 挂载值的容器
type slot struct {
	v atomic.Pointer[box]
}

type box struct{ v any }

func (s *slot) load() any {
	if b := s.v.Load(); b != nil {
		return b.v
	}
	return nil
}

func (s *slot) store(v any) {
	s.v.Store(&box{v: v})
}

// ============================================================================
//                              节点与连边
// ============================================================================

// Node 图中的节点
type Node struct {
	id      any
	payload any
	seq     uint64
	value   slot

	// links 关联连边（按插入顺序），受 Graph.mu 保护
	links []*Link
}

// ID 返回节点的规范 ID
func (n *Node) ID() any { return n.id }

// Payload 返回添加节点时携带的数据
func (n *Node) Payload() any { return n.payload }

// Value 返回挂载在节点上的值
func (n *Node) Value() any { return n.value.load() }

// SetValue 挂载值
func (n *Node) SetValue(v any) { n.value.store(v) }

func (n *Node) String() string {
	return fmt.Sprintf("node(%v)", n.id)
}

// Link 有向连边，同一有序节点对之间可以存在多条
type Link struct {
	id      string
	fromID  any
	toID    any
	payload any
	seq     uint64
	value   slot
}

// ID 返回生成的连边 ID
func (l *Link) ID() string { return l.id }

// FromID 返回起点 ID
func (l *Link) FromID() any { return l.fromID }

// ToID 返回终点 ID
func (l *Link) ToID() any { return l.toID }

// Payload 返回添加连边时携带的数据
func (l *Link) Payload() any { return l.payload }

// Value 返回挂载在连边上的值
func (l *Link) Value() any { return l.value.load() }

// SetValue 挂载值
func (l *Link) SetValue(v any) { l.value.store(v) }

// Other 返回相对 id 的另一端
func (l *Link) Other(id any) any {
	if l.fromID == id {
		return l.toID
	}
	return l.fromID
}

func (l *Link) String() string {
	return fmt.Sprintf("link(%s: %v->%v)", l.id, l.fromID, l.toID)
}

// ============================================================================
//                              变更
// ============================================================================

// ChangeKind 变更类型
type ChangeKind int

const (
	// Added 新增
	Added ChangeKind = iota
	// Removed 移除
	Removed
)

// String 返回变更类型名称
func (k ChangeKind) String() string {
	if k == Added {
		return "added"
	}
	return "removed"
}

// Change 一条拓扑变更，Node 与 Link 恰有一个非 nil
type Change struct {
	Kind ChangeKind
	Node *Node
	Link *Link
}

// IsNode 是否为节点变更
func (c Change) IsNode() bool { return c.Node != nil }

// Observer 变更批次观察者
//
// 在变更调用返回前同步调用。观察者可以读取图，但不能同步修改图。
// 对 Added 批次返回错误会撤销本次添加。
type Observer func(changes []Change) error
