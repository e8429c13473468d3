// Package graph 提供拓扑图存储
//
// Graph 是按规范 ID 索引的有向多重图：
//   - 变更操作同步且互斥，返回前结构状态已更新
//   - 每次变更在返回前向唯一观察者投递一个变更批次
//   - 移除节点时在同一操作内移除所有关联连边，
//     批次中先是连边移除，最后是节点移除
//   - 节点、连边以及节点的关联连边均按插入顺序遍历
package graph

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-netsetup/internal/util/logger"
)

var log = logger.Logger("graph")

// Option 图配置选项
type Option func(*Graph)

// WithObserver 注册变更观察者
func WithObserver(obs Observer) Option {
	return func(g *Graph) {
		g.observer = obs
	}
}

// Graph 有向多重图
type Graph struct {
	// wmu 串行化变更及其批次投递
	wmu      sync.Mutex
	observer Observer

	// mu 保护结构数据，投递批次前释放，观察者可读
	mu    sync.RWMutex
	nodes map[any]*Node
	links map[string]*Link
	seq   uint64
}

// New 创建空图
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes: make(map[any]*Node),
		links: make(map[string]*Link),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetObserver 注册变更观察者，只能注册一次
func (g *Graph) SetObserver(obs Observer) error {
	g.wmu.Lock()
	defer g.wmu.Unlock()
	if g.observer != nil {
		return ErrObserverSet
	}
	g.observer = obs
	return nil
}

// ValidateID 检查 ID 能否作为键
func ValidateID(id any) error {
	if id == nil {
		return ErrInvalidID
	}
	if !reflect.TypeOf(id).Comparable() {
		return fmt.Errorf("%w: %T is not comparable", ErrInvalidID, id)
	}
	return nil
}

// ============================================================================
//                              变更
// ============================================================================

// AddNode 添加节点
//
// ID 已存在时返回 ErrNodeExists。观察者拒绝时撤销添加并返回其错误。
func (g *Graph) AddNode(id, payload any) (*Node, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	g.wmu.Lock()
	defer g.wmu.Unlock()

	g.mu.Lock()
	if _, exists := g.nodes[id]; exists {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrNodeExists, id)
	}
	g.seq++
	n := &Node{id: id, payload: payload, seq: g.seq}
	g.nodes[id] = n
	g.mu.Unlock()

	if err := g.dispatch([]Change{{Kind: Added, Node: n}}); err != nil {
		g.mu.Lock()
		delete(g.nodes, id)
		g.mu.Unlock()
		log.Debug("节点添加被拒绝", "id", id, "err", err)
		return nil, err
	}

	log.Debug("节点已添加", "id", id)
	return n, nil
}

// AddLink 添加从 fromID 到 toID 的连边，两端节点必须存在
func (g *Graph) AddLink(fromID, toID, payload any) (*Link, error) {
	if err := ValidateID(fromID); err != nil {
		return nil, err
	}
	if err := ValidateID(toID); err != nil {
		return nil, err
	}

	g.wmu.Lock()
	defer g.wmu.Unlock()

	g.mu.Lock()
	from, ok := g.nodes[fromID]
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, fromID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, toID)
	}
	g.seq++
	l := &Link{
		id:      uuid.NewString(),
		fromID:  fromID,
		toID:    toID,
		payload: payload,
		seq:     g.seq,
	}
	g.attachLinkLocked(l, from, to)
	g.mu.Unlock()

	if err := g.dispatch([]Change{{Kind: Added, Link: l}}); err != nil {
		g.mu.Lock()
		g.detachLinkLocked(l)
		g.mu.Unlock()
		log.Debug("连边添加被拒绝", "from", fromID, "to", toID, "err", err)
		return nil, err
	}

	log.Debug("连边已添加", "id", l.id, "from", fromID, "to", toID)
	return l, nil
}

// RemoveNode 移除节点及其全部关联连边，节点不存在时返回 false
func (g *Graph) RemoveNode(id any) bool {
	if ValidateID(id) != nil {
		return false
	}
	return g.removeNode(id, nil)
}

// EvictNode 仅当 n 仍是图中该 ID 对应的实例时移除
func (g *Graph) EvictNode(n *Node) bool {
	if n == nil {
		return false
	}
	return g.removeNode(n.id, n)
}

func (g *Graph) removeNode(id any, want *Node) bool {
	g.wmu.Lock()
	defer g.wmu.Unlock()

	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok || (want != nil && n != want) {
		g.mu.Unlock()
		return false
	}

	incident := slices.Clone(n.links)
	changes := make([]Change, 0, len(incident)+1)
	for _, l := range incident {
		g.detachLinkLocked(l)
		changes = append(changes, Change{Kind: Removed, Link: l})
	}
	delete(g.nodes, id)
	changes = append(changes, Change{Kind: Removed, Node: n})
	g.mu.Unlock()

	if err := g.dispatch(changes); err != nil {
		log.Warn("观察者处理节点移除失败", "id", id, "err", err)
	}
	log.Debug("节点已移除", "id", id, "links", len(incident))
	return true
}

// RemoveLink 移除连边，连边已不在图中时返回 false
func (g *Graph) RemoveLink(l *Link) bool {
	if l == nil {
		return false
	}

	g.wmu.Lock()
	defer g.wmu.Unlock()

	g.mu.Lock()
	if g.links[l.id] != l {
		g.mu.Unlock()
		return false
	}
	g.detachLinkLocked(l)
	g.mu.Unlock()

	if err := g.dispatch([]Change{{Kind: Removed, Link: l}}); err != nil {
		log.Warn("观察者处理连边移除失败", "id", l.id, "err", err)
	}
	log.Debug("连边已移除", "id", l.id)
	return true
}

func (g *Graph) attachLinkLocked(l *Link, from, to *Node) {
	g.links[l.id] = l
	from.links = append(from.links, l)
	if to != from {
		to.links = append(to.links, l)
	}
}

func (g *Graph) detachLinkLocked(l *Link) {
	delete(g.links, l.id)
	for _, id := range []any{l.fromID, l.toID} {
		if n, ok := g.nodes[id]; ok {
			n.links = slices.DeleteFunc(n.links, func(x *Link) bool { return x == l })
		}
	}
}

func (g *Graph) dispatch(changes []Change) error {
	if g.observer == nil {
		return nil
	}
	return g.observer(changes)
}

// ============================================================================
//                              查询
// ============================================================================

// GetNode 按 ID 查找节点
func (g *Graph) GetNode(id any) (*Node, bool) {
	if ValidateID(id) != nil {
		return nil, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode 节点是否存在
func (g *Graph) HasNode(id any) bool {
	_, ok := g.GetNode(id)
	return ok
}

// GetLink 按连边 ID 查找
func (g *Graph) GetLink(id string) (*Link, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.links[id]
	return l, ok
}

// NodeCount 返回节点数
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// LinkCount 返回连边数
func (g *Graph) LinkCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.links)
}

// Nodes 返回按插入顺序排列的节点快照
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Node) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Links 返回按插入顺序排列的连边快照
func (g *Graph) Links() []*Link {
	g.mu.RLock()
	out := make([]*Link, 0, len(g.links))
	for _, l := range g.links {
		out = append(out, l)
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Link) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// IncidentLinks 返回与节点关联的连边（出边与入边）快照
func (g *Graph) IncidentLinks(id any) []*Link {
	if ValidateID(id) != nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.links)
}

// Degree 返回节点的关联连边数
func (g *Graph) Degree(id any) int {
	if ValidateID(id) != nil {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.nodes[id]; ok {
		return len(n.links)
	}
	return 0
}

// ForEachNode 按插入顺序遍历节点，fn 返回 false 时停止
func (g *Graph) ForEachNode(fn func(*Node) bool) {
	for _, n := range g.Nodes() {
		if !fn(n) {
			return
		}
	}
}

// ForEachLink 按插入顺序遍历连边，fn 返回 false 时停止
func (g *Graph) ForEachLink(fn func(*Link) bool) {
	for _, l := range g.Links() {
		if !fn(l) {
			return
		}
	}
}

// ForEachIncidentLink 遍历节点的关联连边，fn 返回 false 时停止
func (g *Graph) ForEachIncidentLink(id any, fn func(*Link) bool) {
	for _, l := range g.IncidentLinks(id) {
		if !fn(l) {
			return
		}
	}
}
