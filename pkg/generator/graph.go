// Package generator 提供确定性的拓扑生成器
//
// 生成器是纯函数，只产出节点集合与连边集合，不涉及任何实体生命周期。
// 节点按首次出现的顺序排列，同一有序端点对上的重复连边会被合并。
package generator

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidArgument 生成器参数非法
var ErrInvalidArgument = errors.New("generator: invalid argument")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NodeSpec 节点描述
type NodeSpec struct {
	ID      any
	Payload any
}

// LinkSpec 有向连边描述
type LinkSpec struct {
	From    any
	To      any
	Payload any
}

// Graph 生成结果
type Graph struct {
	Nodes []NodeSpec
	Links []LinkSpec
}

// NodeCount 返回节点数
func (g Graph) NodeCount() int { return len(g.Nodes) }

// LinkCount 返回连边数
func (g Graph) LinkCount() int { return len(g.Links) }

// ════════════════════════════════════════════════════════════════════════════
//                              builder
// ════════════════════════════════════════════════════════════════════════════

type linkKey struct {
	from, to any
}

// builder 按首次出现顺序收集节点，addLink 隐式添加端点
type builder struct {
	nodes []NodeSpec
	seen  map[any]struct{}
	links []LinkSpec
	has   map[linkKey]struct{}
}

func newBuilder() *builder {
	return &builder{
		seen: make(map[any]struct{}),
		has:  make(map[linkKey]struct{}),
	}
}

func (b *builder) addNode(id any) {
	if _, ok := b.seen[id]; ok {
		return
	}
	b.seen[id] = struct{}{}
	b.nodes = append(b.nodes, NodeSpec{ID: id})
}

func (b *builder) addLink(from, to any) {
	b.addNode(from)
	b.addNode(to)
	k := linkKey{from, to}
	if _, ok := b.has[k]; ok {
		return
	}
	b.has[k] = struct{}{}
	b.links = append(b.links, LinkSpec{From: from, To: to})
}

func (b *builder) hasLink(from, to any) bool {
	_, ok := b.has[linkKey{from, to}]
	return ok
}

func (b *builder) removeLink(from, to any) {
	k := linkKey{from, to}
	if _, ok := b.has[k]; !ok {
		return
	}
	delete(b.has, k)
	i := slices.IndexFunc(b.links, func(l LinkSpec) bool { return l.From == from && l.To == to })
	b.links = slices.Delete(b.links, i, i+1)
}

// outDegree 返回 from 指向的不同目标数（不含自身）
func (b *builder) outDegree(from any) int {
	n := 0
	for k := range b.has {
		if k.from == from && k.to != from {
			n++
		}
	}
	return n
}

func (b *builder) graph() Graph {
	return Graph{Nodes: b.nodes, Links: b.links}
}
