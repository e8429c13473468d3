package metrics

import (
	"sync/atomic"

	"github.com/dep2p/go-netsetup/internal/core/eventbus"
	"github.com/dep2p/go-netsetup/internal/core/lifecycle"
)

// Reporter 记录实体生命周期结果
type Reporter interface {
	// RecordOp 记录一次 doOpen/doClose 的结果
	RecordOp(kind eventbus.EntityKind, op lifecycle.Op, err error)

	// RecordRemoval 记录一次移出拓扑
	RecordRemoval(kind eventbus.EntityKind)

	// Stats 返回累计计数
	Stats() Stats
}

// OpStats 单类实体的计数
type OpStats struct {
	Opened      int64 `json:"opened"`
	OpenFailed  int64 `json:"openFailed"`
	Closed      int64 `json:"closed"`
	CloseFailed int64 `json:"closeFailed"`
	Removed     int64 `json:"removed"`
}

// Stats 计数快照
type Stats struct {
	Peers       OpStats `json:"peers"`
	Connections OpStats `json:"connections"`
}

type opCounters struct {
	opened, openFailed, closed, closeFailed, removed atomic.Int64
}

func (c *opCounters) snapshot() OpStats {
	return OpStats{
		Opened:      c.opened.Load(),
		OpenFailed:  c.openFailed.Load(),
		Closed:      c.closed.Load(),
		CloseFailed: c.closeFailed.Load(),
		Removed:     c.removed.Load(),
	}
}

// Counters 基于原子计数的 Reporter
type Counters struct {
	peers       opCounters
	connections opCounters
}

var _ Reporter = (*Counters)(nil)

// NewCounters 创建计数器
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) of(kind eventbus.EntityKind) *opCounters {
	if kind == eventbus.KindPeer {
		return &c.peers
	}
	return &c.connections
}

// RecordOp 实现 Reporter
func (c *Counters) RecordOp(kind eventbus.EntityKind, op lifecycle.Op, err error) {
	oc := c.of(kind)
	switch {
	case op == lifecycle.OpOpen && err == nil:
		oc.opened.Add(1)
	case op == lifecycle.OpOpen:
		oc.openFailed.Add(1)
	case err == nil:
		oc.closed.Add(1)
	default:
		oc.closeFailed.Add(1)
	}
}

// RecordRemoval 实现 Reporter
func (c *Counters) RecordRemoval(kind eventbus.EntityKind) {
	c.of(kind).removed.Add(1)
}

// Stats 实现 Reporter
func (c *Counters) Stats() Stats {
	return Stats{
		Peers:       c.peers.snapshot(),
		Connections: c.connections.snapshot(),
	}
}
