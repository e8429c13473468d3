package metrics

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// TopologySnapshot 拓扑快照
type TopologySnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// 节点统计
	TotalPeers int `json:"totalPeers"`

	// 连接统计
	TotalConnections int `json:"totalConnections"`

	// ConnPerPeer 节点 ID -> 关联连接数
	ConnPerPeer map[string]int `json:"connPerPeer"`

	// PeerStates 生命周期状态 -> 节点数
	PeerStates map[string]int `json:"peerStates"`

	// 度分布
	MinDegree int     `json:"minDegree"`
	MaxDegree int     `json:"maxDegree"`
	AvgDegree float64 `json:"avgDegree"`
}

// PeerDegree 单个节点的度与状态
type PeerDegree struct {
	ID     any
	Degree int
	State  string
}

// NewTopologySnapshot 由节点度列表和连接数构造快照
func NewTopologySnapshot(peers []PeerDegree, connections int) TopologySnapshot {
	s := TopologySnapshot{
		Timestamp:        time.Now(),
		TotalPeers:       len(peers),
		TotalConnections: connections,
		ConnPerPeer:      make(map[string]int, len(peers)),
		PeerStates:       make(map[string]int),
	}
	if len(peers) == 0 {
		return s
	}

	s.MinDegree = peers[0].Degree
	total := 0
	for _, p := range peers {
		s.ConnPerPeer[fmt.Sprint(p.ID)] = p.Degree
		if p.State != "" {
			s.PeerStates[p.State]++
		}
		total += p.Degree
		s.MinDegree = min(s.MinDegree, p.Degree)
		s.MaxDegree = max(s.MaxDegree, p.Degree)
	}
	s.AvgDegree = float64(total) / float64(len(peers))
	return s
}

// DegreeHistogram 返回 度 -> 节点数，按度升序的键
func (s TopologySnapshot) DegreeHistogram() ([]int, map[int]int) {
	hist := make(map[int]int)
	for _, d := range s.ConnPerPeer {
		hist[d]++
	}
	keys := make([]int, 0, len(hist))
	for d := range hist {
		keys = append(keys, d)
	}
	sort.Ints(keys)
	return keys, hist
}

// LogSnapshot 输出拓扑快照日志
func LogSnapshot(l *slog.Logger, s TopologySnapshot) {
	l.Info("拓扑快照",
		"peers", s.TotalPeers,
		"connections", s.TotalConnections,
		"minDegree", s.MinDegree,
		"maxDegree", s.MaxDegree,
		"avgDegree", fmt.Sprintf("%.2f", s.AvgDegree),
	)
}
