package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	netsetup "github.com/dep2p/go-netsetup"
)

// report 拓扑摘要
type report struct {
	Topology    string  `json:"topology"`
	Peers       int     `json:"peers"`
	Connections int     `json:"connections"`
	MinDegree   int     `json:"min_degree"`
	MaxDegree   int     `json:"max_degree"`
	AvgDegree   float64 `json:"avg_degree"`
	Edges       []edge  `json:"edges,omitempty"`
}

type edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func newReport(topology string, n *netsetup.Network, withEdges bool) report {
	snap := n.Snapshot()
	r := report{
		Topology:    topology,
		Peers:       snap.TotalPeers,
		Connections: snap.TotalConnections,
		MinDegree:   snap.MinDegree,
		MaxDegree:   snap.MaxDegree,
		AvgDegree:   snap.AvgDegree,
	}
	if !withEdges {
		return r
	}

	// 连接并发加入，按端点排序保证输出稳定
	for _, c := range n.Connections() {
		r.Edges = append(r.Edges, edge{From: fmt.Sprint(c.FromID()), To: fmt.Sprint(c.ToID())})
	}
	slices.SortFunc(r.Edges, func(a, b edge) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
	return r
}

func writeReport(w io.Writer, format string, r report) error {
	if format == "json" {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "topology:    %s\n", r.Topology)
	fmt.Fprintf(w, "peers:       %d\n", r.Peers)
	fmt.Fprintf(w, "connections: %d\n", r.Connections)
	fmt.Fprintf(w, "degree:      min=%d max=%d avg=%.2f\n", r.MinDegree, r.MaxDegree, r.AvgDegree)
	if len(r.Edges) > 0 {
		fmt.Fprintln(w, "edges:")
		for _, e := range r.Edges {
			fmt.Fprintf(w, "  %s -> %s\n", e.From, e.To)
		}
	}
	return nil
}
