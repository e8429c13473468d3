package generator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// ════════════════════════════════════════════════════════════════════════════
//                              拓扑文件
// ════════════════════════════════════════════════════════════════════════════
//
// YAML:
//
//	peers:
//	  - id: a
//	    labels: {region: eu}
//	  - id: b
//	connections:
//	  - from: a
//	    to: b
//
// HCL:
//
//	peer "a" {
//	  labels = { region = "eu" }
//	}
//	peer "b" {}
//	connection {
//	  from = "a"
//	  to   = "b"
//	}
//
// 节点 ID 为字符串，labels 作为业务数据（map[string]string），缺省为 nil。

type yamlFile struct {
	Peers       []yamlPeer       `yaml:"peers"`
	Connections []yamlConnection `yaml:"connections"`
}

type yamlPeer struct {
	ID     string            `yaml:"id"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

type yamlConnection struct {
	From   string            `yaml:"from"`
	To     string            `yaml:"to"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

type hclFile struct {
	Peers       []*hclPeer       `hcl:"peer,block"`
	Connections []*hclConnection `hcl:"connection,block"`
}

type hclPeer struct {
	ID     string            `hcl:"id,label"`
	Labels map[string]string `hcl:"labels,optional"`
}

type hclConnection struct {
	From   string            `hcl:"from"`
	To     string            `hcl:"to"`
	Labels map[string]string `hcl:"labels,optional"`
}

// LoadFile 按扩展名读取 .yaml/.yml 或 .hcl 拓扑文件
func LoadFile(path string) (Graph, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Graph{}, fmt.Errorf("failed to read topology file: %w", err)
		}
		return ParseYAML(data)
	case ".hcl":
		return loadHCL(path)
	default:
		return Graph{}, invalid("unsupported topology file %q", path)
	}
}

// ParseYAML 解析 YAML 拓扑，拒绝未知字段
func ParseYAML(data []byte) (Graph, error) {
	var f yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Graph{}, fmt.Errorf("failed to parse YAML topology: %w", err)
	}

	peers := make([]NodeSpec, 0, len(f.Peers))
	for _, p := range f.Peers {
		peers = append(peers, NodeSpec{ID: p.ID, Payload: labels(p.Labels)})
	}
	links := make([]LinkSpec, 0, len(f.Connections))
	for _, c := range f.Connections {
		links = append(links, LinkSpec{From: c.From, To: c.To, Payload: labels(c.Labels)})
	}
	return validate(peers, links)
}

func loadHCL(path string) (Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return Graph{}, fmt.Errorf("failed to parse HCL topology %s: %w", path, diags)
	}

	var f hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return Graph{}, fmt.Errorf("failed to decode HCL topology %s: %w", path, diags)
	}

	peers := make([]NodeSpec, 0, len(f.Peers))
	for _, p := range f.Peers {
		peers = append(peers, NodeSpec{ID: p.ID, Payload: labels(p.Labels)})
	}
	links := make([]LinkSpec, 0, len(f.Connections))
	for _, c := range f.Connections {
		links = append(links, LinkSpec{From: c.From, To: c.To, Payload: labels(c.Labels)})
	}
	return validate(peers, links)
}

// validate 检查 ID 非空、不重复，连边端点均已声明
func validate(peers []NodeSpec, links []LinkSpec) (Graph, error) {
	seen := make(map[any]struct{}, len(peers))
	for _, p := range peers {
		if p.ID == "" {
			return Graph{}, invalid("peer with empty id")
		}
		if _, dup := seen[p.ID]; dup {
			return Graph{}, invalid("duplicate peer %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	for _, l := range links {
		for _, end := range []any{l.From, l.To} {
			if _, ok := seen[end]; !ok {
				return Graph{}, invalid("connection %v->%v references unknown peer %q", l.From, l.To, end)
			}
		}
	}
	return Graph{Nodes: peers, Links: links}, nil
}

func labels(m map[string]string) any {
	if len(m) == 0 {
		return nil
	}
	return m
}
