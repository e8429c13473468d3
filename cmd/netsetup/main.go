// Package main 提供 netsetup 命令行入口
//
// 按生成器、拓扑文件或生成树发现构建内存拓扑，打印拓扑摘要：
//
//	netsetup generate complete 5
//	netsetup generate watts-strogatz 20 4 0.1 --seed 7
//	netsetup load topology.yaml --edges
//	netsetup mmst 50 --seed 42 --format json
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
