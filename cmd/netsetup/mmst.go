package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	netsetup "github.com/dep2p/go-netsetup"
	"github.com/dep2p/go-netsetup/config"
)

type mmstOptions struct {
	seed       int64
	sampleSize int
	percentFar float64
	maxPeers   int
}

func newMMSTCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &mmstOptions{}

	cmd := &cobra.Command{
		Use:   "mmst <size>",
		Short: "按生成树发现构建拓扑",
		Long: `逐个加入 size 个随机 ID 的节点，每个节点按 XOR 距离连接采样中最近的候选，
并以一定概率额外连接最远的候选。

未指定的参数取配置文件中的 mmst 段。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[0], err)
			}
			topology := fmt.Sprintf("mmst(%d)", size)
			return runBuild(cmd, rootOpts, topology, func(ctx context.Context, s *netsetup.Setup, cfg *config.Config) (*netsetup.Network, error) {
				return s.MMST(ctx, size, opts.apply(cmd, cfg.MMST))
			})
		},
	}

	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "随机种子（0 每次随机）")
	cmd.Flags().IntVar(&opts.sampleSize, "sample-size", 0, "每次查找的采样数")
	cmd.Flags().Float64Var(&opts.percentFar, "percent-far", 0, "额外连接最远候选的概率")
	cmd.Flags().IntVar(&opts.maxPeers, "max-peers", 0, "节点连接数上限")
	return cmd
}

// apply 只覆盖命令行上显式给出的参数
func (o *mmstOptions) apply(cmd *cobra.Command, cfg config.MMSTConfig) config.MMSTConfig {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg = cfg.WithSeed(o.seed)
	}
	if flags.Changed("sample-size") {
		cfg = cfg.WithSampleSize(o.sampleSize)
	}
	if flags.Changed("percent-far") {
		cfg = cfg.WithPercentFar(o.percentFar)
	}
	if flags.Changed("max-peers") {
		cfg = cfg.WithMaxPeers(o.maxPeers)
	}
	return cfg
}
