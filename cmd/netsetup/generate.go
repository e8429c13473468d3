package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	netsetup "github.com/dep2p/go-netsetup"
	"github.com/dep2p/go-netsetup/config"
)

// shape 一种生成器及其整数参数
type shape struct {
	params []string
	build  func(ctx context.Context, s *netsetup.Setup, args []int) (*netsetup.Network, error)
}

var shapes = map[string]shape{
	"ladder": {[]string{"steps"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.Ladder(ctx, a[0])
	}},
	"circular-ladder": {[]string{"steps"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.CircularLadder(ctx, a[0])
	}},
	"complete": {[]string{"n"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.Complete(ctx, a[0])
	}},
	"complete-bipartite": {[]string{"n", "m"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.CompleteBipartite(ctx, a[0], a[1])
	}},
	"path": {[]string{"n"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.Path(ctx, a[0])
	}},
	"grid": {[]string{"n", "m"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.Grid(ctx, a[0], a[1])
	}},
	"grid3": {[]string{"n", "m", "z"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.Grid3(ctx, a[0], a[1], a[2])
	}},
	"bin-tree": {[]string{"depth"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.BalancedBinTree(ctx, a[0])
	}},
	"no-links": {[]string{"n"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.NoLinks(ctx, a[0])
	}},
	"clique-circle": {[]string{"cliques", "size"}, func(ctx context.Context, s *netsetup.Setup, a []int) (*netsetup.Network, error) {
		return s.CliqueCircle(ctx, a[0], a[1])
	}},
}

func shapeNames() []string {
	names := make([]string, 0, len(shapes)+1)
	for name := range shapes {
		names = append(names, name)
	}
	names = append(names, "watts-strogatz")
	slices.Sort(names)
	return names
}

func newGenerateCommand(rootOpts *rootOptions) *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "generate <shape> <args...>",
		Short: "按生成器构建拓扑",
		Long: fmt.Sprintf(`按生成器构建拓扑。

可用的形状: %s

watts-strogatz 接受 <n> <k> <p>，随机性由 --seed 决定。`, strings.Join(shapeNames(), ", ")),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, params := args[0], args[1:]
			if name == "watts-strogatz" {
				return runWattsStrogatz(cmd, rootOpts, params, seed)
			}

			sh, ok := shapes[name]
			if !ok {
				return fmt.Errorf("unknown shape %q: must be one of %v", name, shapeNames())
			}
			if len(params) != len(sh.params) {
				return fmt.Errorf("%s expects %d argument(s): %s", name, len(sh.params), strings.Join(sh.params, " "))
			}
			ints, err := parseInts(params)
			if err != nil {
				return err
			}

			topology := fmt.Sprintf("%s(%s)", name, strings.Join(params, ","))
			return runBuild(cmd, rootOpts, topology, func(ctx context.Context, s *netsetup.Setup, _ *config.Config) (*netsetup.Network, error) {
				return sh.build(ctx, s, ints)
			})
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 0, "watts-strogatz 随机种子（0 使用默认种子）")
	return cmd
}

func runWattsStrogatz(cmd *cobra.Command, rootOpts *rootOptions, params []string, seed uint64) error {
	if len(params) != 3 {
		return fmt.Errorf("watts-strogatz expects 3 argument(s): n k p")
	}
	ints, err := parseInts(params[:2])
	if err != nil {
		return err
	}
	p, err := strconv.ParseFloat(params[2], 64)
	if err != nil {
		return fmt.Errorf("invalid probability %q: %w", params[2], err)
	}

	topology := fmt.Sprintf("watts-strogatz(%s)", strings.Join(params, ","))
	return runBuild(cmd, rootOpts, topology, func(ctx context.Context, s *netsetup.Setup, _ *config.Config) (*netsetup.Network, error) {
		return s.WattsStrogatz(ctx, ints[0], ints[1], p, seed)
	})
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}
