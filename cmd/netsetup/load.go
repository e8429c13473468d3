package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	netsetup "github.com/dep2p/go-netsetup"
	"github.com/dep2p/go-netsetup/config"
)

func newLoadCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "从拓扑文件构建",
		Long: `从 YAML 或 HCL 拓扑文件构建拓扑。

YAML:

  peers:
    - id: a
      labels: {region: eu}
    - id: b
  connections:
    - {from: a, to: b}

HCL:

  peer "a" {
    labels = { region = "eu" }
  }
  peer "b" {}
  connection {
    from = "a"
    to   = "b"
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			return runBuild(cmd, rootOpts, filepath.Base(path), func(ctx context.Context, s *netsetup.Setup, _ *config.Config) (*netsetup.Network, error) {
				return s.FromFile(ctx, path)
			})
		},
	}
}
