package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	netsetup "github.com/dep2p/go-netsetup"
	"github.com/dep2p/go-netsetup/config"
	"github.com/dep2p/go-netsetup/internal/core/introspect"
	"github.com/dep2p/go-netsetup/internal/util/logger"
)

// validFormats 支持的输出格式
var validFormats = []string{"text", "json"}

// rootOptions 全局参数
type rootOptions struct {
	Format     string
	ConfigFile string
	LogLevel   string
	Edges      bool
	Introspect string
	Hold       bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "netsetup",
		Short:         "构建内存 P2P 拓扑",
		Long:          "按生成器、拓扑文件或生成树发现构建内存 P2P 拓扑，并打印节点、连接与度分布摘要。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			logger.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "输出格式 (text|json)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "配置文件路径（JSON/YAML）")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "日志级别，例如 \"graph=debug,info\"")
	cmd.PersistentFlags().BoolVar(&opts.Edges, "edges", false, "输出全部连接")
	cmd.PersistentFlags().StringVar(&opts.Introspect, "introspect", "", "启动自省 HTTP 服务的地址，例如 127.0.0.1:6060")
	cmd.PersistentFlags().BoolVar(&opts.Hold, "hold", false, "输出后保持运行，直到收到中断信号")

	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newLoadCommand(opts))
	cmd.AddCommand(newMMSTCommand(opts))

	return cmd
}

// loadConfig 加载配置文件并应用命令行覆盖
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if o.ConfigFile != "" {
		loaded, err := config.LoadFile(o.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.Introspect != "" {
		cfg.Introspect = config.IntrospectConfig{Enabled: true, Addr: o.Introspect}
	}
	return cfg, cfg.Validate()
}

// buildFunc 在 Setup 上构建一个网络
type buildFunc func(ctx context.Context, setup *netsetup.Setup, cfg *config.Config) (*netsetup.Network, error)

// runBuild 启动 fx 应用，构建网络并输出摘要，结束时关闭全部网络
func runBuild(cmd *cobra.Command, opts *rootOptions, topology string, build buildFunc) (err error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	var (
		setup  *netsetup.Setup
		server *introspect.Server
	)
	app, err := netsetup.NewApp(cfg, netsetup.DefaultFactories(), fx.Populate(&setup, &server))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() {
		err = multierr.Append(err, app.Stop(context.Background()))
	}()

	n, err := build(ctx, setup, cfg)
	if err != nil {
		return fmt.Errorf("构建 %s 失败: %w", topology, err)
	}

	r := newReport(topology, n, opts.Edges)
	if err := writeReport(cmd.OutOrStdout(), opts.Format, r); err != nil {
		return err
	}

	if cfg.Introspect.Enabled {
		fmt.Fprintf(cmd.ErrOrStderr(), "自省服务: http://%s/debug/introspect\n", server.Addr())
	}
	if opts.Hold {
		waitForSignal(ctx)
	}
	return nil
}

// waitForSignal 阻塞直到收到中断信号或 ctx 结束
func waitForSignal(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
