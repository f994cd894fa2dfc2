package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/danmuck/regis/internal/config"
	"github.com/danmuck/regis/internal/logging"
	"github.com/danmuck/regis/internal/protocol/schema"
	"github.com/spf13/cobra"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

type globalFlags struct {
	configPath string
	host       string
	timeout    time.Duration
}

func main() {
	logging.ConfigureRuntime()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "regis: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "regis",
		Short:         "Query regis daemons for host metrics",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.configPath != "" {
				return nil
			}
			path, err := config.DefaultClientConfigPath()
			if err != nil {
				return err
			}
			flags.configPath = path
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "client config file (default ~/.local/share/regis/config.toml)")
	pf.StringVarP(&flags.host, "host", "H", "", "known host name or address[:port]")
	pf.DurationVar(&flags.timeout, "timeout", 10*time.Second, "connect and per-message timeout")

	root.AddCommand(
		newStatusCommand(flags),
		newMetricsCommand(flags),
		newShellCommand(flags),
		newHostsCommand(flags),
		newConfigCommand(flags),
	)
	return root
}

func openClient(flags *globalFlags) (*client, error) {
	cfg, err := config.LoadClientConfigOrDefault(flags.configPath)
	if err != nil {
		return nil, err
	}
	return newClient(cfg, flags.host, flags.timeout)
}

func newStatusCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the latest snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(flags)
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.request(cmd.Context(), schema.StatusRequest())
			if err != nil {
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), resp.Status.Info, c.cfg)
			return nil
		},
	}
}

func newMetricsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics N",
		Short: "Show the last N snapshots, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("metrics count must be a non-negative integer: %q", args[0])
			}
			c, err := openClient(flags)
			if err != nil {
				return err
			}
			defer c.Close()
			resp, err := c.request(cmd.Context(), schema.MetricsRequest(n))
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), *resp.Metrics, c.cfg)
			return nil
		},
	}
}

func newShellCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with one daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(flags)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runShell(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), c)
		},
	}
}

func newHostsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "List known hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfigOrDefault(flags.configPath)
			if err != nil {
				return err
			}
			if len(cfg.Hosts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no known hosts")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tADDRESS\tID")
			for _, h := range cfg.Hosts {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Name, h.Addr, h.ID)
			}
			return tw.Flush()
		},
	}
}

func newConfigCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the client config file",
	}
	var overwrite bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter client config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(flags.configPath, "client", overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", flags.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
