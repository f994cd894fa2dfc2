package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/danmuck/regis/internal/config"
	"github.com/danmuck/regis/internal/daemon"
	"github.com/danmuck/regis/internal/logging"
	"github.com/danmuck/regis/internal/protocol/schema"
	"github.com/danmuck/regis/internal/protocol/session"
	"github.com/spf13/cobra"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	logging.ConfigureRuntime()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "regisd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "regisd",
		Short:         "Serve host metrics to regis clients",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newConfigCommand(), newConsoleCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var cfgPath string
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.capture(cmd.Flags())
			cfg, err := loadDaemonConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := flags.apply(&cfg); err != nil {
				return err
			}
			logging.SetLevel(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return newRegisd(cfgPath, cfg, flags).run(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultDaemonConfigPath, "daemon config file")
	flags.register(cmd.Flags())
	return cmd
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the daemon config file",
	}
	var overwrite bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter daemon config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultDaemonConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path, "daemon", overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func newConsoleCommand() *cobra.Command {
	var socket string
	cmd := &cobra.Command{
		Use:       "console shutdown|poll|reload|config",
		Short:     "Send an operator request to a running daemon",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"shutdown", "poll", "reload", "config"},
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseConsoleRequest(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			conn, err := session.DialConsole(ctx, socket, session.DefaultConfig())
			if err != nil {
				return err
			}
			defer conn.Close()
			if req.Kind == schema.ConsoleConfigGet {
				return printConsoleConfig(ctx, cmd.OutOrStdout(), conn)
			}
			if err := daemon.SendConsole(ctx, conn, req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s acknowledged\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&socket, "socket", config.DefaultConsoleSocket, "daemon console socket")
	return cmd
}

func parseConsoleRequest(raw string) (schema.ConsoleRequest, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "shutdown", "stop":
		return schema.ConsoleRequest{Kind: schema.ConsoleShutdown}, nil
	case "poll":
		return schema.ConsoleRequest{Kind: schema.ConsolePoll}, nil
	case "reload":
		return schema.ConsoleRequest{Kind: schema.ConsoleConfigReload}, nil
	case "config":
		return schema.ConsoleRequest{Kind: schema.ConsoleConfigGet}, nil
	default:
		return schema.ConsoleRequest{}, fmt.Errorf("unknown console request %q", raw)
	}
}

func printConsoleConfig(ctx context.Context, out io.Writer, conn *session.Conn) error {
	raw, err := daemon.GetConsoleConfig(ctx, conn)
	if err != nil {
		return err
	}
	if raw == nil {
		fmt.Fprintln(out, "daemon reported no configuration")
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}
