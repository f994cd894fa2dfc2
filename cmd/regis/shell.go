package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/regis/internal/protocol/schema"
)

type shellKind int

const (
	shellQuit shellKind = iota
	shellStatus
	shellMetrics
	shellHelp
)

type shellCommand struct {
	kind  shellKind
	count int
}

var errUnknownCommand = errors.New("unknown command")

func parseShellCommand(line string) (shellCommand, error) {
	lower := strings.ToLower(strings.TrimSpace(line))
	switch lower {
	case "quit", "exit", "close":
		return shellCommand{kind: shellQuit}, nil
	case "status":
		return shellCommand{kind: shellStatus}, nil
	case "h", "help":
		return shellCommand{kind: shellHelp}, nil
	}
	if rest, ok := strings.CutPrefix(lower, "metrics"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || n < 0 {
			return shellCommand{}, fmt.Errorf("%q could not be parsed as a count", strings.TrimSpace(rest))
		}
		return shellCommand{kind: shellMetrics, count: n}, nil
	}
	return shellCommand{}, fmt.Errorf("%w: %q", errUnknownCommand, lower)
}

const shellHelpText = `commands:
  status       latest snapshot
  metrics N    last N snapshots
  help         this text
  quit         leave the shell
`

// runShell reads commands until quit or end of input. A failed request is
// reported and the shell keeps going with a fresh connection.
func runShell(ctx context.Context, in io.Reader, out io.Writer, c *client) error {
	fmt.Fprintf(out, "connected to %s; type help for commands\n", c.endpoint)
	lines := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !lines.Scan() {
			fmt.Fprintln(out)
			return lines.Err()
		}
		if strings.TrimSpace(lines.Text()) == "" {
			continue
		}
		cmd, err := parseShellCommand(lines.Text())
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		switch cmd.kind {
		case shellQuit:
			return nil
		case shellHelp:
			fmt.Fprint(out, shellHelpText)
		case shellStatus:
			resp, err := c.request(ctx, schema.StatusRequest())
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			renderSnapshot(out, resp.Status.Info, c.cfg)
		case shellMetrics:
			resp, err := c.request(ctx, schema.MetricsRequest(cmd.count))
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			renderReport(out, *resp.Metrics, c.cfg)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
