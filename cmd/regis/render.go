package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/regis/internal/config"
	"github.com/danmuck/regis/internal/protocol/schema"
)

type level string

const (
	levelOK   level = "ok"
	levelWarn level = "WARN"
	levelErr  level = "ERR"
)

func classify(pct, warn, errLevel uint8) level {
	switch {
	case pct >= errLevel:
		return levelErr
	case pct >= warn:
		return levelWarn
	default:
		return levelOK
	}
}

// cpuBusy is the non-idle share of a CPU reading.
func cpuBusy(cpu schema.CPUMetric) uint8 {
	if cpu.Idle.Inner > 100 {
		return 0
	}
	return 100 - cpu.Idle.Inner
}

func memUsed(m schema.MemoryMetric) uint8 {
	total := m.Total.Bytes()
	if total == 0 {
		return 0
	}
	avail := min(m.Available.Bytes(), total)
	return uint8((total - avail) * 100 / total)
}

func renderSnapshot(w io.Writer, snap schema.CollectedMetrics, cfg config.ClientConfig) {
	if snap.Time.IsZero() {
		fmt.Fprintln(w, "snapshot: (no time recorded)")
	} else {
		fmt.Fprintf(w, "snapshot: %s\n", snap.Time.Local().Format("2006-01-02 15:04:05"))
	}
	empty := true
	if snap.CPU != nil {
		empty = false
		busy := cpuBusy(*snap.CPU)
		fmt.Fprintf(w, "  cpu      %3d%% busy  user=%d%% sys=%d%% nice=%d%% waiting=%d steal=%d  [%s]\n",
			busy, snap.CPU.User.Inner, snap.CPU.System.Inner, snap.CPU.Nice.Inner,
			snap.CPU.Waiting, snap.CPU.Steal, classify(busy, cfg.CPUWarn, cfg.CPUErr))
	}
	if snap.Memory != nil {
		for _, m := range snap.Memory.Inner {
			empty = false
			used := memUsed(m)
			fmt.Fprintf(w, "  memory   %-8s %3d%% used  total=%s available=%s  [%s]\n",
				m.Device, used, m.Total, m.Available, classify(used, cfg.MemWarn, cfg.MemErr))
		}
	}
	if snap.Storage != nil {
		for _, s := range snap.Storage.Inner {
			empty = false
			fmt.Fprintf(w, "  storage  %-12s %3d%% used  size=%s available=%s  (%s)\n",
				s.Mount, s.Capacity.Inner, s.Size, s.Available, s.System)
		}
	}
	if snap.Network != nil {
		for _, n := range snap.Network.Inner {
			empty = false
			fmt.Fprintf(w, "  network  %-8s rx ok=%d err=%d drop=%d  tx ok=%d err=%d drop=%d\n",
				n.Name, n.RX.OK, n.RX.Err, n.RX.Drop, n.TX.OK, n.TX.Err, n.TX.Drop)
		}
	}
	if snap.ProcCount != nil {
		empty = false
		fmt.Fprintf(w, "  procs    %d\n", snap.ProcCount.Count)
	}
	if empty {
		fmt.Fprintln(w, "  (no sections collected)")
	}
}

func renderReport(w io.Writer, report schema.MetricsReport, cfg config.ClientConfig) {
	if len(report.Info) == 0 {
		fmt.Fprintln(w, "no snapshots recorded")
		return
	}
	for i, snap := range report.Info {
		if i > 0 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
		renderSnapshot(w, snap, cfg)
	}
}
