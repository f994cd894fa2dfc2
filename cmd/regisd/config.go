package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/regis/internal/address"
	"github.com/danmuck/regis/internal/config"
	"github.com/danmuck/regis/internal/daemon"
	"github.com/danmuck/regis/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

type daemonConfig struct {
	ListenAddr    string
	ClientsPort   uint16
	MaxClients    int
	ConsoleSocket string
	AdminAddr     string
	CorsOrigins   []string
	HistorySize   int
	IdleTimeout   time.Duration
	WriteTimeout  time.Duration
	LogLevel      zerolog.Level
	Watch         bool
}

// fileConfig is the on-disk form. The console answers Config(Get) with it as JSON.
type fileConfig struct {
	ListenAddr    string   `toml:"listen_addr" json:"listen_addr"`
	ClientsPort   int      `toml:"clients_port" json:"clients_port"`
	MaxClients    int      `toml:"max_clients" json:"max_clients"`
	ConsoleSocket string   `toml:"console_socket" json:"console_socket"`
	AdminAddr     string   `toml:"admin_addr" json:"admin_addr"`
	CorsOrigins   []string `toml:"cors_origins" json:"cors_origins"`
	HistorySize   int      `toml:"history_size" json:"history_size"`
	IdleTimeout   string   `toml:"idle_timeout" json:"idle_timeout"`
	WriteTimeout  string   `toml:"write_timeout" json:"write_timeout"`
	LogLevel      string   `toml:"log_level" json:"log_level"`
	Watch         bool     `toml:"watch" json:"watch"`
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		ListenAddr:    "0.0.0.0",
		ClientsPort:   address.ClientsPort,
		MaxClients:    6,
		ConsoleSocket: config.DefaultConsoleSocket,
		HistorySize:   daemon.DefaultHistorySize,
		IdleTimeout:   5 * time.Minute,
		WriteTimeout:  15 * time.Second,
		LogLevel:      zerolog.InfoLevel,
		Watch:         true,
	}
}

func (c daemonConfig) file() fileConfig {
	return fileConfig{
		ListenAddr:    c.ListenAddr,
		ClientsPort:   int(c.ClientsPort),
		MaxClients:    c.MaxClients,
		ConsoleSocket: c.ConsoleSocket,
		AdminAddr:     c.AdminAddr,
		CorsOrigins:   c.CorsOrigins,
		HistorySize:   c.HistorySize,
		IdleTimeout:   c.IdleTimeout.String(),
		WriteTimeout:  c.WriteTimeout.String(),
		LogLevel:      c.LogLevel.String(),
		Watch:         c.Watch,
	}
}

func (c daemonConfig) clientsAddr() string {
	return net.JoinHostPort(c.ListenAddr, strconv.Itoa(int(c.ClientsPort)))
}

func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load regisd config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return daemonConfig{}, fmt.Errorf("load regisd config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("clients_port") {
		if raw.ClientsPort <= 0 || raw.ClientsPort > 65535 {
			return daemonConfig{}, fmt.Errorf("clients_port out of range: %d", raw.ClientsPort)
		}
		cfg.ClientsPort = uint16(raw.ClientsPort)
	}
	if meta.IsDefined("max_clients") {
		cfg.MaxClients = raw.MaxClients
	}
	if meta.IsDefined("console_socket") {
		cfg.ConsoleSocket = strings.TrimSpace(raw.ConsoleSocket)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("history_size") {
		if raw.HistorySize <= 0 {
			return daemonConfig{}, fmt.Errorf("history_size must be positive: %d", raw.HistorySize)
		}
		cfg.HistorySize = raw.HistorySize
	}
	if meta.IsDefined("idle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IdleTimeout))
		if err != nil {
			return daemonConfig{}, fmt.Errorf("parse idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return daemonConfig{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.WriteTimeout = d
	}
	if meta.IsDefined("log_level") {
		level, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return daemonConfig{}, fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("watch") {
		cfg.Watch = raw.Watch
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// serveFlags are command-line overrides. Only flags the user actually set win
// over the file, on first load and on every reload.
type serveFlags struct {
	listenAddr    string
	clientsPort   uint16
	maxClients    int
	consoleSocket string
	adminAddr     string
	logLevel      string
	noWatch       bool

	changed map[string]bool
}

func (f *serveFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.listenAddr, "listen", "", "client listener address")
	fs.Uint16Var(&f.clientsPort, "port", address.ClientsPort, "client listener port")
	fs.IntVar(&f.maxClients, "max-clients", 0, "concurrent client cap (0 = unlimited)")
	fs.StringVar(&f.consoleSocket, "console-socket", "", "console unix socket path (empty disables)")
	fs.StringVar(&f.adminAddr, "admin-addr", "", "admin HTTP address (empty disables)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level")
	fs.BoolVar(&f.noWatch, "no-watch", false, "do not reload when the config file changes")
}

// capture records which flags were set; call once after parsing.
func (f *serveFlags) capture(fs *pflag.FlagSet) {
	f.changed = map[string]bool{}
	fs.Visit(func(fl *pflag.Flag) { f.changed[fl.Name] = true })
}

func (f *serveFlags) apply(cfg *daemonConfig) error {
	if f == nil {
		return nil
	}
	if f.changed["listen"] {
		cfg.ListenAddr = strings.TrimSpace(f.listenAddr)
	}
	if f.changed["port"] {
		cfg.ClientsPort = f.clientsPort
	}
	if f.changed["max-clients"] {
		cfg.MaxClients = f.maxClients
	}
	if f.changed["console-socket"] {
		cfg.ConsoleSocket = strings.TrimSpace(f.consoleSocket)
	}
	if f.changed["admin-addr"] {
		cfg.AdminAddr = strings.TrimSpace(f.adminAddr)
	}
	if f.changed["log-level"] {
		level, ok := logging.ParseLevel(f.logLevel)
		if !ok {
			return fmt.Errorf("--log-level: unknown level %q", f.logLevel)
		}
		cfg.LogLevel = level
	}
	if f.changed["no-watch"] {
		cfg.Watch = !f.noWatch
	}
	return nil
}
