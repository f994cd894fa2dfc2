package main

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danmuck/regis/internal/daemon"
	"github.com/danmuck/regis/internal/logging"
	"github.com/danmuck/regis/internal/protocol/session"
	"github.com/rs/zerolog"
)

// regisd owns the running listeners and the settings that can change under
// them on reload.
type regisd struct {
	path  string
	flags *serveFlags
	log   zerolog.Logger

	mu      sync.Mutex
	cfg     daemonConfig
	history *daemon.History
	clients *daemon.Server
}

func newRegisd(path string, cfg daemonConfig, flags *serveFlags) *regisd {
	scfg := session.DefaultConfig()
	scfg.ReadTimeout = cfg.IdleTimeout
	scfg.WriteTimeout = cfg.WriteTimeout

	history := daemon.NewHistory(cfg.HistorySize)
	clients := daemon.NewServer("clients", scfg, daemon.HistoryHandler{History: history})
	clients.SetMaxClients(cfg.MaxClients)
	return &regisd{
		path:    path,
		flags:   flags,
		log:     logging.Component("regisd"),
		cfg:     cfg,
		history: history,
		clients: clients,
	}
}

// reload re-reads the config file and applies what can change without
// rebinding listeners.
func (d *regisd) reload() error {
	next, err := loadDaemonConfig(d.path)
	if err != nil {
		return err
	}
	if err := d.flags.apply(&next); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.cfg
	if next.clientsAddr() != prev.clientsAddr() || next.ConsoleSocket != prev.ConsoleSocket || next.AdminAddr != prev.AdminAddr {
		d.log.Warn().Msg("listener addresses changed; restart regisd to apply them")
	}
	next.ListenAddr, next.ClientsPort = prev.ListenAddr, prev.ClientsPort
	next.ConsoleSocket, next.AdminAddr, next.CorsOrigins = prev.ConsoleSocket, prev.AdminAddr, prev.CorsOrigins
	next.IdleTimeout, next.WriteTimeout = prev.IdleTimeout, prev.WriteTimeout

	logging.SetLevel(next.LogLevel)
	d.history.Resize(next.HistorySize)
	d.clients.SetMaxClients(next.MaxClients)
	d.cfg = next
	d.log.Info().
		Str("log_level", next.LogLevel.String()).
		Int("history_size", next.HistorySize).
		Int("max_clients", next.MaxClients).
		Msg("configuration reloaded")
	return nil
}

func (d *regisd) config() daemonConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// run serves until ctx is done or a console Shutdown arrives.
func (d *regisd) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cfg := d.config()

	ln, err := net.Listen("tcp", cfg.clientsAddr())
	if err != nil {
		return err
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				d.log.Error().Str("task", name).Err(err).Msg("task failed; shutting down")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				cancel()
			}
		}()
	}

	spawn("clients", func() error { return d.clients.Serve(ctx, ln) })

	if cfg.ConsoleSocket != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.ConsoleSocket), 0o755); err != nil {
			cancel()
			wg.Wait()
			return err
		}
		cln, err := daemon.ListenConsole(cfg.ConsoleSocket)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		scfg := session.DefaultConfig()
		scfg.ReadTimeout = 0
		console := daemon.NewConsole(scfg, daemon.ConsoleActions{
			Shutdown: cancel,
			Reload:   d.reload,
			Config:   func() any { return d.config().file() },
		})
		spawn("console", func() error {
			defer os.Remove(cfg.ConsoleSocket)
			return console.Serve(ctx, cln)
		})
	}

	if cfg.AdminAddr != "" {
		router := daemon.NewAdminRouter(daemon.AdminState{
			Started: time.Now(),
			History: d.history,
			Clients: d.clients,
		}, cfg.CorsOrigins)
		spawn("admin", func() error { return daemon.ServeAdmin(ctx, cfg.AdminAddr, router) })
	}

	if cfg.Watch {
		watcher := newConfigWatcher(d.path, d.reload)
		spawn("watch", func() error { return watcher.Run(ctx) })
	}

	d.log.Info().
		Str("clients", cfg.clientsAddr()).
		Str("console", cfg.ConsoleSocket).
		Str("admin", cfg.AdminAddr).
		Msg("regisd running")
	<-ctx.Done()
	wg.Wait()
	d.log.Info().Msg("regisd stopped")
	return errors.Join(errs...)
}
