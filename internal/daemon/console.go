package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/danmuck/regis/internal/logging"
	"github.com/danmuck/regis/internal/protocol/message"
	"github.com/danmuck/regis/internal/protocol/schema"
	"github.com/danmuck/regis/internal/protocol/session"
	"github.com/rs/zerolog"
)

// ConsoleActions are the daemon hooks a console request can trigger. Nil
// hooks turn the matching request into a plain acknowledgement.
type ConsoleActions struct {
	Shutdown func()
	Reload   func() error
	// Config returns the value sent back for Config(Get). Nil answers null.
	Config func() any
}

// Console serves operator requests on a local socket.
type Console struct {
	cfg     session.Config
	actions ConsoleActions
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewConsole(cfg session.Config, actions ConsoleActions) *Console {
	return &Console{
		cfg:     cfg,
		actions: actions,
		log:     logging.Component("console"),
	}
}

// ListenConsole opens the console unix socket, replacing a stale socket file.
func ListenConsole(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", path)
}

func (c *Console) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	c.log.Info().Str("addr", ln.Addr().String()).Msg("console listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer c.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleConn(ctx, session.NewConn(conn, c.cfg))
		}()
	}
}

func (c *Console) handleConn(ctx context.Context, conn *session.Conn) {
	defer conn.Close()
	for {
		req, err := session.Receive[schema.ConsoleRequest](ctx, conn)
		if err != nil {
			if !cleanClose(err) {
				c.log.Warn().Err(err).Msg("console receive failed")
			}
			return
		}
		c.log.Info().Str("request", string(req.Kind)).Msg("console request")
		switch req.Kind {
		case schema.ConsoleShutdown:
			// ack first; the hook cancels ctx
			if err := session.Send[*consoleAck](ctx, conn, nil); err != nil {
				c.log.Warn().Err(err).Msg("console shutdown ack failed")
			}
			if c.actions.Shutdown != nil {
				c.actions.Shutdown()
			}
			return
		case schema.ConsoleConfigGet:
			if err := session.Send(ctx, conn, c.currentConfig()); err != nil {
				c.log.Warn().Err(err).Msg("console config reply failed")
				return
			}
			continue
		}
		c.dispatch(req)
		if err := session.Send[*consoleAck](ctx, conn, nil); err != nil {
			c.log.Warn().Err(err).Msg("console ack failed")
			return
		}
	}
}

func (c *Console) dispatch(req schema.ConsoleRequest) {
	if req.Kind != schema.ConsoleConfigReload || c.actions.Reload == nil {
		return
	}
	if err := c.actions.Reload(); err != nil {
		c.log.Error().Err(err).Msg("config reload failed")
	}
}

func (c *Console) currentConfig() any {
	if c.actions.Config == nil {
		return nil
	}
	return c.actions.Config()
}

// consoleAck is never populated; the ack travels as JSON null.
type consoleAck struct{}

// SendConsole sends one console request and waits for the acknowledgement.
func SendConsole(ctx context.Context, conn *session.Conn, req schema.ConsoleRequest) error {
	ack, err := session.Exchange[schema.ConsoleRequest, *consoleAck](ctx, conn, req)
	if err != nil {
		return err
	}
	if ack != nil {
		return fmt.Errorf("%w: console ack must be null", message.ErrDeserialization)
	}
	return nil
}

// GetConsoleConfig asks the daemon for its configuration. A daemon without a
// config hook answers null, returned as a nil document.
func GetConsoleConfig(ctx context.Context, conn *session.Conn) (json.RawMessage, error) {
	return session.Exchange[schema.ConsoleRequest, json.RawMessage](ctx, conn, schema.ConsoleRequest{Kind: schema.ConsoleConfigGet})
}
