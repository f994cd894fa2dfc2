package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/regis/internal/address"
	"github.com/danmuck/regis/internal/config"
	"github.com/danmuck/regis/internal/protocol/frame"
	"github.com/danmuck/regis/internal/protocol/message"
	"github.com/danmuck/regis/internal/protocol/schema"
	"github.com/danmuck/regis/internal/protocol/session"
)

// client is one resolved daemon target plus the settings to reach it.
type client struct {
	cfg      config.ClientConfig
	endpoint address.Endpoint
	session  session.Config
	conn     *session.Conn
}

func newClient(cfg config.ClientConfig, host string, timeout time.Duration) (*client, error) {
	if host == "" {
		if len(cfg.Hosts) == 0 {
			return nil, fmt.Errorf("no --host given and no known hosts configured")
		}
		host = cfg.Hosts[0].Name
	}
	ep, err := cfg.Resolve(host)
	if err != nil {
		return nil, err
	}
	scfg := session.DefaultConfig()
	if timeout > 0 {
		scfg.ConnectTimeout = timeout
		scfg.ReadTimeout = timeout
		scfg.WriteTimeout = timeout
	}
	return &client{cfg: cfg, endpoint: ep, session: scfg}, nil
}

func (c *client) connect(ctx context.Context) (*session.Conn, error) {
	if c.conn != nil && !c.conn.Broken() {
		return c.conn, nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	conn, err := session.Dial(ctx, c.endpoint, c.session)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

// request sends req and checks the response kind. A kept connection the
// daemon has since dropped for idleness is redialed once.
func (c *client) request(ctx context.Context, req schema.Request) (schema.Response, error) {
	reused := c.conn != nil && !c.conn.Broken()
	resp, err := c.exchange(ctx, req)
	if err != nil && reused && ctx.Err() == nil && staleConn(err) {
		resp, err = c.exchange(ctx, req)
	}
	if err != nil {
		return schema.Response{}, err
	}
	if resp.Kind() != req.Kind {
		return schema.Response{}, fmt.Errorf("daemon answered %s with %s", req.Kind, resp.Kind())
	}
	return resp, nil
}

func (c *client) exchange(ctx context.Context, req schema.Request) (schema.Response, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return schema.Response{}, err
	}
	return session.Exchange[schema.Request, schema.Response](ctx, conn, req)
}

// staleConn reports a transport failure that happened before any response
// byte arrived. Requests are read-only, so resending is safe.
func staleConn(err error) bool {
	switch {
	case errors.Is(err, frame.ErrCancelled),
		errors.Is(err, message.ErrSerialization),
		errors.Is(err, message.ErrDeserialization):
		return false
	case errors.Is(err, frame.ErrFraming):
		return errors.Is(err, frame.ErrShortHeader)
	default:
		return true
	}
}

func (c *client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
