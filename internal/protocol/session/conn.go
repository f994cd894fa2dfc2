package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/regis/internal/logging"
	"github.com/danmuck/regis/internal/protocol/frame"
	"github.com/danmuck/regis/internal/protocol/message"
	"github.com/rs/zerolog"
)

var (
	ErrConnBroken = errors.New("session: connection unusable after failed transfer")
	ErrConnClosed = errors.New("session: connection closed")
)

// Conn is the explicit handle for one daemon connection. One send and one
// receive may run concurrently; two sends (or two receives) are serialised so
// frames never interleave. A transfer that fails part-way leaves the stream
// misaligned, so the Conn refuses further use and must be closed.
type Conn struct {
	conn net.Conn
	cfg  Config
	opts frame.Options
	log  zerolog.Logger

	sendMu     sync.Mutex
	recvMu     sync.Mutex
	exchangeMu sync.Mutex

	broken atomic.Bool
	closed atomic.Bool
}

func NewConn(conn net.Conn, cfg Config) *Conn {
	return &Conn{
		conn: conn,
		cfg:  cfg,
		opts: cfg.FrameOptions(),
		log: logging.Component("session").With().
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Broken reports whether a failed transfer has poisoned the stream.
func (c *Conn) Broken() bool {
	return c.broken.Load()
}

func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// SendBuffer writes one raw frame.
func (c *Conn) SendBuffer(ctx context.Context, payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()
	if err := frame.SendBuffer(ctx, c.conn, payload, c.opts); err != nil {
		c.markBroken("send", err)
		return err
	}
	return nil
}

// ReceiveBuffer reads one raw frame.
func (c *Conn) ReceiveBuffer(ctx context.Context) ([]byte, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()
	payload, err := frame.ReceiveBuffer(ctx, c.conn, c.opts)
	if err != nil {
		c.markBroken("receive", err)
		return nil, err
	}
	return payload, nil
}

// Send encodes v and writes it as one frame. Serialization failures happen
// before any byte is written and leave the Conn usable.
func Send[T any](ctx context.Context, c *Conn, v T) error {
	payload, err := message.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendBuffer(ctx, payload)
}

// Receive reads one frame and decodes it. A payload that fails to decode was
// still consumed whole, so the Conn stays usable.
func Receive[T any](ctx context.Context, c *Conn) (T, error) {
	payload, err := c.ReceiveBuffer(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return message.Unmarshal[T](payload)
}

// Exchange sends req and waits for the matching response. Concurrent
// exchanges on one Conn are serialised so responses pair with their requests.
func Exchange[Req, Resp any](ctx context.Context, c *Conn, req Req) (Resp, error) {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()
	if err := Send(ctx, c, req); err != nil {
		var zero Resp
		return zero, err
	}
	return Receive[Resp](ctx, c)
}

func (c *Conn) usable() error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if c.broken.Load() {
		return ErrConnBroken
	}
	return nil
}

func (c *Conn) markBroken(op string, err error) {
	if c.broken.Swap(true) {
		return
	}
	event := c.log.Warn()
	if errors.Is(err, frame.ErrCancelled) {
		event = c.log.Debug()
	}
	event.Str("op", op).Err(err).Msg("session transfer failed; connection retired")
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
