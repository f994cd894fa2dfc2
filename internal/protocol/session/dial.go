package session

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/danmuck/regis/internal/address"
	"github.com/danmuck/regis/internal/logging"
	"github.com/danmuck/regis/internal/protocol/frame"
)

// Dial connects to a daemon endpoint, retrying with backoff up to
// cfg.MaxConnectAttempts times.
func Dial(ctx context.Context, ep address.Endpoint, cfg Config) (*Conn, error) {
	return dialRetry(ctx, "tcp", ep.String(), cfg)
}

// DialConsole connects to the daemon's local console socket.
func DialConsole(ctx context.Context, path string, cfg Config) (*Conn, error) {
	return dialRetry(ctx, "unix", path, cfg)
}

func dialRetry(ctx context.Context, network, target string, cfg Config) (*Conn, error) {
	log := logging.Component("session")
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	attempts := max(cfg.MaxConnectAttempts, 1)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dialer.DialContext(ctx, network, target)
		if err == nil {
			log.Debug().Str("target", target).Int("attempt", attempt).Msg("session connected")
			return NewConn(conn, cfg), nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", frame.ErrCancelled, ctx.Err())
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Warn().
			Str("target", target).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Err(err).
			Msg("session connect failed")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", frame.ErrCancelled, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("session: dial %s %s after %d attempts: %w", network, target, attempts, lastErr)
}
