package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/danmuck/regis/internal/logging"
	"github.com/danmuck/regis/internal/observability"
	"github.com/danmuck/regis/internal/protocol/frame"
	"github.com/danmuck/regis/internal/protocol/message"
	"github.com/danmuck/regis/internal/protocol/schema"
	"github.com/danmuck/regis/internal/protocol/session"
	"github.com/rs/zerolog"
)

// Server answers framed schema.Request messages on every accepted connection.
type Server struct {
	name    string
	cfg     session.Config
	handler Handler
	log     zerolog.Logger

	clients    atomic.Int64
	maxClients atomic.Int64
	wg         sync.WaitGroup
}

// NewServer builds a server. name labels logs and metrics ("clients" for the
// public listener). cfg.ReadTimeout acts as the idle timeout between requests.
func NewServer(name string, cfg session.Config, handler Handler) *Server {
	return &Server{
		name:    name,
		cfg:     cfg,
		handler: handler,
		log:     logging.Component("daemon").With().Str("listener", name).Logger(),
	}
}

// SetMaxClients caps concurrent connections; n <= 0 removes the cap. Safe to
// call while serving.
func (s *Server) SetMaxClients(n int) {
	s.maxClients.Store(int64(n))
}

func (s *Server) ActiveClients() int64 {
	return s.clients.Load()
}

// Serve accepts until ctx is done or the listener fails, then waits for
// in-flight connections to finish. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("daemon listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if limit := s.maxClients.Load(); limit > 0 && s.clients.Load() >= limit {
			s.log.Info().Str("remote", conn.RemoteAddr().String()).Int64("max_clients", limit).Msg("max clients reached; closing connection")
			observability.RecordFailure(s.name, "accept", "capacity")
			_ = conn.Close()
			continue
		}
		s.clients.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, session.NewConn(conn, s.cfg))
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn *session.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	active := s.clients.Load()
	release := observability.TrackConnection(s.name)
	s.log.Info().Str("remote", remote).Int64("active_clients", active).Msg("client connected")
	defer func() {
		release()
		remaining := s.clients.Add(-1)
		s.log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("client disconnected")
	}()

	for {
		payload, err := conn.ReceiveBuffer(ctx)
		if err != nil {
			switch {
			case cleanClose(err):
			case idleExpired(ctx, err):
				s.log.Debug().Str("remote", remote).Dur("idle_timeout", s.cfg.ReadTimeout).Msg("client idle; closing")
			default:
				s.fail("receive", err).Str("remote", remote).Msg("receive failed")
			}
			return
		}
		observability.RecordFrame(s.name, observability.DirectionRX, len(payload))

		req, err := message.Unmarshal[schema.Request](payload)
		if err != nil {
			// the client waits for an answer the schema cannot express
			s.fail("decode", err).Str("remote", remote).Msg("undecodable request; closing")
			return
		}
		observability.RecordRequest(s.name, string(req.Kind))

		resp, err := s.handler.Handle(ctx, req)
		if err != nil {
			s.fail("handle", err).Str("remote", remote).Str("kind", string(req.Kind)).Msg("handler failed; closing")
			return
		}
		out, err := message.Marshal(resp)
		if err != nil {
			s.fail("encode", err).Str("remote", remote).Msg("response encode failed; closing")
			return
		}
		if err := conn.SendBuffer(ctx, out); err != nil {
			s.fail("send", err).Str("remote", remote).Msg("send failed")
			return
		}
		observability.RecordFrame(s.name, observability.DirectionTX, len(out))
	}
}

func (s *Server) fail(op string, err error) *zerolog.Event {
	class := errorClass(err)
	observability.RecordFailure(s.name, op, class)
	event := s.log.Warn()
	if class == "cancelled" {
		event = s.log.Debug()
	}
	return event.Str("op", op).Str("class", class).Err(err)
}

// cleanClose reports a peer that hung up between frames.
func cleanClose(err error) bool {
	return errors.Is(err, frame.ErrShortHeader) && errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF)
}

// idleExpired reports a client that sent nothing within the read timeout
// while the server itself is still running.
func idleExpired(ctx context.Context, err error) bool {
	return ctx.Err() == nil && errors.Is(err, frame.ErrCancelled) && errors.Is(err, context.DeadlineExceeded)
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, frame.ErrCancelled):
		return "cancelled"
	case errors.Is(err, frame.ErrFraming):
		return "framing"
	case errors.Is(err, message.ErrDeserialization):
		return "deserialization"
	case errors.Is(err, message.ErrSerialization):
		return "serialization"
	default:
		return "io"
	}
}
