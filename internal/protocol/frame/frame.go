package frame

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	// HeaderLen is the size of the big-endian length prefix.
	HeaderLen = 4

	DefaultChunkSize = 4096

	// MaxPayloadLen is the largest payload the prefix may announce.
	MaxPayloadLen = math.MaxInt32

	// maxEmptyReads bounds consecutive (0, nil) reads before the stream is
	// treated as finished.
	maxEmptyReads = 100

	initialPayloadCap = 64 * 1024
)

// Options tunes chunked transfer and bounds receive-side memory use.
type Options struct {
	ChunkSize  int
	MaxPayload int
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:  DefaultChunkSize,
		MaxPayload: MaxPayloadLen,
	}
}

// WithChunkSize returns a copy of o using n-byte chunks.
func (o Options) WithChunkSize(n int) Options {
	o.ChunkSize = n
	return o
}

func (o Options) validate() (Options, error) {
	if o.ChunkSize <= 0 {
		return o, fmt.Errorf("%w: %d", ErrInvalidChunkSize, o.ChunkSize)
	}
	if o.MaxPayload <= 0 || o.MaxPayload > MaxPayloadLen {
		o.MaxPayload = MaxPayloadLen
	}
	return o, nil
}

// SendBuffer writes payload as one frame: the 4-byte big-endian length followed
// by the payload in writes of at most opts.ChunkSize bytes.
func SendBuffer(ctx context.Context, w io.Writer, payload []byte, opts Options) error {
	opts, err := opts.validate()
	if err != nil {
		return err
	}
	if len(payload) > opts.MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	stop := interruptOnCancel(ctx, w, func(d deadliner) error {
		return d.SetWriteDeadline(expired)
	})
	return settle(ctx, stop, send(ctx, w, payload, opts))
}

func send(ctx context.Context, w io.Writer, payload []byte, opts Options) error {
	var header [HeaderLen]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if err := writeChunked(ctx, w, header[:], HeaderLen); err != nil {
		return err
	}
	return writeChunked(ctx, w, payload, opts.ChunkSize)
}

// ReceiveBuffer reads one frame. A stream that ends inside the header yields
// ErrShortHeader. A stream that ends inside the payload yields the bytes read
// so far together with ErrTruncatedPayload.
func ReceiveBuffer(ctx context.Context, r io.Reader, opts Options) ([]byte, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	stop := interruptOnCancel(ctx, r, func(d deadliner) error {
		return d.SetReadDeadline(expired)
	})
	payload, err := receive(ctx, r, opts)
	if err = settle(ctx, stop, err); errors.Is(err, ErrCancelled) {
		return nil, err
	}
	return payload, err
}

func receive(ctx context.Context, r io.Reader, opts Options) ([]byte, error) {
	var header [HeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrShortHeader, err)
		}
		return nil, fmt.Errorf("frame: read header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if uint64(size) > uint64(opts.MaxPayload) {
		return nil, fmt.Errorf("%w: header announces %d bytes", ErrPayloadTooLarge, size)
	}
	expected := int(size)

	payload := make([]byte, 0, min(expected, initialPayloadCap))
	if expected == 0 {
		return payload, nil
	}
	scratch := make([]byte, min(opts.ChunkSize, expected))
	empty := 0
	for len(payload) < expected {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		want := min(len(scratch), expected-len(payload))
		n, err := r.Read(scratch[:want])
		// only the n bytes this call produced; scratch may hold older data past n
		payload = append(payload, scratch[:n]...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return payload, fmt.Errorf("frame: read payload: %w", err)
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				break
			}
			continue
		}
		empty = 0
	}
	if len(payload) < expected {
		return payload, fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedPayload, len(payload), expected)
	}
	return payload, nil
}

// Encode returns the complete wire form of payload.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	out := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(out[:HeaderLen], uint32(len(payload)))
	copy(out[HeaderLen:], payload)
	return out, nil
}

func writeChunked(ctx context.Context, w io.Writer, buf []byte, chunk int) error {
	for off := 0; off < len(buf); {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		end := min(off+chunk, len(buf))
		n, err := w.Write(buf[off:end])
		off += n
		if err != nil {
			if ctx.Err() != nil {
				return cancelled(ctx.Err())
			}
			return fmt.Errorf("frame: write: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("frame: write: %w", io.ErrShortWrite)
		}
	}
	return nil
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

var expired = time.Unix(1, 0)

// settle disarms the cancel hook. A hook that already fired has left an
// expired deadline on the stream, so the transfer reports cancellation even
// when the last byte made it.
func settle(ctx context.Context, stop func() bool, err error) error {
	if !stop() && err == nil {
		return cancelled(ctx.Err())
	}
	return err
}

// interruptOnCancel unblocks pending I/O on streams with deadlines once ctx
// is done. The stream is unusable afterwards.
func interruptOnCancel(ctx context.Context, stream any, set func(deadliner) error) (stop func() bool) {
	d, ok := stream.(deadliner)
	if !ok || ctx.Done() == nil {
		return func() bool { return true }
	}
	return context.AfterFunc(ctx, func() {
		_ = set(d)
	})
}
