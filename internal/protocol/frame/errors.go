package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrFraming is the parent of every wire-level framing failure.
	ErrFraming = errors.New("frame: framing error")

	ErrShortHeader      = fmt.Errorf("%w: short length header", ErrFraming)
	ErrTruncatedPayload = fmt.Errorf("%w: stream ended before full payload", ErrFraming)
	ErrPayloadTooLarge  = fmt.Errorf("%w: payload too large", ErrFraming)

	// ErrCancelled reports a caller-initiated abort. It never matches ErrFraming.
	ErrCancelled = errors.New("frame: operation cancelled")

	ErrInvalidChunkSize = errors.New("frame: chunk size must be positive")
)

// cancelled wraps the context error so both errors.Is(err, ErrCancelled) and
// errors.Is(err, context.Canceled) hold.
func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
