package session

import (
	"time"

	"github.com/danmuck/regis/internal/protocol/frame"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines transport/session reliability defaults. Zero timeouts disable
// the corresponding deadline.
type Config struct {
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	ChunkSize          int
	MaxPayload         int
	Backoff            BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		MaxConnectAttempts: 3,
		ChunkSize:          frame.DefaultChunkSize,
		MaxPayload:         16 * 1024 * 1024,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

func (c Config) FrameOptions() frame.Options {
	opts := frame.DefaultOptions()
	if c.ChunkSize > 0 {
		opts.ChunkSize = c.ChunkSize
	}
	if c.MaxPayload > 0 {
		opts.MaxPayload = c.MaxPayload
	}
	return opts
}
