package emitter

import (
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/kscan/logger"
	kscanotel "github.com/hugolhafner/kscan/otel"
	"github.com/hugolhafner/kscan/throttle"
)

type Config struct {
	// PollTimeout bounds every poll.
	PollTimeout time.Duration
	// MaxEmptyPolls is the number of consecutive empty polls after which
	// partitions that have not reached their bound are treated as exhausted.
	// Zero disables the check.
	MaxEmptyPolls int
	// EmptyPollBackoff is waited after every empty poll.
	EmptyPollBackoff backoff.Backoff
	// BackwardChunkSize fixes the backward window per partition. Zero derives
	// it from the remaining limit spread across the remaining partitions.
	BackwardChunkSize int64
	// MaxChunkSize caps the derived backward window.
	MaxChunkSize int64
	// LookupTimeout bounds offset and timestamp lookups at scan start.
	LookupTimeout time.Duration

	Throttler throttle.Throttler
	Telemetry *kscanotel.Telemetry
	Logger    logger.Logger
}

type Option func(*Config)

func WithPollTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollTimeout = d
		}
	}
}

func WithMaxEmptyPolls(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxEmptyPolls = n
		}
	}
}

func WithEmptyPollBackoff(b backoff.Backoff) Option {
	return func(c *Config) {
		c.EmptyPollBackoff = b
	}
}

func WithBackwardChunkSize(n int64) Option {
	return func(c *Config) {
		if n >= 0 {
			c.BackwardChunkSize = n
		}
	}
}

func WithMaxChunkSize(n int64) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxChunkSize = n
		}
	}
}

func WithLookupTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.LookupTimeout = d
	}
}

func WithThrottler(t throttle.Throttler) Option {
	return func(c *Config) {
		c.Throttler = t
	}
}

func WithTelemetry(t *kscanotel.Telemetry) Option {
	return func(c *Config) {
		c.Telemetry = t
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func defaultConfig() Config {
	return Config{
		PollTimeout:      time.Second,
		MaxEmptyPolls:    3,
		EmptyPollBackoff: backoff.NewFixed(0),
		MaxChunkSize:     500,
		LookupTimeout:    10 * time.Second,
		Throttler:        throttle.Noop(),
		Telemetry:        kscanotel.Noop(),
		Logger:           logger.NewNoopLogger(),
	}
}

// chunkSize is the backward window for the next round.
func (c Config) chunkSize(remaining, partitions int) int64 {
	if c.BackwardChunkSize > 0 {
		return c.BackwardChunkSize
	}

	n := int64(remaining / partitions)
	if remaining%partitions != 0 {
		n++
	}
	return max(1, min(n, c.MaxChunkSize))
}
