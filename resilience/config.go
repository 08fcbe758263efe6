package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

// Default configuration values.
const (
	DefaultMaxRetries        = 3
	DefaultBaseDelay         = time.Second
	DefaultMaxDelay          = 10 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultJitter            = 0.25
	DefaultSampleSize        = 100
)

// Config controls retry behavior of Executor.
type Config struct {
	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker

	// MaxRetries is a number of attempts after the first one, default 3, -1 disables retries.
	MaxRetries int

	// BaseDelay is a delay before the first retry, default 1s.
	BaseDelay time.Duration

	// MaxDelay limits delay between attempts, default 10s.
	MaxDelay time.Duration

	// BackoffMultiplier grows delay with every attempt, default 2.
	BackoffMultiplier float64

	// Jitter is a fraction of delay to randomize in both directions, default 0.25, -1 disables.
	Jitter float64

	// Retryable is a list of categories to retry, default is DefaultRetryable().
	// CategoryNotGitRepository and CategoryAccessDenied are never retried.
	Retryable []Category

	// SampleSize is a number of recent durations kept per operation for percentiles, default 100.
	SampleSize int

	// Sleep overrides waiting between attempts, it must return ctx.Err() if ctx is done first.
	Sleep func(ctx context.Context, d time.Duration) error

	// Rand overrides random source of jitter, it must return a value in [0, 1).
	Rand func() float64
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		Jitter:            DefaultJitter,
		Retryable:         DefaultRetryable(),
		SampleSize:        DefaultSampleSize,
	}
}

func (cfg Config) withDefaults() Config {
	d := DefaultConfig()

	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = d.MaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}

	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = d.BaseDelay
	}

	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = d.MaxDelay
	}

	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = d.BackoffMultiplier
	}

	switch {
	case cfg.Jitter == 0:
		cfg.Jitter = d.Jitter
	case cfg.Jitter < 0:
		cfg.Jitter = 0
	}

	if cfg.Retryable == nil {
		cfg.Retryable = d.Retryable
	}

	if cfg.SampleSize <= 0 {
		cfg.SampleSize = d.SampleSize
	}

	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}

	if cfg.Rand == nil {
		cfg.Rand = rand.Float64 // nolint:gosec // Jitter does not need crypto random.
	}

	if cfg.Logger == nil {
		cfg.Logger = ctxd.NoOpLogger{}
	}

	if cfg.Stats == nil {
		cfg.Stats = stats.NoOp{}
	}

	return cfg
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
