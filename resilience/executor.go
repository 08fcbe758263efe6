// Package resilience provides retried execution of fallible operations with error classification.
package resilience

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"
)

// Metric names reported to stats.Tracker.
const (
	MetricAttempt = "retry_attempt"
	MetricRetry   = "retry_scheduled"
	MetricSuccess = "retry_success"
	MetricFailure = "retry_failure"
)

// Result is an outcome of ExecuteWithRetry.
type Result[T any] struct {
	Success bool
	Value   T

	// OperationID identifies a single ExecuteWithRetry call in logs and events.
	OperationID string

	Attempts int
	Retries  int
	Duration time.Duration

	// Category is a classification of the last error, empty on success.
	Category Category

	// Cancelled is true if context was done before attempts were exhausted.
	Cancelled bool

	// Err is a *Failure, nil on success.
	Err error
}

// Failure describes a failed operation after all attempts.
type Failure struct {
	Operation string
	Category  Category
	Attempts  int

	cause error
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s) (%s): %v", f.Operation, f.Attempts, f.Category, f.cause)
}

// Unwrap returns last error of operation.
func (f *Failure) Unwrap() error {
	return f.cause
}

// Executor runs operations with retries and collects metrics.
//
// Please use NewExecutor to create an instance, it is safe for concurrent use.
type Executor struct {
	mu        sync.Mutex
	config    Config
	retryable map[Category]bool

	metrics OperationMetrics
	errors  map[Category]*errorFrequency
	ops     *xsync.Map

	bus eventBus
}

// NewExecutor creates an executor.
func NewExecutor(cfg Config) *Executor {
	e := &Executor{}
	e.ConfigureRetryBehavior(cfg)

	return e
}

// ConfigureRetryBehavior replaces retry configuration and resets metrics.
func (e *Executor) ConfigureRetryBehavior(cfg Config) {
	cfg = cfg.withDefaults()

	retryable := make(map[Category]bool, len(cfg.Retryable))

	for _, c := range cfg.Retryable {
		if !neverRetried[c] {
			retryable[c] = true
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.config = cfg
	e.retryable = retryable
	e.metrics = OperationMetrics{}
	e.errors = make(map[Category]*errorFrequency)
	e.ops = xsync.NewMap()
}

// Config returns effective configuration.
func (e *Executor) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.config
}

// Retryable checks if category is retried.
func (e *Executor) Retryable(c Category) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.retryable[c]
}

// Delay returns a randomized delay before a retry, attempt starts with 0 for the first retry.
func (e *Executor) Delay(attempt int) time.Duration {
	cfg := e.Config()

	d := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt))

	if cfg.Jitter > 0 {
		d *= 1 + cfg.Jitter*(2*cfg.Rand()-1)
	}

	if d > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}

	return time.Duration(d)
}

// Subscribe adds event listener and returns a function to remove it.
func (e *Executor) Subscribe(l Listener) (unsubscribe func()) {
	return e.bus.Subscribe(l)
}

// ExecuteWithRetry runs operation until it succeeds, fails with a non-retryable error,
// exhausts attempts or ctx is done.
//
// Failures are returned in Result, metrics are updated on every call.
func ExecuteWithRetry[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) Result[T] {
	cfg := e.Config()
	res := Result[T]{OperationID: uuid.NewString()}
	start := time.Now()

	var lastErr error

	for {
		if err := ctx.Err(); err != nil {
			res.Cancelled = true

			if lastErr == nil {
				lastErr = err
				res.Category = Classify(err)
			}

			break
		}

		cfg.Stats.Add(ctx, MetricAttempt, 1, "operation", name)

		v, err := op(ctx)
		res.Attempts++

		if err == nil {
			res.Success = true
			res.Value = v
			res.Category = CategoryNone

			break
		}

		lastErr = err
		res.Category = Classify(err)
		e.recordError(res.Category, name)

		if res.Attempts > cfg.MaxRetries || !e.Retryable(res.Category) {
			break
		}

		delay := e.Delay(res.Retries)
		res.Retries++

		cfg.Logger.Warn(ctx, "retrying operation",
			"operation", name,
			"operationID", res.OperationID,
			"attempt", res.Attempts,
			"delay", delay.String(),
			"category", res.Category,
			"error", err,
		)
		cfg.Stats.Add(ctx, MetricRetry, 1, "operation", name, "category", string(res.Category))
		e.bus.publish(Event{
			Type:        EventRetry,
			Operation:   name,
			OperationID: res.OperationID,
			Attempt:     res.Attempts,
			Delay:       delay,
			Category:    res.Category,
			Err:         err,
			Timestamp:   time.Now(),
		})

		if err := cfg.Sleep(ctx, delay); err != nil {
			res.Cancelled = true

			break
		}
	}

	res.Duration = time.Since(start)
	e.record(name, res.Success, res.Retries, res.Duration)

	if res.Success {
		cfg.Logger.Debug(ctx, "operation succeeded",
			"operation", name,
			"operationID", res.OperationID,
			"attempts", res.Attempts,
			"elapsed", res.Duration.String(),
		)
		cfg.Stats.Add(ctx, MetricSuccess, 1, "operation", name)
		e.bus.publish(Event{
			Type: EventSuccess, Operation: name, OperationID: res.OperationID,
			Attempt: res.Attempts, Timestamp: time.Now(),
		})

		return res
	}

	res.Err = &Failure{Operation: name, Category: res.Category, Attempts: res.Attempts, cause: lastErr}

	cfg.Logger.Error(ctx, "operation failed",
		"operation", name,
		"operationID", res.OperationID,
		"attempts", res.Attempts,
		"category", res.Category,
		"cancelled", res.Cancelled,
		"error", lastErr,
	)
	cfg.Stats.Add(ctx, MetricFailure, 1, "operation", name, "category", string(res.Category))
	e.bus.publish(Event{
		Type: EventFailure, Operation: name, OperationID: res.OperationID,
		Attempt: res.Attempts, Category: res.Category, Err: lastErr, Timestamp: time.Now(),
	})

	return res
}

// Run executes untyped operation, it is a convenience wrapper of ExecuteWithRetry.
func (e *Executor) Run(ctx context.Context, name string, op func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	res := ExecuteWithRetry(ctx, e, name, op)

	return res.Value, res.Err
}
