package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// response is a raw judge answer. Only transport failures, 429 and 5xx are
// returned as errors so that 4xx answers do not trip the breaker.
type response struct {
	status int
	body   []byte
}

// statusError is an HTTP failure worth counting against the judge
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("judge error (status %d): %s", e.code, e.body)
}

// ResilienceConfig holds configuration for the fortify wrappers
type ResilienceConfig struct {
	// EnableCircuitBreaker enables circuit breaker pattern
	EnableCircuitBreaker bool

	// EnableRetry enables retry with backoff for idempotent reads
	EnableRetry bool

	// EnableBulkhead enables concurrency limiting
	EnableBulkhead bool

	// EnableRateLimit enables client-side rate limiting
	EnableRateLimit bool

	// MaxConcurrent for bulkhead (default: 4)
	MaxConcurrent int

	// RatePerSecond for rate limiting (default: 5)
	RatePerSecond int

	// RetryDelay is the initial backoff (default: 500ms)
	RetryDelay time.Duration

	// Logger for resilience events
	Logger *slog.Logger
}

// DefaultResilienceConfig returns defaults for a judge shared by one learner
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableBulkhead:       true,
		EnableRateLimit:      true,
		MaxConcurrent:        4,
		RatePerSecond:        5,
		RetryDelay:           500 * time.Millisecond,
	}
}

// resilience composes fortify patterns around judge calls
type resilience struct {
	circuitBreaker circuitbreaker.CircuitBreaker[*response]
	retrier        retry.Retry[*response]
	bulkhead       bulkhead.Bulkhead[*response]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
}

func newResilience(cfg ResilienceConfig) *resilience {
	r := &resilience{logger: cfg.Logger}

	if cfg.EnableCircuitBreaker {
		r.circuitBreaker = circuitbreaker.New[*response](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				if r.logger != nil {
					r.logger.Warn("judge circuit breaker state change",
						"from", from.String(),
						"to", to.String())
				}
			},
		})
	}

	if cfg.EnableRetry {
		delay := cfg.RetryDelay
		if delay <= 0 {
			delay = 500 * time.Millisecond
		}
		r.retrier = retry.New[*response](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  delay,
			MaxDelay:      10 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}

	if cfg.EnableBulkhead {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 4
		}
		r.bulkhead = bulkhead.New[*response](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 2,
			QueueTimeout:  30 * time.Second,
		})
	}

	if cfg.EnableRateLimit {
		rate := cfg.RatePerSecond
		if rate <= 0 {
			rate = 5
		}
		r.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 3,
			Interval: time.Second,
		})
	}

	return r
}

// execute runs op through rate limit, bulkhead and circuit breaker. When
// idempotent is false the call is never retried: a run or submit may have
// reached the judge even when the answer was lost.
func (r *resilience) execute(ctx context.Context, name string, idempotent bool, op func(ctx context.Context) (*response, error)) (*response, error) {
	if r.rateLimit != nil && !r.rateLimit.Allow(ctx, name) {
		return nil, fmt.Errorf("rate limit exceeded for %s", name)
	}

	operation := op
	if r.bulkhead != nil {
		operation = func(ctx context.Context) (*response, error) {
			return r.bulkhead.Execute(ctx, op)
		}
	}

	withRetry := operation
	if idempotent && r.retrier != nil {
		withRetry = func(ctx context.Context) (*response, error) {
			return r.retrier.Do(ctx, operation)
		}
	}

	if r.circuitBreaker != nil {
		return r.circuitBreaker.Execute(ctx, withRetry)
	}
	return withRetry(ctx)
}

func (r *resilience) close() error {
	if r.rateLimit != nil {
		return r.rateLimit.Close()
	}
	return nil
}

// isRetryable reports whether a failed read may be repeated
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Network errors
	return true
}
