package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// ResilientEvaluator wraps an Evaluator with resilience patterns from
// fortify. The dialogue collaborator is a remote, potentially slow service;
// the wrapper keeps transient failures away from the state machine.
type ResilientEvaluator struct {
	evaluator      Evaluator
	circuitBreaker circuitbreaker.CircuitBreaker[*Evaluation]
	retrier        retry.Retry[*Evaluation]
	logger         *slog.Logger
}

// ResilientConfig holds configuration for the resilient evaluator wrapper
type ResilientConfig struct {
	// EnableCircuitBreaker enables circuit breaker pattern
	EnableCircuitBreaker bool

	// EnableRetry enables retry with backoff
	EnableRetry bool

	// MaxAttempts bounds retries (default: 3)
	MaxAttempts int

	// InitialDelay is the first backoff step (default: 500ms)
	InitialDelay time.Duration

	// Logger for resilience events
	Logger *slog.Logger
}

// DefaultResilientConfig returns sensible defaults for dialogue resilience
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		MaxAttempts:          3,
		InitialDelay:         500 * time.Millisecond,
	}
}

// NewResilientEvaluator wraps an evaluator with resilience patterns using fortify
func NewResilientEvaluator(evaluator Evaluator, cfg ResilientConfig) *ResilientEvaluator {
	re := &ResilientEvaluator{
		evaluator: evaluator,
		logger:    cfg.Logger,
	}

	if cfg.EnableCircuitBreaker {
		re.circuitBreaker = circuitbreaker.New[*Evaluation](circuitbreaker.Config{
			MaxRequests: 2,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				if re.logger != nil {
					re.logger.Warn("dialogue circuit breaker state change",
						"from", from.String(),
						"to", to.String())
				}
			},
		})
	}

	if cfg.EnableRetry {
		attempts := cfg.MaxAttempts
		if attempts <= 0 {
			attempts = 3
		}
		delay := cfg.InitialDelay
		if delay <= 0 {
			delay = 500 * time.Millisecond
		}
		re.retrier = retry.New[*Evaluation](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  delay,
			MaxDelay:      10 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}

	return re
}

// Evaluate runs the wrapped evaluator under the configured patterns.
func (re *ResilientEvaluator) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	operation := func(ctx context.Context) (*Evaluation, error) {
		return re.evaluator.Evaluate(ctx, req)
	}

	if re.circuitBreaker != nil && re.retrier != nil {
		return re.circuitBreaker.Execute(ctx, func(ctx context.Context) (*Evaluation, error) {
			return re.retrier.Do(ctx, operation)
		})
	}
	if re.circuitBreaker != nil {
		return re.circuitBreaker.Execute(ctx, operation)
	}
	if re.retrier != nil {
		return re.retrier.Do(ctx, operation)
	}
	return operation(ctx)
}

// isRetryable treats context cancellation and expiry as final; everything
// else is assumed transient.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
