package tools

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/ariadne-eng/queryengine/internal/enginerr"
	"github.com/ariadne-eng/queryengine/internal/telemetry"
	"go.uber.org/zap"
)

// Executor dispatches tool calls with cap enforcement and retry against
// transient provider failures.
type Executor struct {
	config ToolConfig
}

// NewExecutor builds an executor with the given configuration.
func NewExecutor(config ToolConfig) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor builds an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return &Executor{config: DefaultToolConfig()}
}

// Execute runs a tool, enforcing the argument-size cap before dispatch and
// retrying with capped exponential backoff and jitter on classified
// transient provider errors. Execute does not hold any lock across the
// backoff sleep.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	log := telemetry.Named("tools")
	toolName := tool.Metadata().Name

	if err := CheckArgsSize(args); err != nil {
		return FailureResult(enginerr.NewInvalidArgument("args", err.Error())), nil
	}
	if err := tool.Validate(args); err != nil {
		return FailureResult(enginerr.NewInvalidArgument("args", err.Error())), nil
	}

	maxAttempts := e.config.Retries()
	var lastErr error

	for attempt := uint32(0); attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := backoffWithJitter(attempt)
			log.Warn("retrying tool call", zap.String("tool", toolName), zap.Uint32("attempt", attempt), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return ToolResult{}, enginerr.NewCancelled()
			case <-time.After(backoff):
			}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			lastErr = err
			if !isTransient(err) {
				return ToolResult{}, err
			}
			continue
		}
		if result.Success() {
			return result, nil
		}
		if !isTransient(result.Error) {
			return result, nil
		}
		lastErr = result.Error
	}

	log.Error("tool call exhausted retries", zap.String("tool", toolName), zap.Error(lastErr))
	return FailureResultf("tool %q failed after %d attempts: %v", toolName, maxAttempts, lastErr), nil
}

// isTransient reports whether err is classified as retryable, i.e. it is
// (or wraps) an enginerr.ProviderTransientError. Every other kind,
// including InvalidArgument and ProviderPermanent, aborts immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var transient *enginerr.ProviderTransientError
	return errors.As(err, &transient)
}

// backoffWithJitter returns a capped exponential delay with up to 20%
// random jitter so concurrent retries do not thunder in lockstep.
func backoffWithJitter(attempt uint32) time.Duration {
	const (
		baseDelay = 200 * time.Millisecond
		maxDelay  = 5 * time.Second
	)
	delay := baseDelay * time.Duration(uint64(1)<<attempt)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 5))
	return delay + jitter
}

// ExecuteWithTimeout runs Execute bounded by a per-call timeout.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, tool Tool, args json.RawMessage, timeout time.Duration) (ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.Execute(ctx, tool, args)
}
