package embed

import (
	"context"
	"log/slog"
	"time"
)

const maxBackoff = 30 * time.Second

// retryPolicy retries transient embedding failures with doubling backoff.
// Exhaustion yields the empty-result sentinel (nil vectors, nil error) so
// retrieval degrades to "no matches" instead of failing the tool round.
type retryPolicy struct {
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

func newRetryPolicy(logger *slog.Logger, maxRetries int, backoff time.Duration) retryPolicy {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return retryPolicy{logger: logger, maxRetries: maxRetries, backoff: backoff}
}

func (p retryPolicy) run(ctx context.Context, provider string, fn func() ([][]float32, error)) ([][]float32, error) {
	delay := p.backoff
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		vectors, err := fn()
		if err == nil {
			return vectors, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("embedding attempt failed",
			"provider", provider, "attempt", attempt+1, "error", err)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
	p.logger.Warn("embedding retries exhausted; returning empty result", "provider", provider)
	return nil, nil
}
