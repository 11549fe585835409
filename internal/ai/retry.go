package ai

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/utils"
)

const (
	DefaultMaxRetries = 3
	defaultBackoff    = 2 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

var wait = utils.WaitFor

// Policy bounds the attempts made for one LLM call.
type Policy struct {
	MaxRetries int
	Backoff    time.Duration
	// MaxDelay caps server requested waits. Longer quota delays fail immediately.
	MaxDelay time.Duration
}

// Decision tells Retry what to do with a failed attempt.
type Decision struct {
	Retry bool
	Delay time.Duration
	Err   error
}

// Classifier maps a provider error into a Decision.
type Classifier func(err error) Decision

// Retry calls fn until it succeeds, the classifier refuses a retry or attempts run out.
func Retry(ctx context.Context, p Policy, logger *zap.Logger, classify Classifier, fn func(ctx context.Context) (string, error)) (string, error) {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultBackoff
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return "", errors.Join(ErrTimeout, err)
			}
			return "", err
		}

		d := classify(err)
		lastErr = d.Err
		if lastErr == nil {
			lastErr = err
		}

		if !d.Retry || attempt == p.MaxRetries {
			return "", lastErr
		}

		delay := p.Backoff * time.Duration(attempt)
		if d.Delay > 0 {
			if d.Delay > p.MaxDelay {
				logger.Warn("retry delay exceeds limit, giving up",
					zap.Duration("delay", d.Delay),
					zap.Duration("max_delay", p.MaxDelay),
				)
				return "", lastErr
			}
			delay = d.Delay
		}

		logger.Warn("llm call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", p.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return "", errors.Join(ErrTimeout, lastErr)
			}
			return "", err
		}
	}

	return "", lastErr
}

var retryDelayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"?retry_?delay"?\s*[:=]\s*"?([0-9]+(?:\.[0-9]+)?)s`),
	regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*(?:s\b|sec|second)`),
}

// ParseRetryDelay extracts a server suggested delay from an error message.
func ParseRetryDelay(msg string) (time.Duration, bool) {
	for _, re := range retryDelayPatterns {
		m := re.FindStringSubmatch(msg)
		if len(m) < 2 {
			continue
		}
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	return 0, false
}
