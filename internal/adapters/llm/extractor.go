package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PabloGalante/resq-agent/internal/observability"
)

// Generator is a raw text completion backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RetryPolicy controls how transport failures are retried.
// The n-th retry waits n*Backoff.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: time.Second}

// Extractor adapts a Generator to domain.Extractor: it retries failures and
// maps the model's "nothing found" answers to found=false.
type Extractor struct {
	gen    Generator
	policy RetryPolicy
	name   string
}

func NewExtractor(gen Generator, name string, policy RetryPolicy) *Extractor {
	if policy.Attempts <= 0 {
		policy.Attempts = DefaultRetryPolicy.Attempts
	}
	if policy.Backoff < 0 {
		policy.Backoff = 0
	}
	return &Extractor{gen: gen, policy: policy, name: name}
}

func (e *Extractor) Extract(ctx context.Context, prompt string) (string, bool, error) {
	raw, err := retry(ctx, e.policy, e.name, func(ctx context.Context) (string, error) {
		return e.gen.Generate(ctx, prompt)
	})
	if err != nil {
		return "", false, err
	}
	value, found := ParseReply(raw)
	return value, found, nil
}

func retry(ctx context.Context, p RetryPolicy, name string, fn func(context.Context) (string, error)) (string, error) {
	log := observability.LoggerFromContext(ctx).With("backend", name)

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		log.Warn("llm call failed", "attempt", attempt, "max_attempts", p.Attempts, "error", err)

		if attempt == p.Attempts || errors.Is(err, context.Canceled) {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(time.Duration(attempt) * p.Backoff):
		}
	}
	return "", fmt.Errorf("%s failed after %d attempts: %w", name, p.Attempts, lastErr)
}

// sentinels are answers that mean the model found nothing.
var sentinels = []string{"undefined", "no value found"}

// ParseReply cleans a model answer. found is false for empty answers and
// for any answer carrying one of the "nothing found" sentinels.
func ParseReply(raw string) (value string, found bool) {
	value = strings.TrimSpace(raw)
	value = strings.Trim(value, "\"'`")
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	lower := strings.ToLower(value)
	for _, s := range sentinels {
		if strings.Contains(lower, s) {
			return "", false
		}
	}
	return value, true
}
