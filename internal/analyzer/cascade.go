package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/vansh-rautela/sage-health-assistant/internal/llm"
	"github.com/vansh-rautela/sage-health-assistant/internal/metrics"
)

const (
	DefaultRateLimitPause = 2 * time.Second
	DefaultAttemptTimeout = 30 * time.Second

	msgCascadeExhausted = "All models failed after multiple retries"
	msgCancelled        = "Analysis cancelled before a model responded"
)

// Cascade tries model tiers in rank order until one of them answers.
type Cascade struct {
	tiers          []llm.Tier
	clients        llm.Clients
	maxAttempts    int
	pause          time.Duration
	attemptTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
}

type CascadeOption func(*Cascade)

// WithMaxAttempts caps the number of attempts. Attempts beyond the last tier
// reuse the last tier. Values below one keep the default of len(tiers)+1.
func WithMaxAttempts(n int) CascadeOption {
	return func(c *Cascade) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRateLimitPause sets the pause taken after a rate-limited attempt.
func WithRateLimitPause(d time.Duration) CascadeOption {
	return func(c *Cascade) {
		if d >= 0 {
			c.pause = d
		}
	}
}

// WithAttemptTimeout bounds each provider call.
func WithAttemptTimeout(d time.Duration) CascadeOption {
	return func(c *Cascade) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

func NewCascade(tiers []llm.Tier, clients llm.Clients, opts ...CascadeOption) *Cascade {
	c := &Cascade{
		tiers:          tiers,
		clients:        clients,
		maxAttempts:    len(tiers) + 1,
		pause:          DefaultRateLimitPause,
		attemptTimeout: DefaultAttemptTimeout,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxAttempts returns the attempt ceiling.
func (c *Cascade) MaxAttempts() int {
	return c.maxAttempts
}

// Generate sends payload to each tier in turn and returns the first success.
// Rate-limited attempts are followed by a pause; other failures advance at once.
func (c *Cascade) Generate(ctx context.Context, payload, systemPrompt string) Result {
	if len(c.tiers) == 0 {
		return failure(FailureExhausted, msgCascadeExhausted)
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return failure(FailureCancelled, msgCancelled)
		}

		tier := c.tierFor(attempt)
		client, err := c.clients.Get(tier.Provider)
		if err != nil {
			slog.Error("Skipping tier", "rank", tier.Rank, "error", err)
			metrics.CascadeAttemptsTotal.WithLabelValues(string(tier.Rank), tier.Model, "skipped").Inc()
			continue
		}

		slog.Info("Attempting generation", "provider", tier.Provider, "model", tier.Model, "attempt", attempt+1)
		resp, err := c.call(ctx, client, tier, payload, systemPrompt)
		if err == nil {
			metrics.CascadeAttemptsTotal.WithLabelValues(string(tier.Rank), tier.Model, "success").Inc()
			return success(resp.Content, tier.ID())
		}

		if ctx.Err() != nil {
			return failure(FailureCancelled, msgCancelled)
		}

		rateLimited := llm.IsRateLimited(err)
		outcome := "error"
		if rateLimited {
			outcome = "rate_limited"
		}
		metrics.CascadeAttemptsTotal.WithLabelValues(string(tier.Rank), tier.Model, outcome).Inc()
		slog.Warn("Model failed", "model", tier.Model, "attempt", attempt+1, "rate_limited", rateLimited, "error", err)

		if rateLimited && attempt+1 < c.maxAttempts {
			if err := c.sleep(ctx, c.pause); err != nil {
				return failure(FailureCancelled, msgCancelled)
			}
		}
	}

	return failure(FailureExhausted, msgCascadeExhausted)
}

func (c *Cascade) tierFor(attempt int) llm.Tier {
	if attempt >= len(c.tiers) {
		return c.tiers[len(c.tiers)-1]
	}
	return c.tiers[attempt]
}

func (c *Cascade) call(ctx context.Context, client llm.Provider, tier llm.Tier, payload, systemPrompt string) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.AttemptDuration.WithLabelValues(tier.Model).Observe(time.Since(start).Seconds())
	}()

	return client.Complete(ctx, systemPrompt, payload,
		llm.WithModel(tier.Model),
		llm.WithMaxTokens(tier.MaxTokens),
		llm.WithTemperature(tier.Temperature),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
