package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/vansh-rautela/sage-health-assistant/internal/metrics"
)

// Analyzer gates analyses behind the rate limiter and runs them through the
// model cascade. The limiter is the only state that outlives a request.
type Analyzer struct {
	limiter *RateLimiter
	cascade *Cascade
	now     func() time.Time
}

func New(limiter *RateLimiter, cascade *Cascade) *Analyzer {
	return &Analyzer{
		limiter: limiter,
		cascade: cascade,
		now:     time.Now,
	}
}

// Analyze runs one analysis of data with systemPrompt, replaying recent
// history when it is given. Quota is only consumed by successful analyses.
func (a *Analyzer) Analyze(ctx context.Context, data map[string]any, systemPrompt string, history []ChatTurn) Result {
	reservation, retryAfter, ok := a.limiter.Reserve(a.now())
	if !ok {
		msg := FormatResetMessage(retryAfter)
		slog.Warn("Analysis rejected by rate limiter", "retry_after", retryAfter)
		metrics.AnalysesTotal.WithLabelValues(string(FailureQuotaExceeded)).Inc()
		return failure(FailureQuotaExceeded, msg)
	}
	defer reservation.Release()

	report := Normalize(data)
	payload, err := report.Payload()
	if err != nil {
		slog.Error("Failed to encode analysis payload", "error", err)
		metrics.AnalysesTotal.WithLabelValues(string(FailureInvalidInput)).Inc()
		return failure(FailureInvalidInput, "Invalid report data")
	}

	prompt := Compose(systemPrompt, history)

	slog.Debug("Starting analysis", "history_turns", len(history), "follow_up", report.Question != nil)
	result := a.cascade.Generate(ctx, payload, prompt)
	if !result.Success {
		metrics.AnalysesTotal.WithLabelValues(string(result.Kind)).Inc()
		return result
	}

	reservation.Commit(a.now())
	metrics.AnalysesTotal.WithLabelValues("success").Inc()
	metrics.QuotaUsed.Set(float64(a.limiter.Status().Count))
	slog.Info("Analysis completed", "model", result.ModelUsed)
	return result
}

// RateStatus exposes the limiter state for health reporting.
func (a *Analyzer) RateStatus() RateStatus {
	return a.limiter.Status()
}
