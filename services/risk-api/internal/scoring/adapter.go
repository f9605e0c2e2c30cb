package scoring

import (
	"context"
	"errors"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/observability"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Outcome records which path produced a decision.
type Outcome string

const (
	OutcomeScored   Outcome = "scored"
	OutcomeFallback Outcome = "fallback"
)

// Adapter calls the Scorer once and falls back on any failure. It never retries and never errors.
type Adapter struct {
	logger   *zap.Logger
	scorer   Scorer
	fallback *Fallback
}

func NewAdapter(logger *zap.Logger, scorer Scorer, fallback *Fallback) *Adapter {
	return &Adapter{logger: logger, scorer: scorer, fallback: fallback}
}

func (a *Adapter) Decide(ctx context.Context, req FraudRequest) (views.RiskDecision, Outcome) {
	decision, err := a.scorer.Score(ctx, req)
	if err == nil {
		observability.ScoringOutcomes.WithLabelValues(string(OutcomeScored), string(decision.Label)).Inc()
		return decision, OutcomeScored
	}

	reason := failureReason(err)
	observability.ScoringFailures.WithLabelValues(reason).Inc()
	decision = a.fallback.Decision()
	observability.ScoringOutcomes.WithLabelValues(string(OutcomeFallback), string(decision.Label)).Inc()
	a.logger.Warn("scoring_fallback",
		zap.String(pkg.TransNum, req.TransNum),
		zap.String("reason", reason),
		zap.String("label", string(decision.Label)),
		zap.Error(err))
	return decision, OutcomeFallback
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, pkg.ErrInvalidScoringResponse):
		return "invalid_response"
	case errors.Is(err, pkg.ErrRateLimitExceeded):
		return "throttled"
	case errors.Is(err, pkg.ErrScoringUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}
