// Package scoring talks to the external fraud scoring service and substitutes a fallback decision
// whenever it cannot.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/utils"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/observability"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	fraudPath       = "/fraud"
	maxResponseBody = 64 << 10
)

// Scorer returns a live decision or an error; it never falls back itself.
type Scorer interface {
	Score(ctx context.Context, req FraudRequest) (views.RiskDecision, error)
}

// Limiter gates outbound calls. *pkg.CallLimiter satisfies it.
type Limiter interface {
	Acquire(ctx context.Context) error
}

type ClientConfig struct {
	Logger             *zap.Logger
	BaseURL            string
	Timeout            time.Duration
	HTTPClient         *http.Client
	Limiter            Limiter // optional
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// Client is the HTTP Scorer. Calls pass through the limiter and a circuit breaker, and are bounded by
// Timeout.
type Client struct {
	logger  *zap.Logger
	url     string
	timeout time.Duration
	http    *http.Client
	limiter Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg ClientConfig) *Client {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "scoring",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = utils.NewHTTPClient(utils.WithClientTimeout(cfg.Timeout))
	}
	return &Client{
		logger:  logger,
		url:     strings.TrimRight(cfg.BaseURL, "/") + fraudPath,
		timeout: cfg.Timeout,
		http:    httpClient,
		limiter: cfg.Limiter,
		breaker: breaker,
	}
}

func (c *Client) Score(ctx context.Context, req FraudRequest) (views.RiskDecision, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return views.RiskDecision{}, fmt.Errorf("%w: %w", pkg.ErrScoringUnavailable, err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, req)
	})
	observability.ScoringLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return views.RiskDecision{}, err
	}
	return out.(views.RiskDecision), nil
}

func (c *Client) post(ctx context.Context, req FraudRequest) (views.RiskDecision, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return views.RiskDecision{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return views.RiskDecision{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return views.RiskDecision{}, fmt.Errorf("%w: %w", pkg.ErrScoringUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return views.RiskDecision{}, fmt.Errorf("%w: read body: %v", pkg.ErrScoringUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return views.RiskDecision{}, fmt.Errorf("%w: status %d", pkg.ErrScoringUnavailable, resp.StatusCode)
	}

	var decision views.RiskDecision
	if err = json.Unmarshal(raw, &decision); err != nil {
		return views.RiskDecision{}, fmt.Errorf("%w: %v", pkg.ErrInvalidScoringResponse, err)
	}
	return Normalize(decision)
}

// Normalize canonicalizes the label and rejects decisions missing a label or confidence.
func Normalize(d views.RiskDecision) (views.RiskDecision, error) {
	switch strings.ToLower(strings.TrimSpace(string(d.Label))) {
	case "fraud":
		d.Label = pkg.RiskLabelFraud
	case "normal":
		d.Label = pkg.RiskLabelNormal
	default:
		return views.RiskDecision{}, fmt.Errorf("%w: label %q", pkg.ErrInvalidScoringResponse, d.Label)
	}
	if strings.TrimSpace(string(d.Confidence)) == "" {
		return views.RiskDecision{}, fmt.Errorf("%w: missing confidence", pkg.ErrInvalidScoringResponse)
	}
	return d, nil
}
