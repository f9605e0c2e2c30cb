package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/utils"
)

const predictPath = "/predict"

const (
	RiskLevelHigh   = "High"
	RiskLevelMedium = "Medium"
	RiskLevelLow    = "Low"
)

// Predictor estimates the fraud probability of a stored transaction for the admin views.
type Predictor interface {
	Predict(ctx context.Context, req ProbabilityRequest) (Prediction, error)
}

type ProbabilityClient struct {
	url  string
	http *http.Client
}

func NewProbabilityClient(baseURL string, timeout time.Duration) *ProbabilityClient {
	return &ProbabilityClient{
		url:  strings.TrimRight(baseURL, "/") + predictPath,
		http: utils.NewHTTPClient(utils.WithClientTimeout(timeout)),
	}
}

func (p *ProbabilityClient) Predict(ctx context.Context, req ProbabilityRequest) (Prediction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Prediction{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Prediction{}, fmt.Errorf("predict: status %d", resp.StatusCode)
	}

	var out Prediction
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Prediction{}, fmt.Errorf("predict: decode: %w", err)
	}
	if out.RiskLevel == "" {
		out.RiskLevel = RiskLevelFor(out.RiskProbability / 100)
	}
	return out, nil
}

// RiskLevelFor buckets a 0-1 probability: above 0.6 High, above 0.3 Medium, otherwise Low.
func RiskLevelFor(probability float64) string {
	switch {
	case probability > 0.6:
		return RiskLevelHigh
	case probability > 0.3:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
