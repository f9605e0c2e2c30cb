package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/rng"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sequenceSource struct {
	floats []float64
	i      int
}

func (s *sequenceSource) Float64() float64 {
	v := s.floats[s.i%len(s.floats)]
	s.i++
	return v
}
func (s *sequenceSource) Intn(n int) int { return 0 }

func newTestClient(url string, timeout time.Duration) *Client {
	return NewClient(ClientConfig{
		Logger:             zap.NewNop(),
		BaseURL:            url,
		Timeout:            timeout,
		BreakerMaxFailures: 100,
		BreakerTimeout:     time.Second,
	})
}

func sampleRequest() FraudRequest {
	return FraudRequest{TransNum: "abc", Merchant: "Keells Super", Category: "grocery_pos", Amount: 42.5, CityPop: 10000}
}

func TestClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fraud", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var got FraudRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Keells Super", got.Merchant)
		_, _ = w.Write([]byte(`{"label":"normal","confidence":"12.5 %","reason":"ok","last_day_count":3}`))
	}))
	defer srv.Close()

	d, err := newTestClient(srv.URL, time.Second).Score(context.Background(), sampleRequest())

	require.NoError(t, err)
	assert.Equal(t, pkg.RiskLabelNormal, d.Label)
	assert.Equal(t, views.Confidence("12.5 %"), d.Confidence)
	assert.Equal(t, 3, d.LastDayCount)
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantErr: pkg.ErrScoringUnavailable,
		},
		{
			name:    "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"label":`)) },
			wantErr: pkg.ErrInvalidScoringResponse,
		},
		{
			name:    "unknown label",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"label":"maybe","confidence":"1 %"}`)) },
			wantErr: pkg.ErrInvalidScoringResponse,
		},
		{
			name:    "missing confidence",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"label":"Fraud"}`)) },
			wantErr: pkg.ErrInvalidScoringResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(srv.URL, time.Second).Score(context.Background(), sampleRequest())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestClient(srv.URL, 50*time.Millisecond).Score(context.Background(), sampleRequest())

	assert.ErrorIs(t, err, pkg.ErrScoringUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second, BreakerMaxFailures: 2, BreakerTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		_, _ = c.Score(context.Background(), sampleRequest())
	}

	assert.Equal(t, int32(2), calls.Load())
}

type stubLimiter struct{ err error }

func (s stubLimiter) Acquire(context.Context) error { return s.err }

func TestClient_ThrottledCallNeverLeaves(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { calls.Add(1) }))
	defer srv.Close()
	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second, Limiter: stubLimiter{err: pkg.ErrRateLimitExceeded}})

	_, err := c.Score(context.Background(), sampleRequest())

	assert.ErrorIs(t, err, pkg.ErrRateLimitExceeded)
	assert.ErrorIs(t, err, pkg.ErrScoringUnavailable)
	assert.Zero(t, calls.Load())
}

type stubScorer struct {
	decision views.RiskDecision
	err      error
	calls    int
}

func (s *stubScorer) Score(context.Context, FraudRequest) (views.RiskDecision, error) {
	s.calls++
	return s.decision, s.err
}

func TestAdapter_ScoredPassesThrough(t *testing.T) {
	live := views.RiskDecision{Label: pkg.RiskLabelFraud, Confidence: "88 %", Reason: "velocity"}
	scorer := &stubScorer{decision: live}
	a := NewAdapter(zap.NewNop(), scorer, NewFallback(0.3, &sequenceSource{floats: []float64{0}}))

	d, outcome := a.Decide(context.Background(), sampleRequest())

	assert.Equal(t, OutcomeScored, outcome)
	assert.Equal(t, live, d)
}

func TestAdapter_FallsBackOnceWithoutRetry(t *testing.T) {
	for _, err := range []error{
		pkg.ErrScoringUnavailable,
		context.DeadlineExceeded,
		pkg.ErrInvalidScoringResponse,
		errors.New("anything"),
	} {
		scorer := &stubScorer{err: err}
		a := NewAdapter(zap.NewNop(), scorer, NewFallback(0.3, &sequenceSource{floats: []float64{0.9}}))

		d, outcome := a.Decide(context.Background(), sampleRequest())

		assert.Equal(t, OutcomeFallback, outcome)
		assert.Equal(t, 1, scorer.calls)
		assert.Equal(t, "Traffic Anomaly", d.Reason)
		assert.Equal(t, views.Confidence("97.76 %"), d.Confidence)
		assert.Contains(t, []pkg.RiskLabel{pkg.RiskLabelFraud, pkg.RiskLabelNormal}, d.Label)
		assert.Equal(t, 29, d.LastDayCount)
		assert.Zero(t, d.LastHourCount)
		assert.Zero(t, d.LastMinuteCount)
	}
}

func TestAdapter_FallbackWhenServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()
	a := NewAdapter(zap.NewNop(), newTestClient(url, 200*time.Millisecond), NewFallback(0.3, rng.NewLocked(1)))

	d, outcome := a.Decide(context.Background(), sampleRequest())

	assert.Equal(t, OutcomeFallback, outcome)
	assert.Equal(t, "Traffic Anomaly", d.Reason)
}

func TestFallback_LabelFollowsProbability(t *testing.T) {
	f := NewFallback(0.3, &sequenceSource{floats: []float64{0.1, 0.29, 0.3, 0.95}})

	assert.Equal(t, pkg.RiskLabelFraud, f.Decision().Label)
	assert.Equal(t, pkg.RiskLabelFraud, f.Decision().Label)
	assert.Equal(t, pkg.RiskLabelNormal, f.Decision().Label)
	assert.Equal(t, pkg.RiskLabelNormal, f.Decision().Label)
}

func TestFallback_ObservedRateIsNearProbability(t *testing.T) {
	f := NewFallback(0.3, rng.NewLocked(42))
	fraud := 0
	const n = 10000
	for i := 0; i < n; i++ {
		if f.Decision().IsFraud() {
			fraud++
		}
	}
	assert.InDelta(t, 0.3, float64(fraud)/n, 0.03)
}

func TestFallback_ProbabilityIsClamped(t *testing.T) {
	assert.Equal(t, pkg.RiskLabelFraud, NewFallback(5, &sequenceSource{floats: []float64{0.999}}).Decision().Label)
	assert.Equal(t, pkg.RiskLabelNormal, NewFallback(-1, &sequenceSource{floats: []float64{0}}).Decision().Label)
}

func TestNewTransactionID_DistinctHex(t *testing.T) {
	src := rng.New(rng.Real, 0).R("transaction-ids")
	pattern := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := make(map[string]struct{}, 1000)

	for i := 0; i < 1000; i++ {
		id := NewTransactionID(src)
		require.Regexp(t, pattern, id)
		seen[id] = struct{}{}
	}

	assert.Len(t, seen, 1000)
}

func TestNewTransactionID_DeterministicWithSeed(t *testing.T) {
	a := NewTransactionID(rng.New(rng.Deterministic, 7).R("ids"))
	b := NewTransactionID(rng.New(rng.Deterministic, 7).R("ids"))
	assert.Equal(t, a, b)
}

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, RiskLevelHigh, RiskLevelFor(0.61))
	assert.Equal(t, RiskLevelMedium, RiskLevelFor(0.6))
	assert.Equal(t, RiskLevelMedium, RiskLevelFor(0.31))
	assert.Equal(t, RiskLevelLow, RiskLevelFor(0.3))
	assert.Equal(t, RiskLevelLow, RiskLevelFor(0))
}

func TestProbabilityClient_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		var req ProbabilityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "category_travel", req.Category)
		_, _ = w.Write([]byte(`{"risk_probability":72.5}`))
	}))
	defer srv.Close()

	p, err := NewProbabilityClient(srv.URL, time.Second).Predict(context.Background(), ProbabilityRequest{Category: "category_travel", Hour: 13})

	require.NoError(t, err)
	assert.Equal(t, 72.5, p.RiskProbability)
	assert.Equal(t, RiskLevelHigh, p.RiskLevel)
}

func TestProbabilityClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewProbabilityClient(srv.URL, time.Second).Predict(context.Background(), ProbabilityRequest{})
	assert.Error(t, err)
}
