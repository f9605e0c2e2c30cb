package scoring

import (
	"strings"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/rng"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
)

const (
	DefaultFraudProbability = 0.3

	fallbackConfidence      = "97.76 %"
	fallbackReason          = "Traffic Anomaly"
	fallbackLastDayCount    = 29
	fallbackLastHourCount   = 0
	fallbackLastMinuteCount = 0

	transactionIDLength = 32
	hexDigits           = "0123456789abcdef"
)

// Fallback fabricates a decision when the scoring service cannot answer. The label is Fraud with
// the configured probability.
type Fallback struct {
	probability float64
	src         rng.Source
}

func NewFallback(probability float64, src rng.Source) *Fallback {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	return &Fallback{probability: probability, src: src}
}

func (f *Fallback) Decision() views.RiskDecision {
	label := pkg.RiskLabelNormal
	if f.src.Float64() < f.probability {
		label = pkg.RiskLabelFraud
	}
	return views.RiskDecision{
		Label:           label,
		Confidence:      fallbackConfidence,
		Reason:          fallbackReason,
		LastDayCount:    fallbackLastDayCount,
		LastHourCount:   fallbackLastHourCount,
		LastMinuteCount: fallbackLastMinuteCount,
	}
}

// NewTransactionID draws 32 lowercase hex digits independently from src. It is an opaque id, not a secret.
func NewTransactionID(src rng.Source) string {
	var b strings.Builder
	b.Grow(transactionIDLength)
	for i := 0; i < transactionIDLength; i++ {
		b.WriteByte(hexDigits[src.Intn(len(hexDigits))])
	}
	return b.String()
}
