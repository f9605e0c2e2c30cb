package views

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
)

// RiskDecision is the outcome of the transaction risk pipeline. A live scoring response and a fallback
// decision share this exact shape.
type RiskDecision struct {
	Label           pkg.RiskLabel `json:"label"`
	Confidence      Confidence    `json:"confidence"`
	Reason          string        `json:"reason"`
	LastDayCount    int           `json:"last_day_count"`
	LastHourCount   int           `json:"last_hour_count"`
	LastMinuteCount int           `json:"last_minute_count"`
}

func (d RiskDecision) IsFraud() bool {
	return d.Label == pkg.RiskLabelFraud
}

// Confidence is a percentage string such as "97.76 %". Scoring services that send a bare number are
// accepted and rendered in the same format.
type Confidence string

func (c *Confidence) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Confidence(strings.TrimSpace(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	*c = Confidence(strconv.FormatFloat(f, 'f', -1, 64) + " %")
	return nil
}

// Percent returns the numeric value of the confidence, e.g. 97.76 for "97.76 %".
func (c Confidence) Percent() (float64, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(string(c)), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
