package views

import (
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
)

// RequestLogEvent is what the request classifier hands to the audit sink for every counted request.
type RequestLogEvent struct {
	ID           string             `json:"id" validate:"required,uuid"`
	Timestamp    time.Time          `json:"timestamp" validate:"required"`
	IP           string             `json:"ip" validate:"required"`
	Method       string             `json:"method" validate:"required"`
	URL          string             `json:"url" validate:"required"`
	UserAgent    string             `json:"userAgent"`
	Referer      string             `json:"referer"`
	Status       pkg.Classification `json:"status" validate:"required,oneof=normal suspicious blocked"`
	RequestCount int                `json:"requestCount" validate:"min=1"`
	Destination  string             `json:"destination"`
}
