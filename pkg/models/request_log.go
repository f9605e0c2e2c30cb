package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
)

// RequestLog maps to table `request_logs`
type RequestLog struct {
	ID             uuid.UUID          `json:"id"`
	OccurredAt     time.Time          `json:"timestamp"`
	SourceIP       string             `json:"source"`
	Method         string             `json:"method"`
	URL            string             `json:"url"`
	UserAgent      string             `json:"userAgent"`
	Referer        string             `json:"referer"`
	Classification pkg.Classification `json:"status"`
	RequestCount   int                `json:"requestCount"`
	Protocol       string             `json:"protocol"`
	SizeBytes      int                `json:"size"`
	Destination    string             `json:"destination"`
}

// RequestLogFromEvent enriches an audit event the way the packet log stores it: protocol HTTP and the
// approximate size of the serialized event.
func RequestLogFromEvent(evt views.RequestLogEvent) (RequestLog, error) {
	id, err := uuid.Parse(evt.ID)
	if err != nil {
		return RequestLog{}, err
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return RequestLog{}, err
	}
	return RequestLog{
		ID:             id,
		OccurredAt:     evt.Timestamp.UTC(),
		SourceIP:       evt.IP,
		Method:         evt.Method,
		URL:            evt.URL,
		UserAgent:      evt.UserAgent,
		Referer:        evt.Referer,
		Classification: evt.Status,
		RequestCount:   evt.RequestCount,
		Protocol:       pkg.ProtocolHTTP,
		SizeBytes:      len(raw),
		Destination:    evt.Destination,
	}, nil
}
