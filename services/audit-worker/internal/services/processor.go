package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/rng"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/utils"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/audit-worker/internal/observability"
	"go.uber.org/zap"
)

// Disposition is what happened to one message.
type Disposition string

const (
	DispositionStored    Disposition = "stored"
	DispositionUndecoded Disposition = "undecodable"
	DispositionInvalid   Disposition = "invalid"
	DispositionFailed    Disposition = "persist_failed"
)

// RequestLogWriter is the write side of repositories.RequestLogRepository.
type RequestLogWriter interface {
	Create(ctx context.Context, log models.RequestLog) error
}

type ProcessorConfig struct {
	Logger      *zap.Logger
	Repo        RequestLogWriter
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Jitter      rng.Source
	Sleep       func(ctx context.Context, d time.Duration) error // defaults to a ctx-aware timer
}

// RequestLogProcessor decodes, validates and stores request-log events.
type RequestLogProcessor struct {
	ProcessorConfig
	validate *validator.Validate
}

func NewRequestLogProcessor(cfg ProcessorConfig) *RequestLogProcessor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	return &RequestLogProcessor{ProcessorConfig: cfg, validate: validator.New()}
}

// Process handles one payload. Only DispositionStored means the event reached the database; every
// disposition is final and the message may be committed.
func (p *RequestLogProcessor) Process(ctx context.Context, payload []byte) (views.RequestLogEvent, Disposition, error) {
	var evt views.RequestLogEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return evt, DispositionUndecoded, err
	}
	if err := p.validate.Struct(&evt); err != nil {
		return evt, DispositionInvalid, err
	}
	row, err := models.RequestLogFromEvent(evt)
	if err != nil {
		return evt, DispositionInvalid, err
	}

	for attempt := 1; ; attempt++ {
		err = p.Repo.Create(ctx, row)
		if err == nil {
			observability.EventsPersisted.WithLabelValues(string(evt.Status)).Inc()
			return evt, DispositionStored, nil
		}
		if attempt >= p.MaxAttempts {
			return evt, DispositionFailed, fmt.Errorf("persist after %d attempts: %w", attempt, err)
		}
		delay := utils.ExponentialBackoffWithJitter(attempt, p.BaseBackoff, p.MaxBackoff, p.Jitter)
		p.Logger.Warn("request_log_persist_retry",
			zap.String("event_id", evt.ID),
			zap.String(pkg.SourceId, evt.IP),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		observability.PersistRetries.Inc()
		if serr := p.Sleep(ctx, delay); serr != nil {
			return evt, DispositionFailed, serr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
