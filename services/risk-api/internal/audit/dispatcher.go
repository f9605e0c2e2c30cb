// Package audit hands request-log events off the request path to a background sink.
package audit

import (
	"context"
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/observability"
	"go.uber.org/zap"
)

const drainTimeout = 5 * time.Second

// Sink stores one request-log event.
type Sink interface {
	Name() string
	Store(ctx context.Context, evt views.RequestLogEvent) error
}

// Dispatcher buffers events in a channel and writes them to a Sink from a single goroutine.
// Enqueue never blocks; when the buffer is full the event is dropped.
type Dispatcher struct {
	logger *zap.Logger
	sink   Sink
	events chan views.RequestLogEvent
}

func NewDispatcher(logger *zap.Logger, sink Sink, bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Dispatcher{
		logger: logger,
		sink:   sink,
		events: make(chan views.RequestLogEvent, bufferSize),
	}
}

func (d *Dispatcher) Enqueue(evt views.RequestLogEvent) bool {
	select {
	case d.events <- evt:
		observability.AuditBacklog.Inc()
		return true
	default:
		observability.AuditDropped.Inc()
		return false
	}
}

// Run stores events until ctx is done, then drains what is already buffered. Sink errors are logged
// and swallowed.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("audit_dispatcher_started", zap.String("sink", d.sink.Name()), zap.Int("buffer", cap(d.events)))
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case evt := <-d.events:
			d.store(ctx, evt)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case evt := <-d.events:
			d.store(ctx, evt)
		default:
			d.logger.Info("audit_dispatcher_stopped")
			return
		}
	}
}

func (d *Dispatcher) store(ctx context.Context, evt views.RequestLogEvent) {
	observability.AuditBacklog.Dec()
	if err := d.sink.Store(ctx, evt); err != nil {
		observability.AuditFailed.WithLabelValues(d.sink.Name()).Inc()
		d.logger.Warn("audit_store_failed",
			zap.String("sink", d.sink.Name()),
			zap.String(pkg.SourceId, evt.IP),
			zap.String("event_id", evt.ID),
			zap.Error(err))
	}
}
