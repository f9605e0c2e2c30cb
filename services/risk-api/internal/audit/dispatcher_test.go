package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	mu     sync.Mutex
	stored []views.RequestLogEvent
	err    error
	got    chan struct{}
}

func newFakeSink(err error) *fakeSink {
	return &fakeSink{err: err, got: make(chan struct{}, 100)}
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Store(_ context.Context, evt views.RequestLogEvent) error {
	f.mu.Lock()
	f.stored = append(f.stored, evt)
	f.mu.Unlock()
	f.got <- struct{}{}
	return f.err
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

func event(ip string, count int) views.RequestLogEvent {
	return views.RequestLogEvent{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		IP:           ip,
		Method:       "GET",
		URL:          "/shop",
		Status:       pkg.ClassificationNormal,
		RequestCount: count,
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := newFakeSink(nil)
	d := NewDispatcher(zap.NewNop(), sink, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	for i := 1; i <= 5; i++ {
		assert.True(t, d.Enqueue(event("1.2.3.4", i)))
	}
	waitFor(t, sink.got, 5)

	for i, evt := range sink.stored {
		assert.Equal(t, i+1, evt.RequestCount)
	}
}

func TestDispatcher_DropsWhenBufferFull(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), newFakeSink(nil), 2)

	assert.True(t, d.Enqueue(event("a", 1)))
	assert.True(t, d.Enqueue(event("a", 2)))
	assert.False(t, d.Enqueue(event("a", 3)))
}

func TestDispatcher_SinkErrorsAreSwallowed(t *testing.T) {
	sink := newFakeSink(errors.New("db down"))
	d := NewDispatcher(zap.NewNop(), sink, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Enqueue(event("a", 1))
	d.Enqueue(event("a", 2))
	waitFor(t, sink.got, 2)

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 2, sink.count())
}

func TestDispatcher_DrainsBufferedEventsOnShutdown(t *testing.T) {
	sink := newFakeSink(nil)
	d := NewDispatcher(zap.NewNop(), sink, 8)
	for i := 1; i <= 3; i++ {
		d.Enqueue(event("b", i))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 3, sink.count())
}

type fakeRequestLogRepo struct {
	created []models.RequestLog
}

func (f *fakeRequestLogRepo) Create(_ context.Context, log models.RequestLog) error {
	f.created = append(f.created, log)
	return nil
}

func (f *fakeRequestLogRepo) ListRecent(context.Context, int) ([]models.RequestLog, error) {
	return f.created, nil
}

func TestPostgresSink_EnrichesEvent(t *testing.T) {
	repo := &fakeRequestLogRepo{}
	evt := event("1.2.3.4", 7)
	evt.Destination = "shop.example"

	require.NoError(t, NewPostgresSink(repo).Store(context.Background(), evt))

	require.Len(t, repo.created, 1)
	row := repo.created[0]
	assert.Equal(t, evt.ID, row.ID.String())
	assert.Equal(t, pkg.ProtocolHTTP, row.Protocol)
	assert.Equal(t, "1.2.3.4", row.SourceIP)
	assert.Equal(t, "shop.example", row.Destination)
	assert.Equal(t, 7, row.RequestCount)
	assert.Positive(t, row.SizeBytes)
}

func TestPostgresSink_RejectsBadID(t *testing.T) {
	evt := event("1.2.3.4", 1)
	evt.ID = "not-a-uuid"
	assert.Error(t, NewPostgresSink(&fakeRequestLogRepo{}).Store(context.Background(), evt))
}

type fakeProducer struct {
	messages []*kafka.Message
	closed   bool
}

func (f *fakeProducer) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	f.messages = append(f.messages, msg)
	return nil
}
func (f *fakeProducer) Flush(int) int { return 0 }
func (f *fakeProducer) Close()        { f.closed = true }

func TestKafkaSink_PartitionsBySource(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewKafkaSink(producer, "request-logs", 4)

	require.NoError(t, sink.Store(context.Background(), event("1.2.3.4", 1)))
	require.NoError(t, sink.Store(context.Background(), event("1.2.3.4", 2)))
	require.NoError(t, sink.Store(context.Background(), event("5.6.7.8", 1)))
	sink.Close()

	require.Len(t, producer.messages, 3)
	assert.Equal(t, producer.messages[0].TopicPartition.Partition, producer.messages[1].TopicPartition.Partition)
	assert.Equal(t, "request-logs", *producer.messages[0].TopicPartition.Topic)
	for _, m := range producer.messages {
		assert.GreaterOrEqual(t, m.TopicPartition.Partition, int32(0))
		assert.Less(t, m.TopicPartition.Partition, int32(4))
	}

	var decoded views.RequestLogEvent
	require.NoError(t, json.Unmarshal(producer.messages[1].Value, &decoded))
	assert.Equal(t, 2, decoded.RequestCount)
	assert.True(t, producer.closed)
}
