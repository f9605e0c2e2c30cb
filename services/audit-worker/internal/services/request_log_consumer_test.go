package services

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

type fakeRepo struct {
	mu       sync.Mutex
	failures int // calls to fail before succeeding
	calls    int
	rows     []models.RequestLog
}

func (f *fakeRepo) Create(_ context.Context, row models.RequestLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeRepo) stored() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeSource struct {
	mu        sync.Mutex
	topic     string
	queue     []*kafka.Message
	committed []kafka.TopicPartition
	closed    bool
}

func (f *fakeSource) SubscribeTopics(topics []string, _ kafka.RebalanceCb) error {
	f.topic = topics[0]
	return nil
}

func (f *fakeSource) ReadMessage(time.Duration) (*kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	return m, nil
}

func (f *fakeSource) CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, offsets...)
	return offsets, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) lastCommitted() kafka.Offset {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.committed) == 0 {
		return -1
	}
	return f.committed[len(f.committed)-1].Offset
}

type fakeDLQ struct {
	mu   sync.Mutex
	msgs []*kafka.Message
}

func (f *fakeDLQ) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}
func (f *fakeDLQ) Flush(int) int { return 0 }
func (f *fakeDLQ) Close()        {}

func validEvent() views.RequestLogEvent {
	return views.RequestLogEvent{
		ID:           uuid.NewString(),
		Timestamp:    time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		IP:           "203.0.113.5",
		Method:       "GET",
		URL:          "/api/v1/products?page=2",
		UserAgent:    "curl/8.0",
		Referer:      pkg.DirectReferer,
		Status:       pkg.ClassificationSuspicious,
		RequestCount: 61,
		Destination:  "shop.local",
	}
}

func encode(t *testing.T, evt views.RequestLogEvent) []byte {
	t.Helper()
	b, err := json.Marshal(evt)
	require.NoError(t, err)
	return b
}

func noSleep(context.Context, time.Duration) error { return nil }

func newProcessor(repo RequestLogWriter, attempts int) *RequestLogProcessor {
	return NewRequestLogProcessor(ProcessorConfig{
		Logger:      zap.NewNop(),
		Repo:        repo,
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		Sleep:       noSleep,
	})
}

func TestProcessor_StoresEnrichedEvent(t *testing.T) {
	// Arrange
	repo := &fakeRepo{}
	evt := validEvent()

	// Act
	got, disposition, err := newProcessor(repo, 3).Process(context.Background(), encode(t, evt))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, DispositionStored, disposition)
	assert.Equal(t, evt.ID, got.ID)
	require.Len(t, repo.rows, 1)
	row := repo.rows[0]
	assert.Equal(t, pkg.ProtocolHTTP, row.Protocol)
	assert.Equal(t, "203.0.113.5", row.SourceIP)
	assert.Equal(t, pkg.ClassificationSuspicious, row.Classification)
	assert.Positive(t, row.SizeBytes)
}

func TestProcessor_RejectsBadPayloads(t *testing.T) {
	missingStatus := validEvent()
	missingStatus.Status = ""
	badStatus := validEvent()
	badStatus.Status = "angry"
	badID := validEvent()
	badID.ID = "not-a-uuid"

	tests := []struct {
		name    string
		payload []byte
		want    Disposition
	}{
		{name: "not json", payload: []byte("{oops"), want: DispositionUndecoded},
		{name: "missing status", payload: encode(t, missingStatus), want: DispositionInvalid},
		{name: "unknown status", payload: encode(t, badStatus), want: DispositionInvalid},
		{name: "bad id", payload: encode(t, badID), want: DispositionInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}

			_, disposition, err := newProcessor(repo, 3).Process(context.Background(), tt.payload)

			assert.Error(t, err)
			assert.Equal(t, tt.want, disposition)
			assert.Zero(t, repo.calls)
		})
	}
}

func TestProcessor_RetriesThenStores(t *testing.T) {
	repo := &fakeRepo{failures: 2}
	var delays []time.Duration
	p := newProcessor(repo, 3)
	p.Sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, disposition, err := p.Process(context.Background(), encode(t, validEvent()))

	require.NoError(t, err)
	assert.Equal(t, DispositionStored, disposition)
	assert.Equal(t, 3, repo.calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestProcessor_GivesUpAfterMaxAttempts(t *testing.T) {
	repo := &fakeRepo{failures: 10}

	_, disposition, err := newProcessor(repo, 3).Process(context.Background(), encode(t, validEvent()))

	assert.Error(t, err)
	assert.Equal(t, DispositionFailed, disposition)
	assert.Equal(t, 3, repo.calls)
}

func message(topic *string, offset int64, value []byte) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: topic, Partition: 0, Offset: kafka.Offset(offset)},
		Value:          value,
	}
}

func TestConsumer_CommitsStoredAndSkippedMessages(t *testing.T) {
	// Arrange
	topic := "request-logs"
	source := &fakeSource{queue: []*kafka.Message{
		message(&topic, 10, encode(t, validEvent())),
		message(&topic, 11, []byte("garbage")),
		message(&topic, 12, encode(t, validEvent())),
	}}
	repo := &fakeRepo{}
	dlq := &fakeDLQ{}
	c := NewRequestLogConsumer(ConsumerConfig{
		Logger:            zap.NewNop(),
		Source:            source,
		Processor:         newProcessor(repo, 1),
		Topic:             topic,
		MaxConcurrentJobs: 2,
		DLQ:               dlq,
		DLQTopic:          "request-logs-dlq",
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// Act
	go func() { done <- c.Run(ctx) }()
	require.Eventually(t, func() bool { return source.lastCommitted() == 13 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	// Assert
	require.NoError(t, <-done)
	assert.Equal(t, topic, source.topic)
	assert.Equal(t, 2, repo.stored())
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "request-logs-dlq", *dlq.msgs[0].TopicPartition.Topic)

	c.Close()
	assert.True(t, source.closed)
}

func TestConsumer_StopsOnCancelledContext(t *testing.T) {
	source := &fakeSource{}
	c := NewRequestLogConsumer(ConsumerConfig{
		Logger:    zap.NewNop(),
		Source:    source,
		Processor: newProcessor(&fakeRepo{}, 1),
		Topic:     "request-logs",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, c.Run(ctx))
	assert.Empty(t, source.committed)
}
