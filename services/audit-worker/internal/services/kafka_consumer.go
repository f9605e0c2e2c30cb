package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	kafkautils "github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/kafka"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/audit-worker/internal/observability"
	"go.uber.org/zap"
)

const pollTimeout = 200 * time.Millisecond

// MessageSource is the subset of *kafka.Consumer the worker uses.
type MessageSource interface {
	kafkautils.OffsetCommitter
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	Close() error
}

// Producer is the subset of *kafka.Producer used for the dead letter topic.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

type ConsumerConfig struct {
	Logger            *zap.Logger
	Source            MessageSource
	Processor         *RequestLogProcessor
	Topic             string
	MaxConcurrentJobs int
	DLQ               Producer // optional
	DLQTopic          string
}

// RequestLogConsumer reads request-log events with manual commits. Messages are handled
// concurrently and offsets advance only over contiguous finished messages.
type RequestLogConsumer struct {
	ConsumerConfig
	commits *kafkautils.CommitManager
	sem     chan struct{} // Semaphore to limit concurrent processing
	wg      sync.WaitGroup
}

func NewRequestLogConsumer(cfg ConsumerConfig) *RequestLogConsumer {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	return &RequestLogConsumer{
		ConsumerConfig: cfg,
		commits:        kafkautils.NewCommitManager(cfg.Source, cfg.Logger),
		sem:            make(chan struct{}, cfg.MaxConcurrentJobs),
	}
}

// Run consumes until ctx is done, then waits for in-flight messages so their offsets are committed.
func (k *RequestLogConsumer) Run(ctx context.Context) error {
	if err := k.Source.SubscribeTopics([]string{k.Topic}, nil); err != nil {
		return err
	}
	k.Logger.Info("listening_to_kafka_topic", zap.String("topic", k.Topic))

	defer k.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := k.Source.ReadMessage(pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			k.Logger.Error("kafka_read_failed", zap.Error(err))
			continue
		}
		observability.MessagesReceived.WithLabelValues(k.Topic).Inc()
		k.commits.Track(msg)

		// Acquire semaphore slot, blocking if limit is reached
		select {
		case k.sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		k.wg.Add(1)
		observability.InflightJobs.Inc()
		go func(m *kafka.Message) {
			defer func() {
				<-k.sem
				observability.InflightJobs.Dec()
				k.wg.Done()
			}()
			k.handle(ctx, m)
		}(msg)
	}
}

// Close releases the consumer and the DLQ producer.
func (k *RequestLogConsumer) Close() {
	if k.DLQ != nil {
		k.DLQ.Flush(5000)
		k.DLQ.Close()
	}
	if err := k.Source.Close(); err != nil {
		k.Logger.Error("failed_to_close_kafka_consumer", zap.Error(err))
	}
	k.Logger.Info("kafka_consumer_closed")
}

func (k *RequestLogConsumer) handle(ctx context.Context, msg *kafka.Message) {
	start := time.Now()
	defer func() { observability.ProcessLatency.Observe(time.Since(start).Seconds()) }()

	// Stores run to completion during shutdown so their offsets can still be committed.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	evt, disposition, err := k.Processor.Process(storeCtx, msg.Value)
	eventID := evt.ID
	if eventID == "" {
		eventID = string(msg.Key)
	}
	if disposition != DispositionStored {
		observability.EventsSkipped.WithLabelValues(string(disposition)).Inc()
		k.Logger.Error("request_log_skipped",
			zap.String("event_id", eventID),
			zap.String("reason", string(disposition)),
			zap.Error(err))
		k.sendToDLQ(msg, disposition, err)
	}
	k.commits.Ack(eventID, msg)
}

func (k *RequestLogConsumer) sendToDLQ(msg *kafka.Message, disposition Disposition, cause error) {
	if k.DLQ == nil || k.DLQTopic == "" {
		return
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	b, err := json.Marshal(map[string]any{
		"payload":       string(msg.Value),
		"failureReason": string(disposition),
		"error":         errMsg,
		"failedAt":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		k.Logger.Error("failed_to_marshal_dlq_payload", zap.Error(err))
		return
	}
	err = k.DLQ.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.DLQTopic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          b,
	}, nil)
	if err != nil {
		k.Logger.Error("failed_to_publish_dlq", zap.Error(err))
	}
}
