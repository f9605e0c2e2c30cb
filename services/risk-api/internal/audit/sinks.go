package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/repositories"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
)

// PostgresSink writes events straight to the request_logs table.
type PostgresSink struct {
	repo repositories.RequestLogRepository
}

func NewPostgresSink(repo repositories.RequestLogRepository) *PostgresSink {
	return &PostgresSink{repo: repo}
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) Store(ctx context.Context, evt views.RequestLogEvent) error {
	row, err := models.RequestLogFromEvent(evt)
	if err != nil {
		return fmt.Errorf("build request log: %w", err)
	}
	return p.repo.Create(ctx, row)
}

// Producer is the subset of *kafka.Producer the Kafka sink uses.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaSink publishes events for the audit worker. Events from one source share a partition so their
// counts stay ordered.
type KafkaSink struct {
	producer   Producer
	topic      string
	partitions uint32
}

func NewKafkaSink(producer Producer, topic string, partitions uint32) *KafkaSink {
	if partitions == 0 {
		partitions = 1
	}
	return &KafkaSink{producer: producer, topic: topic, partitions: partitions}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Store(_ context.Context, evt views.RequestLogEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: k.partitionFor(evt.IP)},
		Key:            []byte(evt.ID),
		Value:          payload,
	}, nil)
}

func (k *KafkaSink) Close() {
	k.producer.Flush(5000)
	k.producer.Close()
}

func (k *KafkaSink) partitionFor(source string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(source))
	return int32(h.Sum32() % k.partitions)
}
