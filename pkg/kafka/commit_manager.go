package kafkautils

import (
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// OffsetCommitter is the subset of *kafka.Consumer the commit manager needs.
type OffsetCommitter interface {
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
}

type tp struct {
	topic     string
	partition int32
}

// CommitManager commits the highest contiguous processed offset per partition, so messages
// finished out of order by concurrent handlers are never skipped on restart.
type CommitManager struct {
	mu        sync.Mutex
	high      map[tp]int64              // last committed (or baseline) offset per partition
	done      map[tp]map[int64]struct{} // processed offsets not yet committed
	committer OffsetCommitter
	log       *zap.Logger
}

func NewCommitManager(c OffsetCommitter, l *zap.Logger) *CommitManager {
	return &CommitManager{
		high:      make(map[tp]int64),
		done:      make(map[tp]map[int64]struct{}),
		committer: c,
		log:       l,
	}
}

// Track records a polled message before it is dispatched. The first message seen on a partition
// sets the baseline so the contiguous run starts at that offset.
func (m *CommitManager) Track(msg *kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyOf(msg)
	if _, ok := m.high[key]; !ok {
		m.high[key] = int64(msg.TopicPartition.Offset) - 1
	}
}

// Ack marks msg processed and commits when the contiguous run advances.
func (m *CommitManager) Ack(eventID string, msg *kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyOf(msg)
	off := int64(msg.TopicPartition.Offset)
	if _, ok := m.high[key]; !ok {
		m.high[key] = off - 1
	}
	if m.done[key] == nil {
		m.done[key] = map[int64]struct{}{}
	}
	m.done[key][off] = struct{}{}

	next := m.high[key]
	for {
		if _, ok := m.done[key][next+1]; !ok {
			break
		}
		next++
		delete(m.done[key], next)
	}
	if next <= m.high[key] {
		return
	}

	toCommit := kafka.TopicPartition{Topic: &key.topic, Partition: key.partition, Offset: kafka.Offset(next + 1)}
	if _, err := m.committer.CommitOffsets([]kafka.TopicPartition{toCommit}); err != nil {
		// keep the acked offsets so the next Ack retries the commit
		for o := m.high[key] + 1; o <= next; o++ {
			m.done[key][o] = struct{}{}
		}
		m.log.Error("offset_commit_failed",
			zap.String("event_id", eventID),
			zap.String("topic", key.topic),
			zap.Int32("partition", key.partition),
			zap.Int64("attempted_offset", next), zap.Error(err))
		return
	}
	m.high[key] = next
	m.log.Debug("offset_committed",
		zap.String("event_id", eventID),
		zap.String("topic", key.topic),
		zap.Int32("partition", key.partition),
		zap.Int64("offset", next))
}

// Committed returns the high-water mark for the partition: the last committed offset, or the
// baseline set by Track before anything is committed.
func (m *CommitManager) Committed(topic string, partition int32) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	off, ok := m.high[tp{topic: topic, partition: partition}]
	return off, ok
}

func keyOf(msg *kafka.Message) tp {
	topic := ""
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}
	return tp{topic: topic, partition: msg.TopicPartition.Partition}
}
