package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sugawarayuuta/sonnet"

	"mev-sentinel/internal/domain"
)

// KafkaNotifier publishes events to a Kafka topic, keyed by pool identifier
// so per-pool ordering is preserved across partitions.
type KafkaNotifier struct {
	topic string
	sp    sarama.SyncProducer
}

// Compile-time interface check.
var _ Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier connects a sync producer to the given brokers (CSV list).
func NewKafkaNotifier(brokersCSV, topic string) (*KafkaNotifier, error) {
	if topic == "" {
		return nil, errors.New("topic empty")
	}
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("no brokers")
	}

	cfg := sarama.NewConfig()

	// Reliability-oriented defaults
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond

	// SyncProducer must have Return.Successes=true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	cfg.Version = sarama.V2_1_0_0

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("new sync producer: %w", err)
	}

	return &KafkaNotifier{topic: topic, sp: sp}, nil
}

// Close closes the producer.
func (n *KafkaNotifier) Close() error {
	if n.sp != nil {
		return n.sp.Close()
	}
	return nil
}

// Publish sends the event and waits for broker ACK.
func (n *KafkaNotifier) Publish(ctx context.Context, event *domain.EngineEvent) error {
	payload, err := sonnet.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(event.PoolID),
		Value: sarama.ByteEncoder(payload),
	}

	// sarama SyncProducer doesn't accept context directly; check ctx before sending.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, _, err := n.sp.SendMessage(msg); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, x := range parts {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
