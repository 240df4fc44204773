package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	topicSuffixStarted   = ".job.started"
	topicSuffixCompleted = ".job.completed"
	topicSuffixFailed    = ".job.failed"
)

// KafkaNotifier publishes lifecycle events to Kafka, one topic per
// transition, keyed by job UUID so a job's events stay ordered within a
// partition.
type KafkaNotifier struct {
	producer    sarama.SyncProducer
	topicPrefix string
	logger      zerolog.Logger
}

func NewKafkaNotifier(brokers []string, topicPrefix string, logger zerolog.Logger) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &KafkaNotifier{
		producer:    producer,
		topicPrefix: topicPrefix,
		logger:      logger.With().Str("component", "notify_kafka").Logger(),
	}, nil
}

func (n *KafkaNotifier) JobStarted(ctx context.Context, event JobEvent) error {
	return n.publish(ctx, n.topicPrefix+topicSuffixStarted, event)
}

func (n *KafkaNotifier) JobCompleted(ctx context.Context, event JobEvent) error {
	return n.publish(ctx, n.topicPrefix+topicSuffixCompleted, event)
}

func (n *KafkaNotifier) JobFailed(ctx context.Context, event JobEvent) error {
	return n.publish(ctx, n.topicPrefix+topicSuffixFailed, event)
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

func (n *KafkaNotifier) publish(ctx context.Context, topic string, event JobEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(Stamp(event))
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.JobUUID),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := n.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	n.logger.Debug().
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Str("job_uuid", event.JobUUID).
		Msg("published job event")
	return nil
}
