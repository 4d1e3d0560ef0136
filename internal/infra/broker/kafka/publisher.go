package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// Publisher emits domain events to Kafka, one topic per event name.
type Publisher struct {
	sync        sarama.SyncProducer
	topicPrefix string
}

func NewPublisher(brokers []string, topicPrefix string, cfg *sarama.Config) (*Publisher, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	// Idempotent producers require a single in-flight request per broker.
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_5_0_0
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{sync: sync, topicPrefix: topicPrefix}, nil
}

// Publish keys messages by aggregate ID so events for one booking or
// listing stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, eventName, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s event: %w", eventName, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topicPrefix + eventName,
		Key:   sarama.StringEncoder(aggregateID),
		Value: sarama.ByteEncoder(body),
	}
	_, _, err = p.sync.SendMessage(msg)
	return err
}

func (p *Publisher) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
