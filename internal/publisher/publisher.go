// Package publisher emits payloads to outbound Kafka topics.
package publisher

import (
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Publisher is the outbound side of the pipeline: one call per payload,
// topic chosen by the caller (downstream topic or dead-letter).
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

// KafkaPublisher wraps a confluent producer. Delivery is asynchronous; a
// background goroutine reads the events channel and logs failed
// deliveries.
type KafkaPublisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

func NewKafkaPublisher(broker string, logger *slog.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := &KafkaPublisher{producer: producer, logger: logger}
	go p.deliveryReport()
	p.logger.Info("Kafka producer initialized", "broker", broker)
	return p, nil
}

func (p *KafkaPublisher) deliveryReport() {
	for e := range p.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			p.logger.Error("Message delivery failed",
				"topic", *m.TopicPartition.Topic,
				"error", m.TopicPartition.Error)
		}
	}
}

func (p *KafkaPublisher) Publish(topic string, payload []byte) error {
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          payload,
	}, nil)
}

// Close flushes pending deliveries before shutting the producer down.
func (p *KafkaPublisher) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
