package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by KafkaSender.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes every announcement as a JSON event to a topic, keyed
// by market id so one market's events stay ordered within a partition.
type KafkaSender struct {
	writer messageWriter
	topic  string
}

// NewKafkaWriter returns a writer tuned for small, low-volume event traffic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaSender creates a KafkaSender over w.
func NewKafkaSender(w messageWriter, topic string) *KafkaSender {
	return &KafkaSender{writer: w, topic: topic}
}

// Send writes one message to the topic.
func (k *KafkaSender) Send(ctx context.Context, msg Message) error {
	now := time.Now()
	value, err := encodeEvent(msg, now)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(eventKey(msg)),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(msg.Event)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: write to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSender) Close() error {
	return k.writer.Close()
}

// Name returns the sender identifier.
func (k *KafkaSender) Name() string {
	return "kafka"
}
