package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer wraps a kafka writer for one topic. A nil Producer is valid and
// drops every publish, so services can run with kafka disabled.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: w}
}

func (p *Producer) Enabled() bool {
	return p != nil && p.writer != nil
}

func (p *Producer) PublishJSON(ctx context.Context, key string, payload any) error {
	if !p.Enabled() {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
