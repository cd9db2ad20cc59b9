package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nvkumar/shopkart/pkg/kafka"
)

const (
	EventOrderCreated    = "order_created"
	EventOrderPaid       = "order_paid"
	EventOrderCancelled  = "order_cancelled"
	EventOrderDeleted    = "order_deleted"
	EventRefundRequested = "refund_requested"
)

type Message struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
}

// Sender delivers user-facing notifications. Delivery is the mail service's
// problem; callers only get a message id back.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Events publishes order lifecycle events. A nil *Events drops everything,
// so the core works with kafka disabled.
type Events struct {
	Producer *kafka.Producer
}

func (e *Events) Publish(ctx context.Context, eventType string, orderID uuid.UUID, payload map[string]any) error {
	if e == nil || !e.Producer.Enabled() {
		return nil
	}
	event := map[string]any{
		"type":     eventType,
		"order_id": orderID.String(),
		"at":       time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range payload {
		event[k] = v
	}
	return e.Producer.PublishJSON(ctx, orderID.String(), event)
}

// KafkaSender hands notifications off to the mail worker through kafka.
type KafkaSender struct {
	Producer *kafka.Producer
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) (string, error) {
	if !s.Producer.Enabled() {
		return "", fmt.Errorf("notification producer disabled")
	}
	id := uuid.NewString()
	event := map[string]any{
		"message_id": id,
		"recipient":  msg.Recipient,
		"subject":    msg.Subject,
		"text":       msg.Text,
	}
	if err := s.Producer.PublishJSON(ctx, msg.Recipient, event); err != nil {
		return "", err
	}
	return id, nil
}
