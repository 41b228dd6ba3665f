package events

import (
	"allocation-service/internal/checkout"
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CheckoutProducer publishes checkout lifecycle events keyed by order token,
// so every event of one order lands on the same partition.
type CheckoutProducer struct {
	writer messageWriter
}

func NewCheckoutProducer(brokers []string, topic string) *CheckoutProducer {
	return &CheckoutProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func newWithWriter(w messageWriter) *CheckoutProducer {
	return &CheckoutProducer{writer: w}
}

func (p *CheckoutProducer) PublishCheckout(ctx context.Context, ev checkout.Event) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(ev.OrderToken),
		Value:   value,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(ev.Type)}},
	})
}

func (p *CheckoutProducer) Close() error {
	return p.writer.Close()
}
