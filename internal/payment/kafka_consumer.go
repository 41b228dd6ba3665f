package payment

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/checkout"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Signaler interface {
	Signal(ctx context.Context, sig checkout.PaymentSignal) (checkout.Attempt, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaPaymentConsumer feeds payment outcomes from the payment collaborator
// into the checkout orchestrator.
type KafkaPaymentConsumer struct {
	reader   messageReader
	signaler Signaler
	log      *zap.Logger
}

func NewKafkaPaymentConsumer(brokers []string, groupID, topic string, signaler Signaler, log *zap.Logger) *KafkaPaymentConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          1,
		MaxBytes:          10e6,
		CommitInterval:    time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
	return &KafkaPaymentConsumer{reader: r, signaler: signaler, log: log}
}

func (c *KafkaPaymentConsumer) Run(ctx context.Context) error {
	c.log.Info("payment consumer started")
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			c.log.Error("read message", zap.Error(err))
			continue
		}
		c.handle(ctx, m)
	}
}

func (c *KafkaPaymentConsumer) handle(ctx context.Context, m kafka.Message) {
	var sig checkout.PaymentSignal
	if err := json.Unmarshal(m.Value, &sig); err != nil {
		c.log.Error("unmarshal payment signal", zap.ByteString("value", m.Value), zap.Error(err))
		return
	}
	a, err := c.signaler.Signal(ctx, sig)
	switch {
	case err == nil:
		c.log.Info("payment signal applied",
			zap.String("order_token", sig.OrderToken),
			zap.String("outcome", string(sig.Outcome)),
			zap.String("state", string(a.State)),
		)
	case apperr.IsValidation(err), errors.Is(err, checkout.ErrAttemptNotFound):
		c.log.Warn("payment signal dropped", zap.String("order_token", sig.OrderToken), zap.Error(err))
	default:
		c.log.Error("payment signal failed", zap.String("order_token", sig.OrderToken), zap.Error(err))
	}
}

func (c *KafkaPaymentConsumer) Close() error { return c.reader.Close() }
