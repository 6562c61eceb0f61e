// Package events publishes order lifecycle notifications to a message broker.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// TypeOrderCreated is emitted after an order commits.
	TypeOrderCreated = "order.created"
	// TypeOrderStatusChanged is emitted after a status transition commits.
	TypeOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload published for order lifecycle changes.
type OrderEvent struct {
	Type           string          `json:"type"`
	OrderID        string          `json:"orderId"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previousStatus,omitempty"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	ItemCount      int             `json:"itemCount"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// Publisher delivers order events.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// LogPublisher writes events to the logger instead of a broker.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a LogPublisher. A nil logger discards events.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event OrderEvent) error {
	p.logger.Info("order event",
		zap.String("type", event.Type),
		zap.String("order_id", event.OrderID),
		zap.String("status", event.Status),
		zap.String("previous_status", event.PreviousStatus),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

func attributes(event OrderEvent) map[string]string {
	attrs := map[string]string{"type": event.Type, "orderId": event.OrderID}
	if event.Status != "" {
		attrs["status"] = event.Status
	}
	return attrs
}
