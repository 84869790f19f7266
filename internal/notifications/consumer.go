package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/mailer"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/registry"
)

const consumerName = "notifications"

type eventDecoder interface {
	Decode(eventType enums.OutboxEventType, body []byte) (outbox.PayloadEnvelope, any, error)
}

type onceRunner interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error
}

type ConsumerParams struct {
	Subscription *pubsub.Subscriber
	Events       eventDecoder
	Idempotency  onceRunner
	Mailer       mailer.Sender
	StaffEmail   string
	Logger       *logger.Logger
}

// Consumer turns order and stock events into customer and staff emails.
type Consumer struct {
	subscription *pubsub.Subscriber
	events       eventDecoder
	idempotency  onceRunner
	mailer       mailer.Sender
	staffEmail   string
	logg         *logger.Logger
}

// NewConsumer builds the email notification consumer.
func NewConsumer(p ConsumerParams) (*Consumer, error) {
	if p.Subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if p.Events == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if p.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if p.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: p.Subscription,
		events:       p.Events,
		idempotency:  p.Idempotency,
		mailer:       p.Mailer,
		staffEmail:   strings.TrimSpace(p.StaffEmail),
		logg:         p.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		ctx = c.logg.WithField(ctx, "message_id", msg.ID)
		if c.process(ctx, msg.Attributes, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, attrs map[string]string, data []byte) processResult {
	eventType := enums.OutboxEventType(strings.TrimSpace(attrs["event_type"]))
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_type":   eventType,
		"aggregate_id": attrs["aggregate_id"],
	})

	if !handled(eventType) {
		c.logg.Info(logCtx, "skipping event without notification")
		return processResult{}
	}

	envelope, payload, err := c.events.Decode(eventType, data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode event", err)
		var nonRetryable registry.NonRetryableError
		return processResult{nack: !errors.As(err, &nonRetryable)}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	err = c.idempotency.Once(logCtx, consumerName, eventID, func(ctx context.Context) error {
		return c.handle(ctx, payload)
	})
	switch {
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	case err != nil:
		c.logg.Error(logCtx, "notification handling failed", err)
		return processResult{nack: true}
	}
	return processResult{}
}

func handled(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderConfirmed, enums.EventOrderStatusChanged, enums.EventOrderCancelled, enums.EventLowStockDigest:
		return true
	}
	return false
}

func (c *Consumer) handle(ctx context.Context, payload any) error {
	switch p := payload.(type) {
	case *payloads.OrderConfirmedEvent:
		return c.orderConfirmed(ctx, p)
	case *payloads.OrderStatusChangedEvent:
		return c.statusChanged(ctx, p)
	case *payloads.OrderCancelledEvent:
		return c.orderCancelled(ctx, p)
	case *payloads.LowStockDigestEvent:
		return c.lowStock(ctx, p)
	default:
		return fmt.Errorf("unexpected payload %T", payload)
	}
}

func (c *Consumer) orderConfirmed(ctx context.Context, p *payloads.OrderConfirmedEvent) error {
	html, err := mailer.Render("order_confirmed", map[string]any{
		"Name":         p.Recipient.Name,
		"OrderNumber":  p.OrderNumber,
		"DeliveryDate": p.DeliveryDate.String(),
		"Lines":        p.Lines,
		"DeliveryFee":  p.DeliveryFee.StringFixed(2),
		"Discount":     nonZero(p.Discount),
		"Paid":         p.Paid.StringFixed(2),
	})
	if err != nil {
		return err
	}
	return c.sendToCustomer(ctx, p.Recipient, fmt.Sprintf("Order #%s confirmed", p.OrderNumber), html)
}

func (c *Consumer) statusChanged(ctx context.Context, p *payloads.OrderStatusChangedEvent) error {
	if !p.Notify {
		c.logg.Info(c.logg.WithField(ctx, "status", p.To), "status change without notification")
		return nil
	}
	html, err := mailer.Render("order_status", map[string]any{
		"Name":        p.Recipient.Name,
		"OrderNumber": p.OrderNumber,
		"Status":      statusLabel(p.To),
	})
	if err != nil {
		return err
	}
	return c.sendToCustomer(ctx, p.Recipient, fmt.Sprintf("Order #%s update", p.OrderNumber), html)
}

func (c *Consumer) orderCancelled(ctx context.Context, p *payloads.OrderCancelledEvent) error {
	html, err := mailer.Render("order_cancelled", map[string]any{
		"Name":        p.Recipient.Name,
		"OrderNumber": p.OrderNumber,
		"Refunded":    nonZero(p.Refunded),
	})
	if err != nil {
		return err
	}
	return c.sendToCustomer(ctx, p.Recipient, fmt.Sprintf("Order #%s cancelled", p.OrderNumber), html)
}

func (c *Consumer) lowStock(ctx context.Context, p *payloads.LowStockDigestEvent) error {
	if c.staffEmail == "" {
		c.logg.Warn(ctx, "no staff address for low stock digest")
		return nil
	}
	if len(p.Items) == 0 {
		return nil
	}
	html, err := mailer.Render("low_stock", map[string]any{"Items": p.Items})
	if err != nil {
		return err
	}
	return c.mailer.Send(ctx, mailer.Message{
		To:      []string{c.staffEmail},
		Subject: fmt.Sprintf("Low stock: %d items at or under %d", len(p.Items), p.Threshold),
		HTML:    html,
	})
}

func (c *Consumer) sendToCustomer(ctx context.Context, to payloads.Recipient, subject, html string) error {
	email := strings.TrimSpace(to.Email)
	if email == "" {
		c.logg.Warn(ctx, "order has no customer email")
		return nil
	}
	if err := c.mailer.Send(ctx, mailer.Message{To: []string{email}, Subject: subject, HTML: html}); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithField(ctx, "subject", subject), "customer notified")
	return nil
}
