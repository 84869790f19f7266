package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/registry"
)

const consumerName = "analytics"

type eventDecoder interface {
	Decode(eventType enums.OutboxEventType, body []byte) (outbox.PayloadEnvelope, any, error)
}

type onceRunner interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error
}

type salesWriter interface {
	InsertSales(ctx context.Context, rows ...SalesRow) error
}

type ServiceParams struct {
	Subscription *gcppubsub.Subscriber
	Events       eventDecoder
	Idempotency  onceRunner
	Writer       salesWriter
	Logger       *logger.Logger
}

// Service streams payment entries from the analytics subscription into BigQuery.
type Service struct {
	subscription *gcppubsub.Subscriber
	events       eventDecoder
	idempotency  onceRunner
	writer       salesWriter
	logg         *logger.Logger
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	if p.Events == nil {
		return nil, errors.New("event registry is required")
	}
	if p.Idempotency == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if p.Writer == nil {
		return nil, errors.New("sales writer is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: p.Subscription,
		events:       p.Events,
		idempotency:  p.Idempotency,
		writer:       p.Writer,
		logg:         p.Logger,
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes analytics messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		innerCtx = s.logg.WithField(innerCtx, "message_id", msg.ID)
		if s.process(innerCtx, msg.Attributes, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, attrs map[string]string, data []byte) processResult {
	eventType := enums.OutboxEventType(strings.TrimSpace(attrs["event_type"]))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_type":     eventType,
		"aggregate_type": attrs["aggregate_type"],
		"aggregate_id":   attrs["aggregate_id"],
	})
	if eventType != enums.EventOrderPaymentApplied {
		return processResult{}
	}

	envelope, payload, err := s.events.Decode(eventType, data)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid analytics envelope")
		var nonRetryable registry.NonRetryableError
		return processResult{nack: !errors.As(err, &nonRetryable)}
	}
	if strings.TrimSpace(envelope.EventID) == "" {
		envelope.EventID = strings.TrimSpace(attrs["event_id"])
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}
	event, ok := payload.(*payloads.OrderPaymentAppliedEvent)
	if !ok {
		s.logg.Error(logCtx, "unexpected payload", fmt.Errorf("got %T", payload))
		return processResult{}
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id": eventID.String(),
		"order_id": event.OrderID.String(),
		"kind":     event.Kind,
	})

	err = s.idempotency.Once(logCtx, consumerName, eventID, func(ctx context.Context) error {
		return s.writer.InsertSales(ctx, salesRow(envelope, event))
	})
	switch {
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		s.logg.Info(logCtx, "event already processed")
	case err != nil:
		s.logg.Error(logCtx, "handler error", err)
		return processResult{nack: true}
	default:
		s.logg.Info(logCtx, "sales row inserted")
	}
	return processResult{}
}
