package orders

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox"
	"github.com/angelmondragon/bakehouse-backend/pkg/outbox/payloads"
)

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.AccountID == nil {
		return nil
	}
	return &outbox.ActorRef{AccountID: *actor.AccountID, Role: actor.Role.String()}
}

// recipientOf addresses mail to whoever placed the order.
func recipientOf(o *models.Order) payloads.Recipient {
	return payloads.Recipient{Email: o.Sender.Email, Name: fullName(o.Sender)}
}

func lineSummaries(o *models.Order) []payloads.OrderLine {
	out := make([]payloads.OrderLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		out = append(out, payloads.OrderLine{
			Name:        l.Name,
			VariantName: l.VariantName,
			Quantity:    l.Quantity,
			Amount:      l.Subtotal(),
		})
	}
	return out
}

// emitConfirmed queues the confirmation email, held back by the configured delay.
func (s *service) emitConfirmed(ctx context.Context, tx *gorm.DB, o *models.Order, actor Actor) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.ID,
		Actor:         actorRef(actor),
		Delay:         s.confirmationDelay,
		Data: payloads.OrderConfirmedEvent{
			OrderID:      o.ID,
			OrderNumber:  o.OrderNumber,
			Recipient:    recipientOf(o),
			DeliveryDate: o.DeliveryDate,
			Lines:        lineSummaries(o),
			DeliveryFee:  o.Delivery.Fee,
			Discount:     o.Discount,
			Paid:         o.Paid,
		},
	})
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, o *models.Order, from enums.OrderStatus, notify bool, actor Actor) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.ID,
		Actor:         actorRef(actor),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Recipient:   recipientOf(o),
			From:        from,
			To:          o.Status,
			Notify:      notify,
		},
	})
}

func (s *service) emitPaymentApplied(ctx context.Context, tx *gorm.DB, o *models.Order, p *models.OrderPayment) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentApplied,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.ID,
		Data: payloads.OrderPaymentAppliedEvent{
			OrderID:      o.ID,
			OrderNumber:  o.OrderNumber,
			Gateway:      p.Gateway,
			Kind:         p.Kind,
			ExternalID:   p.ExternalID,
			Amount:       p.Amount,
			Fee:          p.Fee,
			Status:       o.Status,
			DeliveryDate: o.DeliveryDate,
			AppliedAt:    s.clock.LocalNow().UTC(),
		},
	})
}

func (s *service) emitCancelled(ctx context.Context, tx *gorm.DB, o *models.Order, refunded decimal.Decimal, actor Actor) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.ID,
		Actor:         actorRef(actor),
		Data: payloads.OrderCancelledEvent{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Recipient:   recipientOf(o),
			Refunded:    refunded,
		},
	})
}
