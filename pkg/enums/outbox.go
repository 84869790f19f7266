package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateReport OutboxAggregateType = "report"
	AggregateStock  OutboxAggregateType = "stock"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateReport,
	AggregateStock,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event relayed through the outbox.
type OutboxEventType string

const (
	EventOrderConfirmed      OutboxEventType = "order_confirmed"
	EventOrderStatusChanged  OutboxEventType = "order_status_changed"
	EventOrderPaymentApplied OutboxEventType = "order_payment_applied"
	EventOrderCancelled      OutboxEventType = "order_cancelled"
	EventLowStockDigest      OutboxEventType = "low_stock_digest"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderConfirmed,
	EventOrderStatusChanged,
	EventOrderPaymentApplied,
	EventOrderCancelled,
	EventLowStockDigest,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why an outbox event was parked.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
