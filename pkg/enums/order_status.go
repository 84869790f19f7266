package enums

import "fmt"

// OrderStatus tracks the lifecycle of a bakery order.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "PENDING"
	OrderStatusPendingPayment     OrderStatus = "PENDING_PAYMENT"
	OrderStatusConfirm            OrderStatus = "CONFIRM"
	OrderStatusDelivering         OrderStatus = "DELIVERING"
	OrderStatusReadyForCollection OrderStatus = "READY_FOR_COLLECTION"
	OrderStatusCompleted          OrderStatus = "COMPLETED"
	OrderStatusCancelled          OrderStatus = "CANCELLED"
	OrderStatusExpired            OrderStatus = "EXPIRED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPendingPayment,
	OrderStatusConfirm,
	OrderStatusDelivering,
	OrderStatusReadyForCollection,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusExpired,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusExpired
}

// AwaitingPayment reports whether the order still accepts gateway payments.
func (s OrderStatus) AwaitingPayment() bool {
	return s == OrderStatusPending || s == OrderStatusPendingPayment
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:            {OrderStatusConfirm, OrderStatusPendingPayment, OrderStatusExpired, OrderStatusCancelled},
	OrderStatusPendingPayment:     {OrderStatusConfirm, OrderStatusCancelled},
	OrderStatusConfirm:            {OrderStatusDelivering, OrderStatusReadyForCollection, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusDelivering:         {OrderStatusCompleted},
	OrderStatusReadyForCollection: {OrderStatusCompleted},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
