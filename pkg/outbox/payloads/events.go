package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Recipient is who a customer-facing email goes to.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// OrderLine is the read-only line summary rendered in emails.
type OrderLine struct {
	Name        string          `json:"name"`
	VariantName string          `json:"variantName,omitempty"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

// OrderConfirmedEvent is emitted once an order reaches CONFIRM.
type OrderConfirmedEvent struct {
	OrderID      uuid.UUID       `json:"orderId"`
	OrderNumber  string          `json:"orderNumber"`
	Recipient    Recipient       `json:"recipient"`
	DeliveryDate types.Date      `json:"deliveryDate"`
	Lines        []OrderLine     `json:"lines"`
	DeliveryFee  decimal.Decimal `json:"deliveryFee"`
	Discount     decimal.Decimal `json:"discount"`
	Paid         decimal.Decimal `json:"paid"`
}

// OrderStatusChangedEvent is emitted for admin and cron driven transitions.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	Recipient   Recipient         `json:"recipient"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	Notify      bool              `json:"notify"`
}

// OrderPaymentAppliedEvent is emitted for every payment or refund entry.
type OrderPaymentAppliedEvent struct {
	OrderID      uuid.UUID              `json:"orderId"`
	OrderNumber  string                 `json:"orderNumber"`
	Gateway      enums.PaymentType      `json:"gateway"`
	Kind         enums.PaymentEntryKind `json:"kind"`
	ExternalID   string                 `json:"externalId"`
	Amount       decimal.Decimal        `json:"amount"`
	Fee          decimal.Decimal        `json:"fee"`
	Status       enums.OrderStatus      `json:"status"`
	DeliveryDate types.Date             `json:"deliveryDate"`
	AppliedAt    time.Time              `json:"appliedAt"`
}

// OrderCancelledEvent is emitted when an order is cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	Recipient   Recipient       `json:"recipient"`
	Refunded    decimal.Decimal `json:"refunded"`
}

// LowStockItem is one row of the low stock digest.
type LowStockItem struct {
	Date        *types.Date `json:"date,omitempty"`
	ProductID   uuid.UUID   `json:"productId"`
	Name        string      `json:"name"`
	VariantName string      `json:"variantName,omitempty"`
	Qty         int         `json:"qty"`
	FixedStock  bool        `json:"fixedStock"`
}

// LowStockDigestEvent is emitted by the restock job when items are at or under the threshold.
type LowStockDigestEvent struct {
	Threshold int            `json:"threshold"`
	Items     []LowStockItem `json:"items"`
}
