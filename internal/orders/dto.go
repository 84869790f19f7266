package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/internal/catalog"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Actor is who drives a workflow call. Guests carry no account.
type Actor struct {
	AccountID  *uuid.UUID
	CustomerID *uuid.UUID
	Role       enums.AccountRole
}

func (a Actor) isAdmin() bool {
	return a.Role == enums.AccountRoleAdmin
}

// DeliveryInput is the delivery selection submitted at checkout.
type DeliveryInput struct {
	MethodID   uuid.UUID  `json:"methodId" validate:"required"`
	TimeSlotID *uuid.UUID `json:"timeSlotId,omitempty"`
	Address    string     `json:"address,omitempty" validate:"max=300"`
	Unit       string     `json:"unit,omitempty" validate:"max=50"`
	PostalCode string     `json:"postalCode,omitempty" validate:"max=12"`
}

// ContactInput is a sender or recipient block.
type ContactInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=30"`
}

func (c ContactInput) model() models.Contact {
	return models.Contact{FirstName: c.FirstName, LastName: c.LastName, Email: c.Email, Phone: c.Phone}
}

// QuoteRequest prices a cart without persisting anything.
type QuoteRequest struct {
	Lines []catalog.CartLine `json:"lines" validate:"required,min=1,dive"`
}

// CreateOrderRequest is a storefront checkout.
type CreateOrderRequest struct {
	Lines        []catalog.CartLine `json:"lines" validate:"required,min=1,dive"`
	Delivery     DeliveryInput      `json:"delivery" validate:"required"`
	DeliveryDate types.Date         `json:"deliveryDate"`
	Sender       ContactInput       `json:"sender" validate:"required"`
	Recipient    ContactInput       `json:"recipient" validate:"required"`
	GiftMessage  string             `json:"giftMessage,omitempty" validate:"max=500"`
	Remark       string             `json:"remark,omitempty" validate:"max=500"`
	PromoCode    string             `json:"promoCode,omitempty" validate:"max=40"`
}

// AdhocOrderRequest is an order keyed in by staff, optionally with money
// already collected.
type AdhocOrderRequest struct {
	CreateOrderRequest
	Paid decimal.Decimal `json:"paid"`
	Note string          `json:"note,omitempty" validate:"max=1000"`
	Tags []string        `json:"tags,omitempty" validate:"max=20,dive,max=40"`
}

// CustomerUpdateRequest is what a customer may change on a PENDING order.
type CustomerUpdateRequest struct {
	Delivery     DeliveryInput `json:"delivery" validate:"required"`
	DeliveryDate types.Date    `json:"deliveryDate"`
	Sender       ContactInput  `json:"sender" validate:"required"`
	Recipient    ContactInput  `json:"recipient" validate:"required"`
	GiftMessage  string        `json:"giftMessage,omitempty" validate:"max=500"`
}

// AdminUpdateRequest re-prices an order. Paid overrides the collected amount
// for money taken outside the gateways.
type AdminUpdateRequest struct {
	Lines        []catalog.CartLine `json:"lines" validate:"required,min=1,dive"`
	Delivery     DeliveryInput      `json:"delivery" validate:"required"`
	DeliveryDate types.Date         `json:"deliveryDate"`
	Sender       ContactInput       `json:"sender" validate:"required"`
	Recipient    ContactInput       `json:"recipient" validate:"required"`
	GiftMessage  string             `json:"giftMessage,omitempty" validate:"max=500"`
	Note         string             `json:"note,omitempty" validate:"max=1000"`
	Tags         []string           `json:"tags,omitempty" validate:"max=20,dive,max=40"`
	Paid         *decimal.Decimal   `json:"paid,omitempty"`
	MakeRefund   bool               `json:"makeRefund"`
}

// StatusUpdateRequest moves many orders at once.
type StatusUpdateRequest struct {
	OrderIDs []uuid.UUID       `json:"orderIds" validate:"required,min=1,max=200"`
	Status   enums.OrderStatus `json:"status" validate:"required"`
	Notify   bool              `json:"notify"`
}

// StatusUpdateResult reports which orders moved.
type StatusUpdateResult struct {
	Updated []uuid.UUID       `json:"updated"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// RefundRequest returns money to the customer.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason,omitempty" validate:"max=300"`
}

// CancelRequest cancels an order with an optional refund.
type CancelRequest struct {
	RefundAmount decimal.Decimal `json:"refundAmount"`
	Notify       bool            `json:"notify"`
}

// PaymentEvent is a gateway notification normalized for PaymentSuccess.
// Refunds carry a negative Amount and ParentRef names the reversed payment.
type PaymentEvent struct {
	OrderID    uuid.UUID
	Gateway    enums.PaymentType
	Kind       enums.PaymentEntryKind
	ExternalID string
	ParentRef  string
	Amount     decimal.Decimal
	Fee        decimal.Decimal
	Raw        json.RawMessage
}

// PaymentResult tells the caller whether the event changed the order.
type PaymentResult struct {
	Order     *models.Order
	Applied   bool
	Confirmed bool
}

// StripeSession is what the storefront needs to confirm a card payment.
type StripeSession struct {
	PaymentIntentID string          `json:"paymentIntentId"`
	ClientSecret    string          `json:"clientSecret"`
	Amount          decimal.Decimal `json:"amount"`
}

// HitPaySession is the hosted checkout the customer is redirected to.
type HitPaySession struct {
	PaymentRequestID string          `json:"paymentRequestId"`
	URL              string          `json:"url"`
	Amount           decimal.Decimal `json:"amount"`
}

// ListQuery filters the admin listing.
type ListQuery struct {
	Statuses     []enums.OrderStatus
	Type         enums.OrderType
	DeliveryDate *types.Date
	Keyword      string
	Limit        int
	Cursor       string
}

// OrderSummaryDTO is one row of the admin listing.
type OrderSummaryDTO struct {
	ID           uuid.UUID         `json:"id"`
	OrderNumber  string            `json:"orderNumber"`
	Type         enums.OrderType   `json:"type"`
	Status       enums.OrderStatus `json:"status"`
	DeliveryDate types.Date        `json:"deliveryDate"`
	Method       string            `json:"deliveryMethod"`
	Sender       string            `json:"sender"`
	Recipient    string            `json:"recipient"`
	Items        int               `json:"items"`
	TotalAmount  decimal.Decimal   `json:"totalAmount"`
	Discount     decimal.Decimal   `json:"discount"`
	Paid         decimal.Decimal   `json:"paid"`
	Unpaid       decimal.Decimal   `json:"unpaid"`
	Tags         []string          `json:"tags,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func fullName(c models.Contact) string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ToSummaryDTO flattens an order for listings.
func ToSummaryDTO(o *models.Order) OrderSummaryDTO {
	items := 0
	for _, l := range o.Lines {
		items += l.Quantity
	}
	return OrderSummaryDTO{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		Type:         o.Type,
		Status:       o.Status,
		DeliveryDate: o.DeliveryDate,
		Method:       o.Delivery.MethodName,
		Sender:       fullName(o.Sender),
		Recipient:    fullName(o.Recipient),
		Items:        items,
		TotalAmount:  o.TotalAmount,
		Discount:     o.Discount,
		Paid:         o.Paid,
		Unpaid:       o.Unpaid,
		Tags:         o.Tags,
		CreatedAt:    o.CreatedAt,
	}
}
