package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Contact is a sender or recipient block on an order.
type Contact struct {
	FirstName string `gorm:"column:first_name" json:"firstName"`
	LastName  string `gorm:"column:last_name" json:"lastName"`
	Email     string `gorm:"column:email" json:"email"`
	Phone     string `gorm:"column:phone" json:"phone"`
}

// OrderDelivery is the delivery selection snapshotted onto an order.
type OrderDelivery struct {
	MethodID      uuid.UUID                `gorm:"column:method_id;type:uuid" json:"methodId"`
	MethodName    string                   `gorm:"column:method_name" json:"methodName"`
	Type          enums.DeliveryMethodType `gorm:"column:type;type:text" json:"type"`
	TimeSlotID    *uuid.UUID               `gorm:"column:time_slot_id;type:uuid" json:"timeSlotId,omitempty"`
	TimeSlotLabel string                   `gorm:"column:time_slot_label" json:"timeSlotLabel,omitempty"`
	Address       string                   `gorm:"column:address" json:"address,omitempty"`
	Unit          string                   `gorm:"column:unit" json:"unit,omitempty"`
	PostalCode    string                   `gorm:"column:postal_code" json:"postalCode,omitempty"`
	Fee           decimal.Decimal          `gorm:"column:fee;type:numeric(12,2)" json:"fee"`
}

// Order is the aggregate root of the checkout workflow.
// TotalAmount - Discount == Paid + Unpaid after every money mutation.
type Order struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber      string             `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number" json:"orderNumber"`
	CustomerID       uuid.UUID          `gorm:"column:customer_id;type:uuid;not null;index" json:"customerId"`
	AccountID        *uuid.UUID         `gorm:"column:account_id;type:uuid" json:"accountId,omitempty"`
	PromoCodeID      *uuid.UUID         `gorm:"column:promo_code_id;type:uuid;index" json:"promoCodeId,omitempty"`
	UsedCode         string             `gorm:"column:used_code;not null;default:''" json:"usedCode,omitempty"`
	DeliveryDate     types.Date         `gorm:"column:delivery_date;type:date;not null;index" json:"deliveryDate"`
	Type             enums.OrderType    `gorm:"column:type;type:text;not null" json:"type"`
	Status           enums.OrderStatus  `gorm:"column:status;type:text;not null;index" json:"status"`
	PaymentType      *enums.PaymentType `gorm:"column:payment_type;type:text" json:"paymentType,omitempty"`
	PaidAt           *time.Time         `gorm:"column:paid_at" json:"paidAt,omitempty"`
	Delivery         OrderDelivery      `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery"`
	Sender           Contact            `gorm:"embedded;embeddedPrefix:sender_" json:"sender"`
	Recipient        Contact            `gorm:"embedded;embeddedPrefix:recipient_" json:"recipient"`
	GiftMessage      string             `gorm:"column:gift_message;not null;default:''" json:"giftMessage,omitempty"`
	Remark           string             `gorm:"column:remark;not null;default:''" json:"remark,omitempty"`
	Note             string             `gorm:"column:note;not null;default:''" json:"note,omitempty"`
	Tags             []string           `gorm:"column:tags;type:jsonb;serializer:json" json:"tags,omitempty"`
	DeliveryZoneID   *uuid.UUID         `gorm:"column:delivery_zone_id;type:uuid" json:"deliveryZoneId,omitempty"`
	ProductsAmount   decimal.Decimal    `gorm:"column:products_amount;type:numeric(12,2);not null" json:"productsAmount"`
	PeakDaySurcharge decimal.Decimal    `gorm:"column:peak_day_surcharge;type:numeric(12,2);not null;default:0" json:"peakDaySurcharge"`
	Discount         decimal.Decimal    `gorm:"column:discount;type:numeric(12,2);not null;default:0" json:"discount"`
	TotalAmount      decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null" json:"totalAmount"`
	Paid             decimal.Decimal    `gorm:"column:paid;type:numeric(12,2);not null;default:0" json:"paid"`
	Unpaid           decimal.Decimal    `gorm:"column:unpaid;type:numeric(12,2);not null;default:0" json:"unpaid"`
	Fees             decimal.Decimal    `gorm:"column:fees;type:numeric(12,2);not null;default:0" json:"fees"`
	UsedFreeDelivery bool               `gorm:"column:used_free_delivery;not null;default:false" json:"usedFreeDelivery"`
	StockHeld        bool               `gorm:"column:stock_held;not null;default:false" json:"-"`
	Lines            []OrderLine        `gorm:"foreignKey:OrderID" json:"lines"`
	Payments         []OrderPayment     `gorm:"foreignKey:OrderID" json:"payments"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// Payable is what the customer still owes before any gateway payment was applied.
func (o *Order) Payable() decimal.Decimal {
	return o.TotalAmount.Sub(o.Discount)
}

// HasPaymentRef reports whether the payment log already holds an entry for the gateway reference.
func (o *Order) HasPaymentRef(gateway enums.PaymentType, externalID string, kind enums.PaymentEntryKind) bool {
	for _, p := range o.Payments {
		if p.Gateway == gateway && p.ExternalID == externalID && p.Kind == kind {
			return true
		}
	}
	return false
}

// LineComponent is a product packed inside a bundle or slice-box line.
type LineComponent struct {
	ProductID   uuid.UUID  `json:"productId"`
	VariantID   *uuid.UUID `json:"variantId,omitempty"`
	Name        string     `json:"name"`
	VariantName string     `json:"variantName,omitempty"`
	Qty         int        `json:"qty"`
}

// OrderLine is a priced snapshot of a cart line.
type OrderLine struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index" json:"orderId"`
	Position    int                 `gorm:"column:position;not null;default:0" json:"position"`
	Kind        enums.OrderLineKind `gorm:"column:kind;type:text;not null" json:"kind"`
	ProductID   *uuid.UUID          `gorm:"column:product_id;type:uuid" json:"productId,omitempty"`
	VariantID   *uuid.UUID          `gorm:"column:variant_id;type:uuid" json:"variantId,omitempty"`
	BundleID    *uuid.UUID          `gorm:"column:bundle_id;type:uuid" json:"bundleId,omitempty"`
	SliceBoxID  *uuid.UUID          `gorm:"column:slice_box_id;type:uuid" json:"sliceBoxId,omitempty"`
	Name        string              `gorm:"column:name;not null" json:"name"`
	VariantName string              `gorm:"column:variant_name;not null;default:''" json:"variantName,omitempty"`
	Category    string              `gorm:"column:category;not null;default:''" json:"category,omitempty"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	Quantity    int                 `gorm:"column:quantity;not null" json:"quantity"`
	Candles     int                 `gorm:"column:candles;not null;default:0" json:"candles,omitempty"`
	Knives      int                 `gorm:"column:knives;not null;default:0" json:"knives,omitempty"`
	Message     string              `gorm:"column:message;not null;default:''" json:"message,omitempty"`
	Components  []LineComponent     `gorm:"column:components;type:jsonb;serializer:json" json:"components,omitempty"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// Subtotal is price times quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderPayment is an append-only entry of the payment log. Refunds carry a negative
// amount and ParentRef points at the payment they reverse.
type OrderPayment struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index" json:"orderId"`
	Gateway    enums.PaymentType      `gorm:"column:gateway;type:text;not null;uniqueIndex:ux_order_payments_ref" json:"gateway"`
	Kind       enums.PaymentEntryKind `gorm:"column:kind;type:text;not null;uniqueIndex:ux_order_payments_ref" json:"kind"`
	ExternalID string                 `gorm:"column:external_id;not null;uniqueIndex:ux_order_payments_ref" json:"externalId"`
	ParentRef  string                 `gorm:"column:parent_ref;not null;default:''" json:"parentRef,omitempty"`
	Amount     decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Fee        decimal.Decimal        `gorm:"column:fee;type:numeric(12,2);not null;default:0" json:"fee"`
	Raw        json.RawMessage        `gorm:"column:raw;type:jsonb" json:"raw,omitempty"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (p *OrderPayment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
