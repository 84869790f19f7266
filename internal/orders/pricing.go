package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/internal/delivery"
	"github.com/angelmondragon/bakehouse-backend/internal/promo"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
)

// Pricing is the money breakdown of an order before payments.
type Pricing struct {
	ProductsAmount   decimal.Decimal `json:"productsAmount"`
	DeliveryFee      decimal.Decimal `json:"deliveryFee"`
	PeakDaySurcharge decimal.Decimal `json:"peakDaySurcharge"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Discount         decimal.Decimal `json:"discount"`
	UsedFreeDelivery bool            `json:"usedFreeDelivery"`
}

// Payable is what remains for the customer once the discount is taken off.
// It goes negative when an absolute code exceeds the total.
func (p Pricing) Payable() decimal.Decimal {
	return p.TotalAmount.Sub(p.Discount)
}

type pricingInput struct {
	Setting        *models.Setting
	ProductsAmount decimal.Decimal
	Delivery       *delivery.Quote
	IsPeakDay      bool
	Promo          *promo.Applied
}

// deliveryFeeAfterThreshold applies the minimum-for-delivery rule: at or above
// the threshold the fee is waived, or reduced by the configured discount.
func deliveryFeeAfterThreshold(setting *models.Setting, productsAmount, fee decimal.Decimal) (decimal.Decimal, bool) {
	if setting == nil || !setting.MinForDeliveryActive || productsAmount.LessThan(setting.MinForDeliveryAmount) {
		return fee, false
	}
	if setting.FreeDelivery {
		return decimal.Zero, true
	}
	return money.FloorZero(fee.Sub(setting.DeliveryDiscount)), true
}

func price(in pricingInput) Pricing {
	products := money.Round2(in.ProductsAmount)
	fee := decimal.Zero
	if in.Delivery != nil {
		fee = in.Delivery.Fee
	}
	fee, usedFree := deliveryFeeAfterThreshold(in.Setting, products, fee)
	fee = money.Round2(fee)

	peak := decimal.Zero
	if in.IsPeakDay && in.Setting != nil && in.Delivery != nil && in.Delivery.NeedsPostalCode() {
		peak = money.Round2(in.Setting.PeakDaySurchargePrice)
	}

	subtotal := products.Add(fee)
	return Pricing{
		ProductsAmount:   products,
		DeliveryFee:      fee,
		PeakDaySurcharge: peak,
		TotalAmount:      money.Round2(subtotal.Add(peak)),
		Discount:         promo.ComputeDiscount(in.Promo, subtotal, fee),
		UsedFreeDelivery: usedFree,
	}
}

// appliedFromOrder rebuilds the redemption recorded on an order so the discount
// can be recomputed after an edit.
func appliedFromOrder(order *models.Order, code *models.PromoCode) *promo.Applied {
	if order.PromoCodeID == nil || code == nil {
		return nil
	}
	return &promo.Applied{
		PromoID:              code.ID,
		Type:                 code.Type,
		Amount:               code.Amount,
		IsIncludeDeliveryFee: code.IsIncludeDeliveryFee,
		UsedCode:             order.UsedCode,
	}
}

// applyPricing writes a pricing onto the order and rebalances unpaid so that
// total - discount == paid + unpaid.
func applyPricing(order *models.Order, p Pricing) {
	order.ProductsAmount = p.ProductsAmount
	order.Delivery.Fee = p.DeliveryFee
	order.PeakDaySurcharge = p.PeakDaySurcharge
	order.TotalAmount = p.TotalAmount
	order.Discount = p.Discount
	order.UsedFreeDelivery = p.UsedFreeDelivery
	rebalance(order)
}

func rebalance(order *models.Order) {
	order.Unpaid = money.Round2(order.TotalAmount.Sub(order.Discount).Sub(order.Paid))
}

// Summary is the cart quote returned before checkout.
type Summary struct {
	ProductsAmount   decimal.Decimal `json:"productsAmount"`
	MinAmount        decimal.Decimal `json:"minAmount"`
	MeetsMinimum     bool            `json:"meetsMinimum"`
	FreeDelivery     bool            `json:"freeDelivery"`
	DeliveryDiscount decimal.Decimal `json:"deliveryDiscount"`
	MinForDelivery   decimal.Decimal `json:"minForDelivery"`
	QualifiesForRule bool            `json:"qualifiesForDeliveryRule"`
	PeakDaySurcharge decimal.Decimal `json:"peakDaySurcharge"`
}

func summarize(setting *models.Setting, productsAmount decimal.Decimal) Summary {
	products := money.Round2(productsAmount)
	out := Summary{
		ProductsAmount:   products,
		MinAmount:        setting.MinAmount,
		MeetsMinimum:     !products.LessThan(setting.MinAmount),
		PeakDaySurcharge: setting.PeakDaySurchargePrice,
	}
	if setting.MinForDeliveryActive {
		out.MinForDelivery = setting.MinForDeliveryAmount
		out.FreeDelivery = setting.FreeDelivery
		out.DeliveryDiscount = setting.DeliveryDiscount
		out.QualifiesForRule = !products.LessThan(setting.MinForDeliveryAmount)
	}
	return out
}
