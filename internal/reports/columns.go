package reports

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
)

// WholeCakeCategory is the catalog category the Wholecakes sheet keeps.
const WholeCakeCategory = "whole-cakes"

// row is one line of an order as it appears on a production sheet. Line is
// nil on per-order sheets.
type row struct {
	order *models.Order
	line  *models.OrderLine
	zone  string
}

type column struct {
	header string
	width  float64
	value  func(r row) any
}

func zonePrefix(r row) any {
	code := strings.TrimSpace(r.order.Delivery.PostalCode)
	if len(code) < 3 {
		return code
	}
	return code[:3]
}

func fullName(c models.Contact) string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func address(o *models.Order) string {
	if o.Delivery.Type == enums.DeliveryMethodCollection {
		return ""
	}
	if o.Delivery.Unit == "" {
		return o.Delivery.Address
	}
	return o.Delivery.Address + " " + o.Delivery.Unit
}

func deliveryLabel(o *models.Order) string {
	if o.Delivery.TimeSlotLabel == "" {
		return o.Delivery.MethodName
	}
	return fmt.Sprintf("%s (%s)", o.Delivery.MethodName, o.Delivery.TimeSlotLabel)
}

// itemName renders a line with the packed components of bundles and slice boxes.
func itemName(l *models.OrderLine) string {
	name := l.Name
	if l.VariantName != "" {
		name += " - " + l.VariantName
	}
	if len(l.Components) == 0 {
		return name
	}
	parts := make([]string, 0, len(l.Components))
	for _, c := range l.Components {
		part := fmt.Sprintf("%d x %s", c.Qty, c.Name)
		if c.VariantName != "" {
			part += " - " + c.VariantName
		}
		parts = append(parts, part)
	}
	return name + "\n" + strings.Join(parts, "\n")
}

func bundleName(l *models.OrderLine) string {
	if l.Kind == enums.OrderLineBundle {
		return l.Name
	}
	return ""
}

func lineValue(fn func(l *models.OrderLine) any) func(r row) any {
	return func(r row) any {
		if r.line == nil {
			return ""
		}
		return fn(r.line)
	}
}

var (
	colZoneID        = column{"first 3 numbers of postal code", 12, zonePrefix}
	colZone          = column{"Zone", 15, func(r row) any { return r.zone }}
	colOrderNo       = column{"Order no.", 12, func(r row) any { return r.order.OrderNumber }}
	colSenderName    = column{"Sender Name", 20, func(r row) any { return fullName(r.order.Sender) }}
	colSenderPhone   = column{"Sender Number", 15, func(r row) any { return r.order.Sender.Phone }}
	colSenderEmail   = column{"Sender Email", 25, func(r row) any { return r.order.Sender.Email }}
	colRecipientName = column{"Recipient Name", 20, func(r row) any { return fullName(r.order.Recipient) }}
	colRecipientTel  = column{"Recipient Phone", 15, func(r row) any { return r.order.Recipient.Phone }}
	colAddress       = column{"Address", 40, func(r row) any { return address(r.order) }}
	colPostalCode    = column{"Postal code", 12, func(r row) any { return r.order.Delivery.PostalCode }}
	colQuantity      = column{"Quantity", 10, lineValue(func(l *models.OrderLine) any { return l.Quantity })}
	colItem          = column{"Item Name", 30, lineValue(func(l *models.OrderLine) any { return itemName(l) })}
	colDelivery      = column{"Delivery type", 20, func(r row) any { return deliveryLabel(r.order) }}
	colDeliveryFee   = column{"Delivery fee", 12, func(r row) any { return r.order.Delivery.Fee.StringFixed(2) }}
	colCandles       = column{"Candles", 10, lineValue(func(l *models.OrderLine) any { return l.Candles })}
	colMessage       = column{"Message on cake", 20, lineValue(func(l *models.OrderLine) any { return l.Message })}
	colKnife         = column{"Cake Knife", 10, lineValue(func(l *models.OrderLine) any { return l.Knives })}
	colBundle        = column{"Bundle", 20, lineValue(func(l *models.OrderLine) any { return bundleName(l) })}
	colGiftMessage   = column{"Gift message", 30, func(r row) any { return r.order.GiftMessage }}
	colNote          = column{"Instruction to team", 40, func(r row) any { return r.order.Note }}
	colDiscountCode  = column{"Discount Code", 15, func(r row) any { return r.order.UsedCode }}
	colTags          = column{"Tags", 20, func(r row) any { return strings.Join(r.order.Tags, ", ") }}
	colRemark        = column{"Internal remark", 20, func(r row) any { return r.order.Remark }}
	colDeliveryDate  = column{"Delivery date", 12, func(r row) any { return r.order.DeliveryDate.String() }}
	colOrderDate     = column{"Order date", 18, func(r row) any { return r.order.CreatedAt.Format("2006-01-02 15:04") }}
	colStatus        = column{"Order status", 20, func(r row) any { return string(r.order.Status) }}
)

var masterColumns = []column{
	colZoneID, colZone, colOrderNo, colSenderName, colSenderPhone, colRecipientName, colRecipientTel,
	colAddress, colPostalCode, colQuantity, colItem, colDelivery, colDeliveryFee, colCandles, colMessage,
	colKnife, colBundle, colGiftMessage, colNote, colDiscountCode, colTags, colRemark, colDeliveryDate,
	colOrderDate, colStatus,
}

var packingColumns = []column{
	colZoneID, colZone, colOrderNo, colSenderName, colRecipientName, colQuantity, colItem,
	colGiftMessage, colNote, colTags, colRemark, colStatus,
}

var deliveryColumns = []column{
	colZoneID, colZone, colDeliveryDate, colOrderNo, colSenderName, colSenderPhone, colSenderEmail,
	colRecipientName, colRecipientTel, colAddress, colPostalCode, colTags, colDelivery, colStatus,
}

var wholecakeColumns = []column{
	colZoneID, colZone, colOrderNo, colSenderName, colRecipientName, colQuantity, colItem, colMessage,
	colCandles, colKnife, colGiftMessage, colNote, colTags, colRemark, colStatus,
}
