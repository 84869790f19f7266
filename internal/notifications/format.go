package notifications

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
)

var statusLabels = map[enums.OrderStatus]string{
	enums.OrderStatusConfirm:            "confirmed",
	enums.OrderStatusDelivering:         "out for delivery",
	enums.OrderStatusReadyForCollection: "ready for collection",
	enums.OrderStatusCompleted:          "completed",
	enums.OrderStatusCancelled:          "cancelled",
	enums.OrderStatusExpired:            "expired",
}

func statusLabel(status enums.OrderStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// nonZero renders an amount, or "" so templates can skip the row.
func nonZero(amount decimal.Decimal) string {
	if amount.IsZero() {
		return ""
	}
	return amount.StringFixed(2)
}
