package models

// All lists every persisted model, in dependency order, for test schemas.
func All() []any {
	return []any{
		&Setting{},
		&Product{},
		&ProductVariant{},
		&Bundle{},
		&SliceBoxOption{},
		&StockRecord{},
		&StockMovement{},
		&PromoCode{},
		&PromoPoolCode{},
		&DeliveryMethod{},
		&DeliveryTimeSlot{},
		&Outskirt{},
		&DeliveryZone{},
		&Customer{},
		&Account{},
		&Order{},
		&OrderLine{},
		&OrderPayment{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
