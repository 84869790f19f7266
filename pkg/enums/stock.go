package enums

// StockMovementReason labels a row of the stock movement log.
type StockMovementReason string

const (
	StockMovementRestock        StockMovementReason = "restock"
	StockMovementRestockVariant StockMovementReason = "restock variant"
	StockMovementSold           StockMovementReason = "sold"
	StockMovementRefill         StockMovementReason = "refill"
	StockMovementAdminSet       StockMovementReason = "set by admin"
	StockMovementFixedSold      StockMovementReason = "fixed stock sold"
	StockMovementFixedRefill    StockMovementReason = "fixed stock refill"
)
