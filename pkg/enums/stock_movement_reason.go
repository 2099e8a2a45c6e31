package enums

// StockMovementReason explains why a product quantity changed.
type StockMovementReason string

const (
	StockMovementOrderApproval    StockMovementReason = "order_approval"
	StockMovementManualAdjustment StockMovementReason = "manual_adjustment"
)

var validStockMovementReasons = []StockMovementReason{
	StockMovementOrderApproval,
	StockMovementManualAdjustment,
}

func (r StockMovementReason) String() string {
	return string(r)
}

func (r StockMovementReason) IsValid() bool {
	for _, candidate := range validStockMovementReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
