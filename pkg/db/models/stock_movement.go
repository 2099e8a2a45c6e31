package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// StockMovement is an append-only audit row for every quantity change.
type StockMovement struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	OrderID         *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	OrderLineItemID *uuid.UUID                `gorm:"column:order_line_item_id;type:uuid"`
	FarmerID        uuid.UUID                 `gorm:"column:farmer_id;type:uuid;not null"`
	QuantityDelta   int                       `gorm:"column:quantity_delta;not null"`
	QuantityBefore  int                       `gorm:"column:quantity_before;not null"`
	QuantityAfter   int                       `gorm:"column:quantity_after;not null"`
	Reason          enums.StockMovementReason `gorm:"column:reason;type:text;not null"`
	ActorID         *uuid.UUID                `gorm:"column:actor_id;type:uuid"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
