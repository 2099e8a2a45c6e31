package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// Order is the frozen snapshot of a confirmed cart plus its lifecycle status.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null"`
	DeliveryAddress *string           `gorm:"column:delivery_address"`
	DeliveryCity    *string           `gorm:"column:delivery_city"`
	DeliveryState   *string           `gorm:"column:delivery_state"`
	DeliveryZip     *string           `gorm:"column:delivery_zip"`
	DeliveryPhone   *string           `gorm:"column:delivery_phone"`
	BuyerNotes      *string           `gorm:"column:buyer_notes"`
	AdminNotes      *string           `gorm:"column:admin_notes"`
	CreatedAt       time.Time         `gorm:"column:created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	ApprovedAt      *time.Time        `gorm:"column:approved_at"`
	RejectedAt      *time.Time        `gorm:"column:rejected_at"`
	CompletedAt     *time.Time        `gorm:"column:completed_at"`
}
