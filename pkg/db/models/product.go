package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// Product is a farmer listing with its quantity on hand.
type Product struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	FarmerID     uuid.UUID         `gorm:"column:farmer_id;type:uuid;not null;index"`
	Name         string            `gorm:"column:name;not null"`
	Description  *string           `gorm:"column:description"`
	Category     *string           `gorm:"column:category"`
	ProductType  enums.ProductType `gorm:"column:product_type;type:text;not null"`
	Price        decimal.Decimal   `gorm:"column:price;type:numeric(10,2);not null"`
	Quantity     int               `gorm:"column:quantity;not null;default:0"`
	Unit         string            `gorm:"column:unit;not null"`
	Location     *string           `gorm:"column:location"`
	City         *string           `gorm:"column:city"`
	State        *string           `gorm:"column:state"`
	IsApproved   bool              `gorm:"column:is_approved;not null;default:false"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true"`
	IsOutOfStock bool              `gorm:"column:is_out_of_stock;not null;default:false"`
	ApprovedAt   *time.Time        `gorm:"column:approved_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Available reports whether buyers may add the product to a cart or order it.
func (p Product) Available() bool {
	return p.IsApproved && p.IsActive
}

// SetQuantity stores qty clamped at zero and keeps the out-of-stock flag in step.
func (p *Product) SetQuantity(qty int) {
	if qty < 0 {
		qty = 0
	}
	p.Quantity = qty
	p.IsOutOfStock = qty == 0
}
