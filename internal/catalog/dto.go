package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// ProductDTO is the farmer and admin view of a listing.
type ProductDTO struct {
	ID           uuid.UUID         `json:"id"`
	FarmerID     uuid.UUID         `json:"farmer_id"`
	Name         string            `json:"name"`
	Description  *string           `json:"description,omitempty"`
	Category     *string           `json:"category,omitempty"`
	ProductType  enums.ProductType `json:"product_type"`
	Price        decimal.Decimal   `json:"price"`
	Quantity     int               `json:"quantity"`
	Unit         string            `json:"unit"`
	Location     *string           `json:"location,omitempty"`
	City         *string           `json:"city,omitempty"`
	State        *string           `json:"state,omitempty"`
	IsApproved   bool              `json:"is_approved"`
	IsActive     bool              `json:"is_active"`
	IsOutOfStock bool              `json:"is_out_of_stock"`
	ApprovedAt   *time.Time        `json:"approved_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func NewProductDTO(product *models.Product) *ProductDTO {
	return &ProductDTO{
		ID:           product.ID,
		FarmerID:     product.FarmerID,
		Name:         product.Name,
		Description:  product.Description,
		Category:     product.Category,
		ProductType:  product.ProductType,
		Price:        product.Price,
		Quantity:     product.Quantity,
		Unit:         product.Unit,
		Location:     product.Location,
		City:         product.City,
		State:        product.State,
		IsApproved:   product.IsApproved,
		IsActive:     product.IsActive,
		IsOutOfStock: product.IsOutOfStock,
		ApprovedAt:   product.ApprovedAt,
		CreatedAt:    product.CreatedAt,
		UpdatedAt:    product.UpdatedAt,
	}
}

// PendingListResult is one page of the admin review queue.
type PendingListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// StockMovementDTO is one entry of a listing's quantity audit trail.
type StockMovementDTO struct {
	ID              uuid.UUID                 `json:"id"`
	ProductID       uuid.UUID                 `json:"product_id"`
	OrderID         *uuid.UUID                `json:"order_id,omitempty"`
	OrderLineItemID *uuid.UUID                `json:"order_line_item_id,omitempty"`
	QuantityDelta   int                       `json:"quantity_delta"`
	QuantityBefore  int                       `json:"quantity_before"`
	QuantityAfter   int                       `json:"quantity_after"`
	Reason          enums.StockMovementReason `json:"reason"`
	ActorID         *uuid.UUID                `json:"actor_id,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

func NewStockMovementDTO(m *models.StockMovement) StockMovementDTO {
	return StockMovementDTO{
		ID:              m.ID,
		ProductID:       m.ProductID,
		OrderID:         m.OrderID,
		OrderLineItemID: m.OrderLineItemID,
		QuantityDelta:   m.QuantityDelta,
		QuantityBefore:  m.QuantityBefore,
		QuantityAfter:   m.QuantityAfter,
		Reason:          m.Reason,
		ActorID:         m.ActorID,
		CreatedAt:       m.CreatedAt,
	}
}

// CreateProductInput is the farmer payload for a new listing.
type CreateProductInput struct {
	Name        string            `json:"name" validate:"required,max=200"`
	Description *string           `json:"description"`
	Category    *string           `json:"category"`
	ProductType enums.ProductType `json:"product_type" validate:"required"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int               `json:"quantity" validate:"min=0"`
	Unit        string            `json:"unit" validate:"required,max=32"`
	Location    *string           `json:"location"`
	City        *string           `json:"city"`
	State       *string           `json:"state"`
}

// UpdateProductInput carries optional fields; nil leaves the column untouched.
type UpdateProductInput struct {
	Name        *string            `json:"name" validate:"omitempty,max=200"`
	Description *string            `json:"description"`
	Category    *string            `json:"category"`
	ProductType *enums.ProductType `json:"product_type"`
	Price       *decimal.Decimal   `json:"price"`
	Quantity    *int               `json:"quantity" validate:"omitempty,min=0"`
	Unit        *string            `json:"unit" validate:"omitempty,max=32"`
	Location    *string            `json:"location"`
	City        *string            `json:"city"`
	State       *string            `json:"state"`
	IsActive    *bool              `json:"is_active"`
}

// DeleteResult tells the caller whether the listing is gone or only hidden.
type DeleteResult struct {
	ProductID   uuid.UUID `json:"product_id"`
	Deleted     bool      `json:"deleted"`
	Deactivated bool      `json:"deactivated"`
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
