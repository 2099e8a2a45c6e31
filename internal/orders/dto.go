package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/internal/users"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// DeliveryOverride replaces individual fields of the buyer profile snapshot.
type DeliveryOverride struct {
	Address *string `json:"address"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Zip     *string `json:"zip"`
	Phone   *string `json:"phone"`
}

// ConfirmInput is the buyer payload for POST /orders.
type ConfirmInput struct {
	Delivery *DeliveryOverride `json:"delivery"`
	Notes    *string           `json:"notes" validate:"omitempty,max=1000"`
}

// RejectInput is the admin payload for the reject endpoint.
type RejectInput struct {
	Notes *string `json:"notes" validate:"omitempty,max=1000"`
}

type DeliveryDTO struct {
	Address *string `json:"address,omitempty"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Zip     *string `json:"zip,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

type LineItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	FarmerID     uuid.UUID       `json:"farmer_id"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
	Unit         string          `json:"unit"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// OrderDTO is the order view shared by buyers, farmers, and admins. For
// farmers Items holds only their own lines and FarmerSubtotal sums them.
type OrderDTO struct {
	ID             uuid.UUID         `json:"id"`
	OrderNumber    string            `json:"order_number"`
	BuyerID        uuid.UUID         `json:"buyer_id"`
	Status         enums.OrderStatus `json:"status"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	FarmerSubtotal *decimal.Decimal  `json:"farmer_subtotal,omitempty"`
	Delivery       DeliveryDTO       `json:"delivery"`
	BuyerNotes     *string           `json:"buyer_notes,omitempty"`
	AdminNotes     *string           `json:"admin_notes,omitempty"`
	Items          []LineItemDTO     `json:"items"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ApprovedAt     *time.Time        `json:"approved_at,omitempty"`
	RejectedAt     *time.Time        `json:"rejected_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

type ListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// DashboardStats backs the admin dashboard.
type DashboardStats struct {
	OrdersByStatus map[enums.OrderStatus]int64 `json:"orders_by_status"`
	TotalOrders    int64                       `json:"total_orders"`
	TotalRevenue   decimal.Decimal             `json:"total_revenue"`
	Products       catalog.ProductCounts       `json:"products"`
	Users          users.Counts                `json:"users"`
}

// FarmerAnalytics backs the farmer dashboard. Revenue and items sold count
// lines of approved and completed orders.
type FarmerAnalytics struct {
	Products       catalog.FarmerProductCounts `json:"products"`
	TotalLineItems int64                       `json:"total_line_items"`
	TotalRevenue   decimal.Decimal             `json:"total_revenue"`
	ItemsSold      int64                       `json:"items_sold"`
}

func newOrderDTO(order *models.Order, items []models.OrderLineItem) *OrderDTO {
	dto := &OrderDTO{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		BuyerID:     order.BuyerID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Delivery: DeliveryDTO{
			Address: order.DeliveryAddress,
			City:    order.DeliveryCity,
			State:   order.DeliveryState,
			Zip:     order.DeliveryZip,
			Phone:   order.DeliveryPhone,
		},
		BuyerNotes:  order.BuyerNotes,
		AdminNotes:  order.AdminNotes,
		Items:       make([]LineItemDTO, 0, len(items)),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		ApprovedAt:  order.ApprovedAt,
		RejectedAt:  order.RejectedAt,
		CompletedAt: order.CompletedAt,
	}
	for _, item := range items {
		dto.Items = append(dto.Items, LineItemDTO{
			ID:           item.ID,
			ProductID:    item.ProductID,
			FarmerID:     item.FarmerID,
			ProductName:  item.ProductName,
			ProductPrice: item.ProductPrice,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			Subtotal:     item.Subtotal,
		})
	}
	return dto
}

// newFarmerOrderDTO keeps only the farmer's lines.
func newFarmerOrderDTO(order *models.Order, items []models.OrderLineItem, farmerID uuid.UUID) *OrderDTO {
	own := make([]models.OrderLineItem, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		if item.FarmerID != farmerID {
			continue
		}
		own = append(own, item)
		subtotal = subtotal.Add(item.Subtotal)
	}
	dto := newOrderDTO(order, own)
	subtotal = subtotal.Round(2)
	dto.FarmerSubtotal = &subtotal
	return dto
}
