package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
)

// CartDTO is the buyer's cart with current prices.
type CartDTO struct {
	ID        *uuid.UUID      `json:"id,omitempty"`
	BuyerID   uuid.UUID       `json:"buyer_id"`
	Items     []CartItemDTO   `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// CartItemDTO joins a cart line with the live product row. Prices are not
// frozen until the order is confirmed.
type CartItemDTO struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Unit              string          `json:"unit"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Quantity          int             `json:"quantity"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	QuantityAvailable int             `json:"quantity_available"`
	IsAvailable       bool            `json:"is_available"`
	IsOutOfStock      bool            `json:"is_out_of_stock"`
}

// AddItemInput is the buyer payload for POST /cart/items.
type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=100000"`
}

// UpdateItemInput is the buyer payload for PATCH /cart/items/{itemId}.
type UpdateItemInput struct {
	Quantity int `json:"quantity"`
}

func buildCartDTO(buyerID uuid.UUID, cart *models.Cart, items []models.CartItem, products map[uuid.UUID]models.Product) *CartDTO {
	dto := &CartDTO{
		BuyerID: buyerID,
		Items:   make([]CartItemDTO, 0, len(items)),
		Total:   decimal.Zero,
	}
	if cart != nil {
		id := cart.ID
		dto.ID = &id
	}
	for _, item := range items {
		line := CartItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: decimal.Zero,
			Subtotal:  decimal.Zero,
		}
		if product, ok := products[item.ProductID]; ok {
			line.ProductName = product.Name
			line.Unit = product.Unit
			line.UnitPrice = product.Price
			line.Subtotal = product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
			line.QuantityAvailable = product.Quantity
			line.IsAvailable = product.Available()
			line.IsOutOfStock = product.IsOutOfStock
		}
		dto.Total = dto.Total.Add(line.Subtotal)
		dto.ItemCount += item.Quantity
		dto.Items = append(dto.Items, line)
	}
	dto.Total = dto.Total.Round(2)
	return dto
}
