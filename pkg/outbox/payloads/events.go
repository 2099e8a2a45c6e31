package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// OrderLine is the compact line snapshot carried on order events.
type OrderLine struct {
	LineItemID uuid.UUID `json:"line_item_id"`
	ProductID  uuid.UUID `json:"product_id"`
	FarmerID   uuid.UUID `json:"farmer_id"`
	Quantity   int       `json:"quantity"`
}

// OrderConfirmedEvent is emitted when a buyer's cart becomes a pending order.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	FarmerIDs   []uuid.UUID     `json:"farmer_ids"`
	Lines       []OrderLine     `json:"lines"`
}

// OrderApprovedEvent is emitted after stock has been deducted for every line.
type OrderApprovedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ApprovedAt  time.Time       `json:"approved_at"`
	Lines       []OrderLine     `json:"lines"`
}

// OrderRejectedEvent carries the admin's notes back to the buyer.
type OrderRejectedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	AdminNotes  *string   `json:"admin_notes,omitempty"`
	RejectedAt  time.Time `json:"rejected_at"`
}

type OrderCompletedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// OrderPendingNudgeEvent reminds admins of orders waiting for a decision.
type OrderPendingNudgeEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	OrderNumber  string            `json:"order_number"`
	BuyerID      uuid.UUID         `json:"buyer_id"`
	Status       enums.OrderStatus `json:"status"`
	PendingSince time.Time         `json:"pending_since"`
}

// ProductApprovalChangedEvent tells the listing farmer about an admin decision.
type ProductApprovalChangedEvent struct {
	ProductID  uuid.UUID `json:"product_id"`
	FarmerID   uuid.UUID `json:"farmer_id"`
	IsApproved bool      `json:"is_approved"`
}
