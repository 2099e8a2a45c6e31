package orders

import (
	"time"

	"github.com/google/uuid"
)

const orderNumberLayout = "20060102150405"

// OrderNumber renders ORD-<YYYYMMDDHHMMSS>-<orderId> using the UTC creation time.
func OrderNumber(createdAt time.Time, orderID uuid.UUID) string {
	return "ORD-" + createdAt.UTC().Format(orderNumberLayout) + "-" + orderID.String()
}
