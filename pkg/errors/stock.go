package errors

import (
	"fmt"

	"github.com/google/uuid"
)

// StockShortfall is the detail payload attached to INSUFFICIENT_STOCK errors.
type StockShortfall struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// Shortfall returns how many units are missing.
func (s StockShortfall) Shortfall() int {
	if s.Requested <= s.Available {
		return 0
	}
	return s.Requested - s.Available
}

// InsufficientStock builds the error returned when a requested quantity exceeds
// what the catalog currently holds.
func InsufficientStock(productID uuid.UUID, productName string, requested, available int) *Error {
	return Newf(CodeInsufficientStock, "Insufficient stock for %s. Available: %d, Requested: %d", productName, available, requested).WithDetails(StockShortfall{
		ProductID:   productID,
		ProductName: productName,
		Requested:   requested,
		Available:   available,
	})
}

// OutOfStock flags a product whose out-of-stock marker is set.
func OutOfStock(productID uuid.UUID, productName string) *Error {
	return Newf(CodeOutOfStock, "%s is out of stock", productName).
		WithDetails(map[string]any{"product_id": productID, "product_name": productName})
}

// ProductUnavailable flags a product that is no longer approved and active.
func ProductUnavailable(productID uuid.UUID, productName string) *Error {
	return Newf(CodeProductUnavailable, "Product %s is no longer available", productName).
		WithDetails(map[string]any{"product_id": productID, "product_name": productName})
}

// InvalidTransition reports a status precondition violation.
func InvalidTransition(entity string, from, to fmt.Stringer) *Error {
	return Newf(CodeInvalidTransition, "cannot move %s from %s to %s", entity, from, to).
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
