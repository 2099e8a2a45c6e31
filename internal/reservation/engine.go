// Package reservation validates and deducts stock for an order inside the
// caller's transaction.
package reservation

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

type reservationMetrics interface {
	IncReservationFailure(reason string)
	ObserveReservation(d time.Duration)
}

// Engine deducts stock for every line of an order or for none of them.
type Engine struct {
	store   *catalog.Store
	metrics reservationMetrics
	now     func() time.Time
}

func NewEngine(store *catalog.Store, metrics reservationMetrics) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	return &Engine{store: store, metrics: metrics, now: time.Now}, nil
}

// Deduction summarises the stock change applied to one product.
type Deduction struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	Before      int
	After       int
}

type Result struct {
	Deductions []Deduction
	Movements  []models.StockMovement
}

type demand struct {
	productID uuid.UUID
	name      string
	quantity  int
}

// Reserve locks every product referenced by lines in ascending id order,
// checks that each has enough stock, then deducts and writes one stock
// movement per line. tx must be the transaction that also flips the order
// status; any returned error leaves the caller to roll it back.
func (e *Engine) Reserve(ctx context.Context, tx *gorm.DB, order *models.Order, lines []models.OrderLineItem, actor types.Actor) (*Result, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
	}

	started := e.now()
	result, err := e.reserve(ctx, e.store.WithTx(tx), order, lines, actor)
	if e.metrics != nil {
		e.metrics.ObserveReservation(e.now().Sub(started))
		if err != nil {
			e.metrics.IncReservationFailure(failureReason(err))
		}
	}
	return result, err
}

func (e *Engine) reserve(ctx context.Context, store *catalog.Store, order *models.Order, lines []models.OrderLineItem, actor types.Actor) (*Result, error) {
	demands := aggregate(lines)

	locked := make(map[uuid.UUID]*models.Product, len(demands))
	for _, id := range sortedIDs(demands) {
		product, err := store.LockProduct(ctx, id)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			return nil, err
		}
		locked[id] = product
	}

	// Validate everything before the first write so a failure never leaves a
	// partial deduction for the transaction to undo.
	for _, d := range demands {
		product, ok := locked[d.productID]
		if !ok {
			return nil, pkgerrors.InsufficientStock(d.productID, d.name, d.quantity, 0)
		}
		if product.Quantity < d.quantity {
			return nil, pkgerrors.InsufficientStock(product.ID, product.Name, d.quantity, product.Quantity)
		}
	}

	result := &Result{Deductions: make([]Deduction, 0, len(demands))}
	running := make(map[uuid.UUID]int, len(demands))
	for _, id := range sortedIDs(demands) {
		before := locked[id].Quantity
		updated, err := store.DecrementQuantity(ctx, id, demandFor(demands, id).quantity)
		if err != nil {
			return nil, err
		}
		running[id] = before
		result.Deductions = append(result.Deductions, Deduction{
			ProductID:   id,
			ProductName: updated.Name,
			Quantity:    before - updated.Quantity,
			Before:      before,
			After:       updated.Quantity,
		})
	}

	orderID := order.ID
	var actorID *uuid.UUID
	if !actor.IsSystem() {
		id := actor.UserID
		actorID = &id
	}
	now := e.now().UTC()
	for _, line := range lines {
		before := running[line.ProductID]
		after := before - line.Quantity
		running[line.ProductID] = after

		lineID := line.ID
		movement := models.StockMovement{
			ID:              uuid.New(),
			ProductID:       line.ProductID,
			OrderID:         &orderID,
			OrderLineItemID: &lineID,
			FarmerID:        line.FarmerID,
			QuantityDelta:   -line.Quantity,
			QuantityBefore:  before,
			QuantityAfter:   after,
			Reason:          enums.StockMovementOrderApproval,
			ActorID:         actorID,
			CreatedAt:       now,
		}
		if err := store.RecordMovement(ctx, &movement); err != nil {
			return nil, err
		}
		result.Movements = append(result.Movements, movement)
	}
	return result, nil
}

// aggregate sums quantities per product, keeping first-seen line order.
func aggregate(lines []models.OrderLineItem) []demand {
	index := make(map[uuid.UUID]int, len(lines))
	out := make([]demand, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			out[i].quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, demand{productID: line.ProductID, name: line.ProductName, quantity: line.Quantity})
	}
	return out
}

func demandFor(demands []demand, id uuid.UUID) demand {
	for _, d := range demands {
		if d.productID == id {
			return d
		}
	}
	return demand{}
}

// sortedIDs orders product ids by their byte value, which matches how
// Postgres orders uuid columns.
func sortedIDs(demands []demand) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(demands))
	for _, d := range demands {
		ids = append(ids, d.productID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

func failureReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "internal"
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeConflict:
		return "conflict"
	case pkgerrors.CodeValidation:
		return "invalid"
	default:
		return "storage"
	}
}
