package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/activity"
	"github.com/angelmondragon/farmlink-backend/internal/cart"
	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/internal/profiles"
	"github.com/angelmondragon/farmlink-backend/internal/reservation"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, order *models.Order, lines []models.OrderLineItem, actor types.Actor) (*reservation.Result, error)
}

type transitionMetrics interface {
	IncTransition(transition string)
}

// Service drives the order lifecycle and the order read paths.
type Service interface {
	Confirm(ctx context.Context, actor types.Actor, input ConfirmInput) (*OrderDTO, error)
	Approve(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error)
	Reject(ctx context.Context, actor types.Actor, orderID uuid.UUID, input RejectInput) (*OrderDTO, error)
	Complete(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error)

	Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, actor types.Actor, status *enums.OrderStatus, params pagination.Params) (*ListResult, error)
	ListPending(ctx context.Context, actor types.Actor, params pagination.Params) (*ListResult, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	carts       cart.Repository
	products    *catalog.Store
	profiles    *profiles.Repository
	reservation reservationRunner
	outbox      outboxPublisher
	activity    activity.Recorder
	metrics     transitionMetrics
	now         func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(
	repo Repository,
	tx txRunner,
	carts cart.Repository,
	products *catalog.Store,
	profileRepo *profiles.Repository,
	reservation reservationRunner,
	publisher outboxPublisher,
	recorder activity.Recorder,
	metrics transitionMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	if profileRepo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if reservation == nil {
		return nil, fmt.Errorf("reservation engine required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if recorder == nil {
		recorder = activity.Nop{}
	}
	return &service{
		repo:        repo,
		tx:          tx,
		carts:       carts,
		products:    products,
		profiles:    profileRepo,
		reservation: reservation,
		outbox:      publisher,
		activity:    recorder,
		metrics:     metrics,
		now:         time.Now,
	}, nil
}

// Confirm snapshots the buyer's cart into a pending order and empties the
// cart. Stock is checked but not reserved; approval deducts it.
func (s *service) Confirm(ctx context.Context, actor types.Actor, input ConfirmInput) (*OrderDTO, error) {
	if !actor.Is(enums.UserRoleBuyer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "buyer role required")
	}

	var (
		order *models.Order
		lines []models.OrderLineItem
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		buyerCart, err := carts.FindByBuyerForUpdate(ctx, actor.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart")
		}
		if buyerCart == nil {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}
		items, err := carts.ListItems(ctx, buyerCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		products, err := s.products.WithTx(tx).GetProducts(ctx, ids)
		if err != nil {
			return err
		}

		createdAt := s.now().UTC()
		order = &models.Order{
			ID:        uuid.New(),
			BuyerID:   actor.UserID,
			Status:    enums.OrderStatusPending,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		order.OrderNumber = OrderNumber(createdAt, order.ID)

		lines, order.TotalAmount, err = snapshotLines(order.ID, items, products, createdAt)
		if err != nil {
			return err
		}

		if err := s.applyDelivery(ctx, tx, order, actor.UserID, input.Delivery); err != nil {
			return err
		}
		order.BuyerNotes = trimmed(input.Notes)

		if err := s.repo.WithTx(tx).Create(ctx, order, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}
		if err := carts.DeleteItems(ctx, buyerCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
		}

		return s.emit(ctx, tx, actor, enums.EventOrderConfirmed, order.ID, payloads.OrderConfirmedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			BuyerID:     order.BuyerID,
			TotalAmount: order.TotalAmount,
			FarmerIDs:   farmerIDs(lines),
			Lines:       eventLines(lines),
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("confirmed")
	s.activity.Record(ctx, actor, enums.ActivityPlaceOrder,
		fmt.Sprintf("Placed order %s totaling %s", order.OrderNumber, order.TotalAmount.StringFixed(2)),
		enums.ActivityEntityOrder, order.ID)
	return newOrderDTO(order, lines), nil
}

// Approve moves a pending order to approved after the reservation engine has
// deducted stock for every line, all in one transaction.
func (s *service) Approve(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if !actor.Is(enums.UserRoleAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var (
		order *models.Order
		lines []models.OrderLineItem
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.lockForTransition(ctx, repo, orderID, enums.OrderStatusApproved)
		if err != nil {
			return err
		}
		lines, err = repo.ListLineItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order lines")
		}

		if _, err := s.reservation.Reserve(ctx, tx, order, lines, actor); err != nil {
			return err
		}

		now := s.now().UTC()
		if err := repo.UpdateStatus(ctx, order.ID, map[string]any{
			"status":      enums.OrderStatusApproved,
			"approved_at": now,
			"updated_at":  now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: approve order")
		}
		order.Status = enums.OrderStatusApproved
		order.ApprovedAt = &now
		order.UpdatedAt = now

		return s.emit(ctx, tx, actor, enums.EventOrderApproved, order.ID, payloads.OrderApprovedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			BuyerID:     order.BuyerID,
			TotalAmount: order.TotalAmount,
			ApprovedAt:  now,
			Lines:       eventLines(lines),
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("approved")
	s.activity.Record(ctx, actor, enums.ActivityApproveOrder,
		fmt.Sprintf("Approved order %s", order.OrderNumber), enums.ActivityEntityOrder, order.ID)
	return newOrderDTO(order, lines), nil
}

// Reject closes a pending order without touching stock.
func (s *service) Reject(ctx context.Context, actor types.Actor, orderID uuid.UUID, input RejectInput) (*OrderDTO, error) {
	if !actor.Is(enums.UserRoleAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	notes := trimmed(input.Notes)

	var (
		order *models.Order
		lines []models.OrderLineItem
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.lockForTransition(ctx, repo, orderID, enums.OrderStatusRejected)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := repo.UpdateStatus(ctx, order.ID, map[string]any{
			"status":      enums.OrderStatusRejected,
			"rejected_at": now,
			"admin_notes": notes,
			"updated_at":  now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reject order")
		}
		order.Status = enums.OrderStatusRejected
		order.RejectedAt = &now
		order.AdminNotes = notes
		order.UpdatedAt = now

		lines, err = repo.ListLineItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order lines")
		}

		return s.emit(ctx, tx, actor, enums.EventOrderRejected, order.ID, payloads.OrderRejectedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			BuyerID:     order.BuyerID,
			AdminNotes:  notes,
			RejectedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("rejected")
	s.activity.Record(ctx, actor, enums.ActivityRejectOrder,
		fmt.Sprintf("Rejected order %s", order.OrderNumber), enums.ActivityEntityOrder, order.ID)
	return newOrderDTO(order, lines), nil
}

// Complete marks an approved order as delivered.
func (s *service) Complete(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if !actor.Is(enums.UserRoleAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var (
		order *models.Order
		lines []models.OrderLineItem
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.lockForTransition(ctx, repo, orderID, enums.OrderStatusCompleted)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := repo.UpdateStatus(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: complete order")
		}
		order.Status = enums.OrderStatusCompleted
		order.CompletedAt = &now
		order.UpdatedAt = now

		lines, err = repo.ListLineItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order lines")
		}

		return s.emit(ctx, tx, actor, enums.EventOrderCompleted, order.ID, payloads.OrderCompletedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			BuyerID:     order.BuyerID,
			CompletedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("completed")
	s.activity.Record(ctx, actor, enums.ActivityCompleteOrder,
		fmt.Sprintf("Completed order %s", order.OrderNumber), enums.ActivityEntityOrder, order.ID)
	return newOrderDTO(order, lines), nil
}

// lockForTransition takes the order row lock and checks the move is legal.
func (s *service) lockForTransition(ctx context.Context, repo Repository, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock order")
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, pkgerrors.InvalidTransition("order", order.Status, next)
	}
	return order, nil
}

// applyDelivery copies the buyer profile onto the order, then lays any
// override fields on top.
func (s *service) applyDelivery(ctx context.Context, tx *gorm.DB, order *models.Order, buyerID uuid.UUID, override *DeliveryOverride) error {
	profile, err := s.profiles.WithTx(tx).GetBuyerProfile(ctx, buyerID)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return err
	}
	if profile != nil {
		order.DeliveryAddress = trimmed(profile.DeliveryAddress)
		order.DeliveryCity = trimmed(profile.City)
		order.DeliveryState = trimmed(profile.State)
		order.DeliveryZip = trimmed(profile.ZipCode)
		order.DeliveryPhone = trimmed(profile.Phone)
	}
	if override != nil {
		if v := trimmed(override.Address); v != nil {
			order.DeliveryAddress = v
		}
		if v := trimmed(override.City); v != nil {
			order.DeliveryCity = v
		}
		if v := trimmed(override.State); v != nil {
			order.DeliveryState = v
		}
		if v := trimmed(override.Zip); v != nil {
			order.DeliveryZip = v
		}
		if v := trimmed(override.Phone); v != nil {
			order.DeliveryPhone = v
		}
	}
	if order.DeliveryAddress == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor types.Actor, eventType enums.OutboxEventType, orderID uuid.UUID, data any) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
		Data:          data,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(eventType))
	}
	return nil
}

func (s *service) recordTransition(transition string) {
	if s.metrics != nil {
		s.metrics.IncTransition(transition)
	}
}

// snapshotLines validates every cart line against the current catalog and
// freezes name, price, and unit onto order lines. The first failing line
// aborts the whole confirmation.
func snapshotLines(orderID uuid.UUID, items []models.CartItem, products map[uuid.UUID]models.Product, createdAt time.Time) ([]models.OrderLineItem, decimal.Decimal, error) {
	lines := make([]models.OrderLineItem, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, decimal.Zero, pkgerrors.ProductUnavailable(item.ProductID, item.ProductID.String())
		}
		if !product.Available() {
			return nil, decimal.Zero, pkgerrors.ProductUnavailable(product.ID, product.Name)
		}
		if item.Quantity > product.Quantity {
			return nil, decimal.Zero, pkgerrors.InsufficientStock(product.ID, product.Name, item.Quantity, product.Quantity)
		}

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		total = total.Add(subtotal)
		lines = append(lines, models.OrderLineItem{
			ID:           uuid.New(),
			OrderID:      orderID,
			ProductID:    product.ID,
			FarmerID:     product.FarmerID,
			ProductName:  product.Name,
			ProductPrice: product.Price,
			Quantity:     item.Quantity,
			Unit:         product.Unit,
			Subtotal:     subtotal,
			CreatedAt:    createdAt,
		})
	}
	return lines, total.Round(2), nil
}

func eventLines(lines []models.OrderLineItem) []payloads.OrderLine {
	out := make([]payloads.OrderLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, payloads.OrderLine{
			LineItemID: line.ID,
			ProductID:  line.ProductID,
			FarmerID:   line.FarmerID,
			Quantity:   line.Quantity,
		})
	}
	return out
}

func farmerIDs(lines []models.OrderLineItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	out := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.FarmerID]; ok {
			continue
		}
		seen[line.FarmerID] = struct{}{}
		out = append(out, line.FarmerID)
	}
	return out
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
