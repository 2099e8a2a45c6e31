package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

// Get returns one order as seen by the actor. Buyers see only their own
// orders, farmers see only orders carrying their lines, admins see all.
func (s *service) Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	lines, err := s.repo.ListLineItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order lines")
	}

	switch actor.Role {
	case enums.UserRoleAdmin:
		return newOrderDTO(order, lines), nil
	case enums.UserRoleBuyer:
		if order.BuyerID != actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return newOrderDTO(order, lines), nil
	case enums.UserRoleFarmer:
		dto := newFarmerOrderDTO(order, lines, actor.UserID)
		if len(dto.Items) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return dto, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted")
	}
}

// List scopes the listing by role: buyers get their own orders, farmers get
// orders containing their lines, admins get everything.
func (s *service) List(ctx context.Context, actor types.Actor, status *enums.OrderStatus, params pagination.Params) (*ListResult, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	filters := ListFilters{Status: status}
	switch actor.Role {
	case enums.UserRoleAdmin:
	case enums.UserRoleBuyer:
		id := actor.UserID
		filters.BuyerID = &id
	case enums.UserRoleFarmer:
		id := actor.UserID
		filters.FarmerID = &id
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted")
	}
	return s.list(ctx, actor, filters, params)
}

// ListPending is the admin approval queue, oldest first.
func (s *service) ListPending(ctx context.Context, actor types.Actor, params pagination.Params) (*ListResult, error) {
	if !actor.Is(enums.UserRoleAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	pending := enums.OrderStatusPending
	return s.list(ctx, actor, ListFilters{Status: &pending, OldestFirst: true}, params)
}

func (s *service) list(ctx context.Context, actor types.Actor, filters ListFilters, params pagination.Params) (*ListResult, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	lines, err := s.repo.ListLineItemsForOrders(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order lines")
	}

	out := &ListResult{Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		out.Orders = append(out.Orders, *s.view(actor, &rows[i], lines[rows[i].ID]))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) view(actor types.Actor, order *models.Order, lines []models.OrderLineItem) *OrderDTO {
	if actor.Is(enums.UserRoleFarmer) {
		return newFarmerOrderDTO(order, lines, actor.UserID)
	}
	return newOrderDTO(order, lines)
}
