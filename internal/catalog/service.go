package catalog

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
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

// Service exposes farmer listing management and admin approval.
type Service interface {
	ListFarmerProducts(ctx context.Context, actor types.Actor) ([]ProductDTO, error)
	CreateProduct(ctx context.Context, actor types.Actor, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, actor types.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	UpdateStock(ctx context.Context, actor types.Actor, productID uuid.UUID, quantity int) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, actor types.Actor, productID uuid.UUID) (*DeleteResult, error)
	SetApproval(ctx context.Context, actor types.Actor, productID uuid.UUID, approved bool) (*ProductDTO, error)
	ListPendingApproval(ctx context.Context, actor types.Actor, params pagination.Params) (*PendingListResult, error)
	StockMovements(ctx context.Context, actor types.Actor, productID uuid.UUID) ([]StockMovementDTO, error)
	Counts(ctx context.Context) (ProductCounts, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     *Repository
	tx       txRunner
	outbox   outboxEmitter
	activity activity.Recorder
	now      func() time.Time
}

// NewService wires the catalog service.
func NewService(repo *Repository, tx txRunner, emitter outboxEmitter, recorder activity.Recorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if recorder == nil {
		recorder = activity.Nop{}
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   emitter,
		activity: recorder,
		now:      time.Now,
	}, nil
}

func (s *service) ListFarmerProducts(ctx context.Context, actor types.Actor) ([]ProductDTO, error) {
	if !actor.Is(enums.UserRoleFarmer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers own listings")
	}
	rows, err := s.repo.ListByFarmer(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list farmer products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) CreateProduct(ctx context.Context, actor types.Actor, input CreateProductInput) (*ProductDTO, error) {
	if !actor.Is(enums.UserRoleFarmer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can create listings")
	}
	name := strings.TrimSpace(input.Name)
	unit := strings.TrimSpace(input.Unit)
	if name == "" || unit == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and unit are required")
	}
	if !input.ProductType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product_type")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be >= 0")
	}

	product := &models.Product{
		ID:          uuid.New(),
		FarmerID:    actor.UserID,
		Name:        name,
		Description: trimPtr(input.Description),
		Category:    trimPtr(input.Category),
		ProductType: input.ProductType,
		Price:       input.Price.Round(2),
		Unit:        unit,
		Location:    trimPtr(input.Location),
		City:        trimPtr(input.City),
		State:       trimPtr(input.State),
		IsApproved:  false,
		IsActive:    true,
	}
	product.SetQuantity(input.Quantity)

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}

	s.activity.Record(ctx, actor, enums.ActivityCreateProduct,
		fmt.Sprintf("Created product %s", product.Name), enums.ActivityEntityProduct, product.ID)
	return NewProductDTO(product), nil
}

func (s *service) UpdateProduct(ctx context.Context, actor types.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if err := validateUpdate(input); err != nil {
		return nil, err
	}

	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := s.loadOwned(ctx, txRepo, actor, productID)
		if err != nil {
			return err
		}

		before := product.Quantity
		applyUpdateToProduct(product, input)
		if err := txRepo.Save(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		if product.Quantity != before {
			if err := txRepo.InsertStockMovement(ctx, manualMovement(product, before, actor)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert stock movement")
			}
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, enums.ActivityUpdateProduct,
		fmt.Sprintf("Updated product %s", updated.Name), enums.ActivityEntityProduct, updated.ID)
	return NewProductDTO(updated), nil
}

// UpdateStock sets the quantity on hand, clamping negative input at zero.
func (s *service) UpdateStock(ctx context.Context, actor types.Actor, productID uuid.UUID, quantity int) (*ProductDTO, error) {
	var updated *models.Product
	var before int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := s.loadOwned(ctx, txRepo, actor, productID)
		if err != nil {
			return err
		}
		before = product.Quantity
		product.SetQuantity(quantity)
		if err := txRepo.Save(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update stock")
		}
		if product.Quantity != before {
			if err := txRepo.InsertStockMovement(ctx, manualMovement(product, before, actor)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert stock movement")
			}
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, enums.ActivityUpdateStock,
		fmt.Sprintf("Stock for %s changed from %d to %d", updated.Name, before, updated.Quantity),
		enums.ActivityEntityProduct, updated.ID)
	return NewProductDTO(updated), nil
}

// DeleteProduct hard-deletes an unreferenced listing. Listings that appear
// on any order line are deactivated instead.
func (s *service) DeleteProduct(ctx context.Context, actor types.Actor, productID uuid.UUID) (*DeleteResult, error) {
	result := &DeleteResult{ProductID: productID}
	var name string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := s.loadOwned(ctx, txRepo, actor, productID)
		if err != nil {
			return err
		}
		name = product.Name

		refs, err := txRepo.CountOrderReferences(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count order references")
		}
		if refs > 0 {
			product.IsActive = false
			if err := txRepo.Save(ctx, product); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: deactivate product")
			}
			result.Deactivated = true
			return nil
		}

		if err := txRepo.DeleteCartItems(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete cart items")
		}
		if err := txRepo.DeleteStockMovements(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete stock movements")
		}
		if err := txRepo.Delete(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
		}
		result.Deleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Deactivated {
		s.activity.Record(ctx, actor, enums.ActivityDeactivateProduct,
			fmt.Sprintf("Deactivated product %s (referenced by orders)", name), enums.ActivityEntityProduct, productID)
	} else {
		s.activity.Record(ctx, actor, enums.ActivityDeleteProduct,
			fmt.Sprintf("Deleted product %s", name), enums.ActivityEntityProduct, productID)
	}
	return result, nil
}

func (s *service) SetApproval(ctx context.Context, actor types.Actor, productID uuid.UUID, approved bool) (*ProductDTO, error) {
	if !actor.Is(enums.UserRoleAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return mapLookupError(err, "lock product")
		}

		product.IsApproved = approved
		if approved {
			now := s.now().UTC()
			product.ApprovedAt = &now
		} else {
			product.ApprovedAt = nil
		}
		if err := txRepo.Save(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product approval")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventProductApprovalChanged,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: payloads.ProductApprovalChangedEvent{
				ProductID:  product.ID,
				FarmerID:   product.FarmerID,
				IsApproved: approved,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit product approval event")
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := enums.ActivityRejectProduct
	verb := "Rejected"
	if approved {
		action = enums.ActivityApproveProduct
		verb = "Approved"
	}
	s.activity.Record(ctx, actor, action, fmt.Sprintf("%s product %s", verb, updated.Name), enums.ActivityEntityProduct, updated.ID)
	return NewProductDTO(updated), nil
}

// ListPendingApproval pages through active listings awaiting review.
func (s *service) ListPendingApproval(ctx context.Context, actor types.Actor, params pagination.Params) (*PendingListResult, error) {
	if !actor.Is(enums.UserRoleAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListPendingApproval(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list pending products")
	}
	out := &PendingListResult{Products: make([]ProductDTO, 0, len(rows))}
	for i := range rows {
		out.Products = append(out.Products, *NewProductDTO(&rows[i]))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) Counts(ctx context.Context) (ProductCounts, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return counts, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count products")
	}
	return counts, nil
}

// StockMovements returns the quantity audit trail of a listing, oldest first.
func (s *service) StockMovements(ctx context.Context, actor types.Actor, productID uuid.UUID) ([]StockMovementDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if err := checkOwner(actor, product); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListStockMovements(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list stock movements")
	}
	out := make([]StockMovementDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewStockMovementDTO(&rows[i]))
	}
	return out, nil
}

// loadOwned locks the product and checks the actor may manage it. Admins may
// manage any listing.
func (s *service) loadOwned(ctx context.Context, repo *Repository, actor types.Actor, productID uuid.UUID) (*models.Product, error) {
	product, err := repo.FindByIDForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock product")
	}
	if err := checkOwner(actor, product); err != nil {
		return nil, err
	}
	return product, nil
}

func checkOwner(actor types.Actor, product *models.Product) error {
	if actor.Is(enums.UserRoleAdmin) {
		return nil
	}
	if !actor.Is(enums.UserRoleFarmer) || product.FarmerID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another farmer")
	}
	return nil
}

func manualMovement(product *models.Product, before int, actor types.Actor) *models.StockMovement {
	movement := &models.StockMovement{
		ID:             uuid.New(),
		ProductID:      product.ID,
		FarmerID:       product.FarmerID,
		QuantityDelta:  product.Quantity - before,
		QuantityBefore: before,
		QuantityAfter:  product.Quantity,
		Reason:         enums.StockMovementManualAdjustment,
	}
	if !actor.IsSystem() {
		actorID := actor.UserID
		movement.ActorID = &actorID
	}
	return movement
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	if !price.Equal(price.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimal places")
	}
	return nil
}

func validateUpdate(input UpdateProductInput) error {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	if input.Unit != nil && strings.TrimSpace(*input.Unit) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit cannot be empty")
	}
	if input.ProductType != nil && !input.ProductType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product_type")
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return err
		}
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be >= 0")
	}
	return nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = trimPtr(input.Description)
	}
	if input.Category != nil {
		product.Category = trimPtr(input.Category)
	}
	if input.ProductType != nil {
		product.ProductType = *input.ProductType
	}
	if input.Price != nil {
		product.Price = input.Price.Round(2)
	}
	if input.Quantity != nil {
		product.SetQuantity(*input.Quantity)
	}
	if input.Unit != nil {
		product.Unit = strings.TrimSpace(*input.Unit)
	}
	if input.Location != nil {
		product.Location = trimPtr(input.Location)
	}
	if input.City != nil {
		product.City = trimPtr(input.City)
	}
	if input.State != nil {
		product.State = trimPtr(input.State)
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
}
