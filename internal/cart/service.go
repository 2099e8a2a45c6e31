package cart

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/activity"
	dbpkg "github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productReader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// Service exposes the buyer cart operations. Stock checks here are advisory;
// the authoritative check happens when an admin approves the order.
type Service interface {
	GetCart(ctx context.Context, actor types.Actor) (*CartDTO, error)
	AddItem(ctx context.Context, actor types.Actor, input AddItemInput) (*CartDTO, error)
	UpdateItem(ctx context.Context, actor types.Actor, itemID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, actor types.Actor, itemID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, actor types.Actor) error
}

type service struct {
	repo     Repository
	tx       txRunner
	products productReader
	activity activity.Recorder
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, products productReader, recorder activity.Recorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if recorder == nil {
		recorder = activity.Nop{}
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		activity: recorder,
	}, nil
}

func (s *service) GetCart(ctx context.Context, actor types.Actor) (*CartDTO, error) {
	if err := requireBuyer(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, actor.UserID)
}

func (s *service) AddItem(ctx context.Context, actor types.Actor, input AddItemInput) (*CartDTO, error) {
	if err := requireBuyer(actor); err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.IsOutOfStock {
		return nil, pkgerrors.OutOfStock(product.ID, product.Name)
	}

	var itemID uuid.UUID
	var cumulative int
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindOrCreateByBuyer(ctx, actor.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart")
		}
		cart, err := txRepo.FindByBuyerForUpdate(ctx, actor.UserID)
		if err != nil || cart == nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, orNotFound(err), "db: lock cart")
		}

		existing, err := txRepo.FindItem(ctx, cart.ID, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart item")
		}

		held := 0
		if existing != nil {
			held = existing.Quantity
		}
		// Compared as headroom so a huge request cannot wrap the sum.
		if input.Quantity > product.Quantity-held {
			return pkgerrors.InsufficientStock(product.ID, product.Name, saturatingAdd(held, input.Quantity), product.Quantity)
		}
		cumulative = held + input.Quantity

		if existing != nil {
			itemID = existing.ID
			if err := txRepo.UpdateItemQuantity(ctx, existing.ID, cumulative); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart item")
			}
			return nil
		}

		item := &models.CartItem{ID: uuid.New(), CartID: cart.ID, ProductID: product.ID, Quantity: cumulative}
		if err := txRepo.CreateItem(ctx, item); err != nil {
			if dbpkg.IsUniqueViolation(err, "cart_items_cart_product_key") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart changed concurrently; retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert cart item")
		}
		itemID = item.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, enums.ActivityAddToCart,
		fmt.Sprintf("Added %d x %s to cart (now %d)", input.Quantity, product.Name, cumulative),
		enums.ActivityEntityCartItem, itemID)
	return s.load(ctx, actor.UserID)
}

func orNotFound(err error) error {
	if err == nil {
		return gorm.ErrRecordNotFound
	}
	return err
}

func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func (s *service) UpdateItem(ctx context.Context, actor types.Actor, itemID uuid.UUID, quantity int) (*CartDTO, error) {
	if err := requireBuyer(actor); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.repo.FindByBuyer(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart")
	}
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	item, err := s.repo.FindItemByID(ctx, cart.ID, itemID)
	if err != nil {
		return nil, mapItemError(err)
	}
	product, err := s.products.GetProduct(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Quantity {
		return nil, pkgerrors.InsufficientStock(product.ID, product.Name, quantity, product.Quantity)
	}

	if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart item")
	}

	s.activity.Record(ctx, actor, enums.ActivityUpdateCartItem,
		fmt.Sprintf("Set %s quantity to %d", product.Name, quantity),
		enums.ActivityEntityCartItem, item.ID)
	return s.load(ctx, actor.UserID)
}

func (s *service) RemoveItem(ctx context.Context, actor types.Actor, itemID uuid.UUID) (*CartDTO, error) {
	if err := requireBuyer(actor); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByBuyer(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart")
	}
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	removed, err := s.repo.DeleteItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	s.activity.Record(ctx, actor, enums.ActivityRemoveCartItem, "Removed item from cart", enums.ActivityEntityCartItem, itemID)
	return s.load(ctx, actor.UserID)
}

func (s *service) Clear(ctx context.Context, actor types.Actor) error {
	if err := requireBuyer(actor); err != nil {
		return err
	}
	cart, err := s.repo.FindByBuyer(ctx, actor.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart")
	}
	if cart == nil {
		return nil
	}
	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
	}
	s.activity.Record(ctx, actor, enums.ActivityClearCart, "Cleared cart", enums.ActivityEntityCart, cart.ID)
	return nil
}

func (s *service) load(ctx context.Context, buyerID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart")
	}
	if cart == nil {
		return buildCartDTO(buyerID, nil, nil, nil), nil
	}
	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart items")
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	return buildCartDTO(buyerID, cart, items, products), nil
}

func requireBuyer(actor types.Actor) error {
	if !actor.Is(enums.UserRoleBuyer) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "buyer role required")
	}
	return nil
}

func mapItemError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart item")
}
