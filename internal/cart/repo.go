package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
)

// Repository defines the persistence surface of the cart aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error)
	FindByBuyerForUpdate(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error)
	FindOrCreateByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	FindItemByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error)
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository binds the cart repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

// FindByBuyer returns nil without error when the buyer has no cart yet.
func (r *gormRepository) FindByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).First(&cart, "buyer_id = ?", buyerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByBuyerForUpdate is FindByBuyer holding the cart row lock until the
// transaction ends. Every write to a cart's lines takes it first.
func (r *gormRepository) FindByBuyerForUpdate(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).First(&cart, "buyer_id = ?", buyerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindOrCreateByBuyer returns the buyer's cart, creating it on first use.
// Concurrent creators converge on the same row through the buyer_id unique key.
func (r *gormRepository) FindOrCreateByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{ID: uuid.New(), BuyerID: buyerID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "buyer_id"}}, DoNothing: true}).
		Create(cart).Error; err != nil {
		return nil, err
	}
	existing, err := r.FindByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return existing, nil
}

func (r *gormRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindItem returns nil without error when the product is not in the cart.
func (r *gormRepository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).First(&item, "cart_id = ? AND product_id = ?", cartID, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *gormRepository) FindItemByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).First(&item, "id = ? AND cart_id = ?", itemID, cartID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *gormRepository) CreateItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *gormRepository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

// DeleteItem reports whether a row was removed.
func (r *gormRepository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND cart_id = ?", itemID, cartID).Delete(&models.CartItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}
