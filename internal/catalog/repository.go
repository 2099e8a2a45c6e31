package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

// Repository wraps product and stock movement persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product without locking.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate loads the product holding a row lock until the
// surrounding transaction ends.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs returns the products keyed by id. Missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Where("farmer_id = ?", farmerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingApproval walks active listings still awaiting review, newest first.
func (r *Repository) ListPendingApproval(ctx context.Context, params pagination.Params) ([]models.Product, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_approved = ? AND is_active = ?", false, true)
	query, err := pagination.Apply(query, params, pagination.NewestFirst)
	if err != nil {
		return nil, nil, err
	}

	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Page(rows, params, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return rows, next, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(product).Error
}

// Save writes every column of the product.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// DecrementQuantity subtracts amount only when enough stock remains and keeps
// the out-of-stock flag in the same statement. It reports whether a row changed.
func (r *Repository) DecrementQuantity(ctx context.Context, id uuid.UUID, amount int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", id, amount).
		Updates(map[string]any{
			"quantity":        gorm.Expr("quantity - ?", amount),
			"is_out_of_stock": gorm.Expr("(quantity - ?) = 0", amount),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// CountOrderReferences counts order lines pointing at the product.
func (r *Repository) CountOrderReferences(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}

// DeleteCartItems removes the product from every cart.
func (r *Repository) DeleteCartItems(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.CartItem{}).Error
}

// DeleteStockMovements drops the audit trail of a product being hard-deleted.
func (r *Repository) DeleteStockMovements(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.StockMovement{}).Error
}

func (r *Repository) InsertStockMovement(ctx context.Context, movement *models.StockMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *Repository) ListStockMovements(ctx context.Context, productID uuid.UUID) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ProductCounts feeds the admin dashboard.
type ProductCounts struct {
	Total           int64 `json:"total"`
	PendingApproval int64 `json:"pending_approval"`
	OutOfStock      int64 `json:"out_of_stock"`
}

func (r *Repository) Counts(ctx context.Context) (ProductCounts, error) {
	var counts ProductCounts
	base := r.db.WithContext(ctx).Model(&models.Product{})
	if err := base.Session(&gorm.Session{}).Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("is_approved = ? AND is_active = ?", false, true).
		Count(&counts.PendingApproval).Error; err != nil {
		return counts, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("is_out_of_stock = ?", true).
		Count(&counts.OutOfStock).Error; err != nil {
		return counts, err
	}
	return counts, nil
}

// FarmerProductCounts summarises one farmer's active listings.
type FarmerProductCounts struct {
	Total      int64 `json:"total"`
	Approved   int64 `json:"approved"`
	Pending    int64 `json:"pending"`
	OutOfStock int64 `json:"out_of_stock"`
}

// CountsForFarmer counts the farmer's active listings. Deactivated rows are
// left out of every bucket.
func (r *Repository) CountsForFarmer(ctx context.Context, farmerID uuid.UUID) (FarmerProductCounts, error) {
	var counts FarmerProductCounts
	base := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("farmer_id = ? AND is_active = ?", farmerID, true)
	if err := base.Session(&gorm.Session{}).Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("is_approved = ?", true).
		Count(&counts.Approved).Error; err != nil {
		return counts, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("is_approved = ?", false).
		Count(&counts.Pending).Error; err != nil {
		return counts, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("is_out_of_stock = ?", true).
		Count(&counts.OutOfStock).Error; err != nil {
		return counts, err
	}
	return counts, nil
}
