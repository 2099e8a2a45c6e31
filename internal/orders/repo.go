package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

// Repository is the persistence surface of the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order, lines []models.OrderLineItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error)
	ListLineItemsForOrders(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]models.OrderLineItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]any) error
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, *pagination.Cursor, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error)
	SumRevenue(ctx context.Context, statuses []enums.OrderStatus) (decimal.Decimal, error)
	FarmerSales(ctx context.Context, farmerID uuid.UUID, statuses []enums.OrderStatus) (FarmerSales, error)
}

// FarmerSales aggregates the order lines of one farmer. LineCount covers every
// line; Revenue and ItemsSold only lines whose order is in the given statuses.
type FarmerSales struct {
	LineCount int64
	Revenue   decimal.Decimal
	ItemsSold int64
}

// ListFilters narrows order listings. OldestFirst flips the default
// newest-first ordering, which the admin pending queue uses.
type ListFilters struct {
	BuyerID     *uuid.UUID
	FarmerID    *uuid.UUID
	Status      *enums.OrderStatus
	OldestFirst bool
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order header and its line items.
func (r *repository) Create(ctx context.Context, order *models.Order, lines []models.OrderLineItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(order).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return db.Create(&lines).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate loads the order and holds its row lock until the
// transaction ends, serialising concurrent status changes.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListLineItemsForOrders(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]models.OrderLineItem, error) {
	out := make(map[uuid.UUID][]models.OrderLineItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var items []models.OrderLineItem
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	return out, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// List pages through orders using a (created_at, id) keyset cursor.
func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.BuyerID != nil {
		query = query.Where("buyer_id = ?", *filters.BuyerID)
	}
	if filters.FarmerID != nil {
		query = query.Where("id IN (?)", r.db.Model(&models.OrderLineItem{}).Select("order_id").Where("farmer_id = ?", *filters.FarmerID))
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	dir := pagination.NewestFirst
	if filters.OldestFirst {
		dir = pagination.OldestFirst
	}
	query, err := pagination.Apply(query, params, dir)
	if err != nil {
		return nil, nil, err
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Page(rows, params, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return rows, next, nil
}

// ListPendingBefore returns pending orders created before cutoff, oldest first.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error) {
	var rows []struct {
		Status enums.OrderStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// SumRevenue totals total_amount over orders in the given statuses.
func (r *repository) SumRevenue(ctx context.Context, statuses []enums.OrderStatus) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("SUM(total_amount)").
		Where("status IN ?", statuses).
		Row().
		Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal.Round(2), nil
}

func (r *repository) FarmerSales(ctx context.Context, farmerID uuid.UUID, statuses []enums.OrderStatus) (FarmerSales, error) {
	out := FarmerSales{Revenue: decimal.Zero}
	lines := r.db.WithContext(ctx).Model(&models.OrderLineItem{}).Where("farmer_id = ?", farmerID)
	if err := lines.Session(&gorm.Session{}).Count(&out.LineCount).Error; err != nil {
		return out, err
	}

	var (
		revenue decimal.NullDecimal
		items   sql.NullInt64
	)
	settled := r.db.Model(&models.Order{}).Select("id").Where("status IN ?", statuses)
	if err := lines.Session(&gorm.Session{}).
		Select("SUM(subtotal), SUM(quantity)").
		Where("order_id IN (?)", settled).
		Row().
		Scan(&revenue, &items); err != nil {
		return out, err
	}
	if revenue.Valid {
		out.Revenue = revenue.Decimal.Round(2)
	}
	out.ItemsSold = items.Int64
	return out, nil
}
