package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

// Store is the product surface used by the cart, order, and reservation code.
// Bind it to a transaction with WithTx when reads must see uncommitted writes
// or hold row locks.
type Store struct {
	repo *Repository
}

func NewStore(repo *Repository) *Store {
	return &Store{repo: repo}
}

func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{repo: s.repo.WithTx(tx)}
}

// GetProduct returns the product or NOT_FOUND.
func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "load product")
	}
	return product, nil
}

// LockProduct re-reads the product under a row lock.
func (s *Store) LockProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "lock product")
	}
	return product, nil
}

// GetProducts loads several products at once, keyed by id.
func (s *Store) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	products, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load products")
	}
	return products, nil
}

// DecrementQuantity subtracts amount and returns the updated product. A
// result below zero is refused with CONFLICT and nothing changes.
func (s *Store) DecrementQuantity(ctx context.Context, id uuid.UUID, amount int) (*models.Product, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decrement amount must be positive")
	}
	changed, err := s.repo.DecrementQuantity(ctx, id, amount)
	switch {
	case dbpkg.IsCheckViolation(err, ""):
		changed = false
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: decrement product quantity")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "reload product")
	}
	if !changed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot remove %d units of %s; %d on hand", amount, product.Name, product.Quantity)).
			WithDetails(map[string]any{"product_id": product.ID, "requested": amount, "available": product.Quantity})
	}
	return product, nil
}

// RecordMovement appends a stock audit row.
func (s *Store) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	if err := s.repo.InsertStockMovement(ctx, movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert stock movement")
	}
	return nil
}

func mapLookupError(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: "+op)
}
