package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the account. Buyers get their delivery profile in the same
// transaction so an order can never see a buyer without one.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	if !dto.Role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", dto.Role)
	}
	user := dto.ToModel()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if user.Role != enums.UserRoleBuyer {
			return nil
		}
		return tx.Create(dto.Profile.toModel(user)).Error
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail matches on the normalised address.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		Take(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin writes the column directly so updated_at keeps tracking
// profile edits rather than logins.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at.UTC()).Error
}

// UpdatePasswordHash swaps the stored hash, used when login upgrades an
// account hashed with older Argon2 costs.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}

type roleCount struct {
	Role     enums.UserRole
	IsActive bool
	N        int64
}

// Counts tallies accounts for the admin dashboard.
func (r *Repository) Counts(ctx context.Context) (Counts, error) {
	var rows []roleCount
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("role, is_active, COUNT(*) AS n").
		Group("role, is_active").
		Scan(&rows).Error
	if err != nil {
		return Counts{}, err
	}

	var counts Counts
	for _, row := range rows {
		switch row.Role {
		case enums.UserRoleFarmer:
			counts.TotalFarmers += row.N
			if row.IsActive {
				counts.ActiveFarmers += row.N
			}
		case enums.UserRoleBuyer:
			counts.TotalBuyers += row.N
			if row.IsActive {
				counts.ActiveBuyers += row.N
			}
		}
	}
	return counts, nil
}
