package profiles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

// Repository reads buyer delivery profiles. Profile editing lives elsewhere.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// GetBuyerProfile returns the profile owned by userID, or NOT_FOUND.
func (r *Repository) GetBuyerProfile(ctx context.Context, userID uuid.UUID) (*models.BuyerProfile, error) {
	var profile models.BuyerProfile
	if err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load buyer profile")
	}
	return &profile, nil
}
