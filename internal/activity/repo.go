package activity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

// Repository persists activity_logs rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListFilters narrows the admin activity listing.
type ListFilters struct {
	Action *enums.ActivityAction
	UserID *uuid.UUID
}

// List returns entries newest first using keyset pagination on (created_at, id).
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.ActivityLog, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivityLog{})
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	query, err := pagination.Apply(query, params, pagination.NewestFirst)
	if err != nil {
		return nil, nil, err
	}

	var rows []models.ActivityLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Page(rows, params, func(l models.ActivityLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})
	return rows, next, nil
}
