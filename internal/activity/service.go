package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

// Service serves the admin activity log listing.
type Service interface {
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error)
}

type lister interface {
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.ActivityLog, *pagination.Cursor, error)
}

type service struct {
	repo lister
}

func NewService(repo lister) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	return &service{repo: repo}, nil
}

// EntryDTO is the API shape of one activity entry.
type EntryDTO struct {
	ID          uuid.UUID            `json:"id"`
	UserID      *uuid.UUID           `json:"user_id,omitempty"`
	Action      enums.ActivityAction `json:"action"`
	EntityType  *string              `json:"entity_type,omitempty"`
	EntityID    *uuid.UUID           `json:"entity_id,omitempty"`
	Description string               `json:"description"`
	IPAddress   *string              `json:"ip_address,omitempty"`
	UserAgent   *string              `json:"user_agent,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

type ListResult struct {
	Entries    []EntryDTO `json:"entries"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list activity logs")
	}
	out := &ListResult{Entries: make([]EntryDTO, 0, len(rows))}
	for _, row := range rows {
		out.Entries = append(out.Entries, EntryDTO{
			ID:          row.ID,
			UserID:      row.UserID,
			Action:      row.Action,
			EntityType:  row.EntityType,
			EntityID:    row.EntityID,
			Description: row.Description,
			IPAddress:   row.IPAddress,
			UserAgent:   row.UserAgent,
			CreatedAt:   row.CreatedAt,
		})
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}
