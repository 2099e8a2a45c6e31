package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

type ActivityLog struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID      *uuid.UUID           `gorm:"column:user_id;type:uuid;index"`
	Action      enums.ActivityAction `gorm:"column:action;type:text;not null;index"`
	EntityType  *string              `gorm:"column:entity_type"`
	EntityID    *uuid.UUID           `gorm:"column:entity_id;type:uuid"`
	Description string               `gorm:"column:description;not null"`
	IPAddress   *string              `gorm:"column:ip_address"`
	UserAgent   *string              `gorm:"column:user_agent"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}
