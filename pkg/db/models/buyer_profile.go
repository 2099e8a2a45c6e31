package models

import (
	"time"

	"github.com/google/uuid"
)

// BuyerProfile holds the default delivery details copied onto new orders.
type BuyerProfile struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	FullName        string    `gorm:"column:full_name;not null"`
	Phone           *string   `gorm:"column:phone"`
	DeliveryAddress *string   `gorm:"column:delivery_address"`
	City            *string   `gorm:"column:city"`
	State           *string   `gorm:"column:state"`
	ZipCode         *string   `gorm:"column:zip_code"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
