package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	FullName    string         `json:"full_name"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
// Profile is only read for buyers.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         enums.UserRole
	IsActive     *bool
	Profile      ProfileDTO
}

// ProfileDTO carries the buyer's default delivery details.
type ProfileDTO struct {
	Phone           *string
	DeliveryAddress *string
	City            *string
	State           *string
	ZipCode         *string
}

func (p ProfileDTO) toModel(user *models.User) *models.BuyerProfile {
	return &models.BuyerProfile{
		ID:              uuid.New(),
		UserID:          user.ID,
		FullName:        user.FullName,
		Phone:           p.Phone,
		DeliveryAddress: p.DeliveryAddress,
		City:            p.City,
		State:           p.State,
		ZipCode:         p.ZipCode,
	}
}

// Counts are the account totals shown on the admin dashboard.
type Counts struct {
	TotalFarmers  int64 `json:"total_farmers"`
	ActiveFarmers int64 `json:"active_farmers"`
	TotalBuyers   int64 `json:"total_buyers"`
	ActiveBuyers  int64 `json:"active_buyers"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// ToModel normalises the email so lookups can match on the lowered value.
func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		FullName:     strings.TrimSpace(c.FullName),
		Role:         c.Role,
		IsActive:     isActive,
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
