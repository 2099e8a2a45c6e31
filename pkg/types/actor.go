package types

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// Actor identifies who is performing an operation. Handlers build it from the
// authenticated request and pass it explicitly to every service call.
type Actor struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	IPAddress string
	UserAgent string
}

// SystemActor is used by background jobs.
var SystemActor = Actor{Role: enums.UserRoleAdmin, UserAgent: "farmlink-system"}

func (a Actor) IsSystem() bool {
	return a.UserID == uuid.Nil
}

func (a Actor) Is(role enums.UserRole) bool {
	return a.Role == role
}
