package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/security"
)

const tempPasswordLength = 20

// ProvisionInput describes an operator-created account. Profile fields are
// ignored unless the role is buyer.
type ProvisionInput struct {
	Email    string
	FullName string
	Role     string
	Password string
	Profile  ProfileDTO
}

// ProvisionResult carries the created user plus the generated password, if any.
type ProvisionResult struct {
	User              *UserDTO
	GeneratedPassword string
}

// Provision hashes the password and stores a new active account. An empty
// password is replaced with a random temporary one that is returned once.
func Provision(ctx context.Context, repo *Repository, pw config.PasswordConfig, in ProvisionInput) (*ProvisionResult, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name is required")
	}
	role, err := enums.ParseUserRole(strings.ToLower(strings.TrimSpace(in.Role)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
	}

	result := &ProvisionResult{}
	password := in.Password
	if password == "" {
		password, err = security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
		}
		result.GeneratedPassword = password
	}

	hash, err := security.HashPassword(password, pw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := repo.Create(ctx, CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         role,
		Profile:      in.Profile.trimmed(),
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	result.User = FromModel(user)
	return result, nil
}

func (p ProfileDTO) trimmed() ProfileDTO {
	return ProfileDTO{
		Phone:           optional(p.Phone),
		DeliveryAddress: optional(p.DeliveryAddress),
		City:            optional(p.City),
		State:           optional(p.State),
		ZipCode:         optional(p.ZipCode),
	}
}

func optional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
