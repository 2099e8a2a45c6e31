package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxRole     contextKey = "actor_role"
	ctxAccessID contextKey = "access_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.UserRole); ok {
		return v
	}
	return ""
}

// AccessIDFromContext returns the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// WithIdentity injects the authenticated user into the context. Handler tests
// use it in place of a signed token.
func WithIdentity(ctx context.Context, userID uuid.UUID, role enums.UserRole, accessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID.String())
	ctx = context.WithValue(ctx, ctxRole, role)
	return context.WithValue(ctx, ctxAccessID, accessID)
}

// ActorFromRequest builds the acting user for service calls. ok is false when
// the request carries no valid identity.
func ActorFromRequest(r *http.Request) (types.Actor, bool) {
	if r == nil {
		return types.Actor{}, false
	}
	userID, err := uuid.Parse(UserIDFromContext(r.Context()))
	if err != nil || userID == uuid.Nil {
		return types.Actor{}, false
	}
	role := RoleFromContext(r.Context())
	if !role.IsValid() {
		return types.Actor{}, false
	}
	return types.Actor{
		UserID:    userID,
		Role:      role,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	}, true
}
