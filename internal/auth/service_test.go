package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgAuth "github.com/angelmondragon/farmlink-backend/pkg/auth"
	"github.com/angelmondragon/farmlink-backend/pkg/auth/session"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/security"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "farmlink",
	ExpirationMinutes: 30,
}

func TestServiceLoginIssuesTokensAndRecordsActivity(t *testing.T) {
	password := "harvest-moon"
	user := newTestUser(t, enums.UserRoleFarmer, password)
	svc, sessions, recorder := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:     "  FARMER@example.com ",
		Password:  password,
		IPAddress: "10.0.0.7",
		UserAgent: "curl/8",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRoleFarmer {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if resp.RefreshToken != sessions.tokens[claims.ID] {
		t.Fatalf("refresh token not stored under jti %s", claims.ID)
	}
	if resp.User == nil || resp.User.LastLoginAt == nil {
		t.Fatalf("expected last login to be set on the returned user")
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("expected one activity entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.action != enums.ActivityLogin || entry.actor.IPAddress != "10.0.0.7" || entry.actor.UserID != user.ID {
		t.Fatalf("unexpected activity entry %+v", entry)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := newTestUser(t, enums.UserRoleBuyer, "right-password")
	svc, _, recorder := buildTestService(t, user)

	cases := []LoginRequest{
		{Email: user.Email, Password: "wrong"},
		{Email: "nobody@example.com", Password: "right-password"},
		{Email: "   ", Password: "right-password"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("expected unauthorized for %q, got %v", req.Email, err)
		}
	}
	if len(recorder.entries) != 0 {
		t.Fatalf("failed logins must not be recorded")
	}
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	user := newTestUser(t, enums.UserRoleBuyer, "pw")
	user.IsActive = false
	svc, _, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "pw"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	user := newTestUser(t, enums.UserRoleAdmin, "pw")
	svc, sessions, _ := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	oldClaims, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)

	if _, err := svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: "nope"}); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for wrong refresh token, got %v", err)
	}

	pair, err := svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	newClaims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if newClaims.ID == oldClaims.ID {
		t.Fatalf("expected a new jti")
	}
	if _, ok := sessions.tokens[oldClaims.ID]; ok {
		t.Fatalf("old session should be gone")
	}
	if sessions.tokens[newClaims.ID] != pair.RefreshToken {
		t.Fatalf("new refresh token not stored")
	}
}

func TestServiceLogoutRevokes(t *testing.T) {
	user := newTestUser(t, enums.UserRoleBuyer, "pw")
	svc, sessions, _ := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)

	if err := svc.Logout(ctx, claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.tokens) != 0 {
		t.Fatalf("expected no sessions after logout")
	}
	if err := svc.Logout(ctx, ""); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for empty session id, got %v", err)
	}
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager, *stubRecorder) {
	t.Helper()
	sessions := &stubSessionManager{tokens: map[string]string{}}
	recorder := &stubRecorder{}
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{user: user},
		SessionManager: sessions,
		Recorder:       recorder,
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions, recorder
}

func newTestUser(t *testing.T, role enums.UserRole, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        role.String() + "@example.com",
		PasswordHash: hash,
		FullName:     "Test User",
		Role:         role,
		IsActive:     true,
	}
}

type stubUserRepo struct {
	user     *models.User
	rehashes int
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	if s.user != nil && s.user.ID == id {
		s.user.PasswordHash = hash
		s.rehashes++
	}
	return nil
}

type stubSessionManager struct {
	tokens map[string]string
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.tokens[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.tokens, oldAccessID)
	next := session.NewAccessID()
	token, _ := s.Generate(ctx, next)
	return next, token, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	if accessID == "" {
		return errors.New("access id is required")
	}
	delete(s.tokens, accessID)
	return nil
}

type recordedEntry struct {
	actor  types.Actor
	action enums.ActivityAction
}

type stubRecorder struct {
	entries []recordedEntry
}

func (s *stubRecorder) Record(ctx context.Context, actor types.Actor, action enums.ActivityAction, description string, entityType enums.ActivityEntityType, entityID uuid.UUID) {
	s.entries = append(s.entries, recordedEntry{actor: actor, action: action})
}

func TestLoginUpgradesOutdatedPasswordHash(t *testing.T) {
	user := newTestUser(t, enums.UserRoleBuyer, "buyer-pass")
	repo := &stubUserRepo{user: user}
	current := config.PasswordConfig{ArgonMemoryKB: 1024, ArgonTime: 2, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{tokens: map[string]string{}},
		JWTConfig:      testJWT,
		PasswordConfig: current,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	for range 2 {
		if _, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "buyer-pass"}); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	if repo.rehashes != 1 {
		t.Fatalf("expected exactly one rehash, got %d", repo.rehashes)
	}
	if security.NeedsRehash(user.PasswordHash, current) {
		t.Fatalf("stored hash still uses old params: %s", user.PasswordHash)
	}
}
