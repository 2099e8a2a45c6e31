package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/internal/auth"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

type stubAuthService struct {
	loginReq   auth.LoginRequest
	refreshReq auth.RefreshRequest
	loggedOut  string
	loginErr   error
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.loginReq = req
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &auth.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (s *stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.TokenPair, error) {
	s.refreshReq = req
	return &auth.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (s *stubAuthService) Logout(ctx context.Context, accessID string) error {
	s.loggedOut = accessID
	return nil
}

func TestAuthLoginCapturesClientMetadata(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"buyer@example.com","password":"secret"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "farm-tests")
	resp := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.loginReq.IPAddress != "203.0.113.7" || svc.loginReq.UserAgent != "farm-tests" {
		t.Fatalf("unexpected request metadata %+v", svc.loginReq)
	}

	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.AccessToken != "access" {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestAuthLoginRejectsInvalidEmail(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"nope","password":"secret"}`))
	resp := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.loginReq.Email != "" {
		t.Fatalf("service should not be called")
	}
}

func TestAuthLoginMapsUnauthorized(t *testing.T) {
	svc := &stubAuthService{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"buyer@example.com","password":"wrong"}`))
	resp := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRefreshUsesBearerToken(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"r1"}`))
	req.Header.Set("Authorization", "Bearer expired-token")
	resp := httptest.NewRecorder()

	AuthRefresh(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.refreshReq.AccessToken != "expired-token" || svc.refreshReq.RefreshToken != "r1" {
		t.Fatalf("unexpected refresh request %+v", svc.refreshReq)
	}
}

func TestAuthLogoutRevokesContextSession(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), enums.UserRoleBuyer, "jti-1"))
	resp := httptest.NewRecorder()

	AuthLogout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.loggedOut != "jti-1" {
		t.Fatalf("expected jti-1 revoked, got %q", svc.loggedOut)
	}
}
