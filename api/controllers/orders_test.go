package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

type stubOrdersService struct {
	confirmFn func(ctx context.Context, actor types.Actor, input orders.ConfirmInput) (*orders.OrderDTO, error)
	approveFn func(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*orders.OrderDTO, error)
	rejectFn  func(ctx context.Context, actor types.Actor, orderID uuid.UUID, input orders.RejectInput) (*orders.OrderDTO, error)
	listFn    func(ctx context.Context, actor types.Actor, status *enums.OrderStatus, params pagination.Params) (*orders.ListResult, error)
}

func (s stubOrdersService) Confirm(ctx context.Context, actor types.Actor, input orders.ConfirmInput) (*orders.OrderDTO, error) {
	return s.confirmFn(ctx, actor, input)
}

func (s stubOrdersService) Approve(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return s.approveFn(ctx, actor, orderID)
}

func (s stubOrdersService) Reject(ctx context.Context, actor types.Actor, orderID uuid.UUID, input orders.RejectInput) (*orders.OrderDTO, error) {
	return s.rejectFn(ctx, actor, orderID, input)
}

func (s stubOrdersService) Complete(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusCompleted}, nil
}

func (s stubOrdersService) Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID}, nil
}

func (s stubOrdersService) List(ctx context.Context, actor types.Actor, status *enums.OrderStatus, params pagination.Params) (*orders.ListResult, error) {
	return s.listFn(ctx, actor, status, params)
}

func (s stubOrdersService) ListPending(ctx context.Context, actor types.Actor, params pagination.Params) (*orders.ListResult, error) {
	return &orders.ListResult{}, nil
}

func withActor(req *http.Request, role enums.UserRole) (*http.Request, uuid.UUID) {
	userID := uuid.New()
	return req.WithContext(middleware.WithIdentity(req.Context(), userID, role, "access-1")), userID
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeErrorCode(t *testing.T, body *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestOrdersConfirmPassesActorAndBody(t *testing.T) {
	orderID := uuid.New()
	var gotActor types.Actor
	var gotNotes string
	svc := stubOrdersService{
		confirmFn: func(ctx context.Context, actor types.Actor, input orders.ConfirmInput) (*orders.OrderDTO, error) {
			gotActor = actor
			if input.Notes != nil {
				gotNotes = *input.Notes
			}
			return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusPending, TotalAmount: decimal.RequireFromString("51.88")}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"notes":"leave at gate"}`))
	req, buyerID := withActor(req, enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	OrdersConfirm(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotActor.UserID != buyerID || gotNotes != "leave at gate" {
		t.Fatalf("unexpected service input actor=%v notes=%q", gotActor.UserID, gotNotes)
	}
	var envelope struct {
		Data orders.OrderDTO `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != orderID || !envelope.Data.TotalAmount.Equal(decimal.RequireFromString("51.88")) {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestOrdersConfirmRequiresIdentity(t *testing.T) {
	svc := stubOrdersService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	OrdersConfirm(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestOrdersConfirmMapsEmptyCart(t *testing.T) {
	svc := stubOrdersService{
		confirmFn: func(ctx context.Context, actor types.Actor, input orders.ConfirmInput) (*orders.OrderDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		},
	}
	req, _ := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil), enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	OrdersConfirm(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeEmptyCart) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestAdminApproveOrderSurfacesShortfall(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	svc := stubOrdersService{
		approveFn: func(ctx context.Context, actor types.Actor, id uuid.UUID) (*orders.OrderDTO, error) {
			if id != orderID {
				t.Fatalf("unexpected order id %s", id)
			}
			return nil, pkgerrors.InsufficientStock(productID, "Heirloom Tomatoes", 8, 5)
		},
	}

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "orderId", orderID.String())
	req, _ = withActor(req, enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	AdminApproveOrder(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code    string                   `json:"code"`
			Details pkgerrors.StockShortfall `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
	if envelope.Error.Details.Requested != 8 || envelope.Error.Details.Available != 5 || envelope.Error.Details.ProductID != productID {
		t.Fatalf("unexpected details %+v", envelope.Error.Details)
	}
}

func TestAdminApproveOrderRejectsBadID(t *testing.T) {
	svc := stubOrdersService{}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "orderId", "not-a-uuid")
	req, _ = withActor(req, enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	AdminApproveOrder(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminRejectOrderTrimsNotes(t *testing.T) {
	orderID := uuid.New()
	var got string
	svc := stubOrdersService{
		rejectFn: func(ctx context.Context, actor types.Actor, id uuid.UUID, input orders.RejectInput) (*orders.OrderDTO, error) {
			got = *input.Notes
			return &orders.OrderDTO{ID: id, Status: enums.OrderStatusRejected, AdminNotes: input.Notes}, nil
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"notes":"  out of season  "}`)), "orderId", orderID.String())
	req, _ = withActor(req, enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	AdminRejectOrder(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got != "out of season" {
		t.Fatalf("expected trimmed notes, got %q", got)
	}
}

func TestOrdersListParsesFilters(t *testing.T) {
	svc := stubOrdersService{
		listFn: func(ctx context.Context, actor types.Actor, status *enums.OrderStatus, params pagination.Params) (*orders.ListResult, error) {
			if status == nil || *status != enums.OrderStatusApproved {
				t.Fatalf("expected approved filter, got %v", status)
			}
			if params.Limit != 10 || params.Cursor != "abc" {
				t.Fatalf("unexpected params %+v", params)
			}
			return &orders.ListResult{NextCursor: "next"}, nil
		},
	}
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/farmer/orders?status=approved&limit=10&cursor=abc", nil), enums.UserRoleFarmer)
	resp := httptest.NewRecorder()
	OrdersList(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"next_cursor":"next"`) {
		t.Fatalf("missing cursor in %s", resp.Body.String())
	}
}

func TestOrdersListRejectsUnknownStatus(t *testing.T) {
	svc := stubOrdersService{}
	req, _ := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=shipped", nil), enums.UserRoleBuyer)
	resp := httptest.NewRecorder()
	OrdersList(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
