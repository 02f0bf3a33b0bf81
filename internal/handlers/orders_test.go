package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/pagination"
	"github.com/marketsquare/api/internal/services"
)

func newOrderRouter(orders services.OrderService) chi.Router {
	handlers := NewOrderHandlers(nil, orders)
	return newTestRouter("/me/orders", buyerIdentity(), handlers.Routes)
}

func TestOrderListRequiresIdentity(t *testing.T) {
	handlers := NewOrderHandlers(nil, &stubOrderService{})
	router := newTestRouter("/me/orders", nil, handlers.Routes)

	rr := doJSONRequest(t, router, http.MethodGet, "/me/orders", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestOrderListScopesToUser(t *testing.T) {
	var gotUser string
	var gotParams pagination.Params
	orders := &stubOrderService{
		list: func(_ context.Context, userID string, params pagination.Params) (domain.Page[services.Order], error) {
			gotUser, gotParams = userID, params
			return domain.Page[services.Order]{
				Items: []services.Order{
					{
						ID:          "order-1",
						UserID:      userID,
						TotalAmount: 3000,
						Currency:    "usd",
						Status:      domain.OrderStatusCompleted,
						Items: []domain.OrderLineItem{
							{ProductID: "prod-1", Name: "Bowl", Price: 1500, Quantity: 2, Subtotal: 3000},
						},
					},
				},
				Page:     2,
				PageSize: 5,
			}, nil
		},
	}
	router := newOrderRouter(orders)

	rr := doJSONRequest(t, router, http.MethodGet, "/me/orders?page=2&page_size=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotUser != "user-1" {
		t.Fatalf("expected orders scoped to user-1, got %q", gotUser)
	}
	if gotParams.Page != 2 || gotParams.PageSize != 5 {
		t.Fatalf("unexpected pagination: %+v", gotParams)
	}

	var body pagePayload[orderPayload]
	decodeResponse(t, rr, &body)
	if len(body.Items) != 1 || body.Page != 2 || body.PageSize != 5 {
		t.Fatalf("unexpected page: %+v", body)
	}
	order := body.Items[0]
	if order.ID != "order-1" || order.Status != "completed" || order.TotalAmount != 3000 {
		t.Fatalf("unexpected order payload: %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].Subtotal != 3000 {
		t.Fatalf("unexpected line items: %+v", order.Items)
	}
	if order.ShippingAddress != nil || order.CompletedAt != "" {
		t.Fatalf("expected optional fields omitted: %+v", order)
	}
}

func TestOrderGetIncludesShippingAndCompletion(t *testing.T) {
	completed := time.Date(2026, time.April, 10, 15, 30, 0, 0, time.UTC)
	orders := &stubOrderService{
		get: func(_ context.Context, actor services.Actor, orderID string) (services.Order, error) {
			if actor.UserID != "user-1" || actor.Role != domain.RoleBuyer {
				t.Fatalf("unexpected actor: %+v", actor)
			}
			return services.Order{
				ID:     orderID,
				UserID: actor.UserID,
				Status: domain.OrderStatusCompleted,
				ShippingAddress: &domain.ShippingAddress{
					FullName:     "Pat Buyer",
					AddressLine1: "1 Main St",
					City:         "Springfield",
					PostalCode:   "12345",
					Country:      "US",
				},
				CompletedAt: &completed,
			}, nil
		},
	}
	router := newOrderRouter(orders)

	rr := doJSONRequest(t, router, http.MethodGet, "/me/orders/order-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body orderPayload
	decodeResponse(t, rr, &body)
	if body.ShippingAddress == nil || body.ShippingAddress.City != "Springfield" {
		t.Fatalf("expected shipping address, got %+v", body.ShippingAddress)
	}
	if body.CompletedAt == "" {
		t.Fatalf("expected completed_at to be set")
	}
}

func TestOrderGetBySession(t *testing.T) {
	orders := &stubOrderService{
		getBySession: func(_ context.Context, actor services.Actor, sessionID string) (services.Order, error) {
			if actor.UserID != "user-1" || actor.Role != domain.RoleBuyer {
				t.Fatalf("unexpected actor: %+v", actor)
			}
			if sessionID != "cs_test_123" {
				t.Fatalf("session id = %q, want cs_test_123", sessionID)
			}
			return services.Order{ID: "order-1", UserID: actor.UserID, SessionID: sessionID, Status: domain.OrderStatusPending}, nil
		},
	}
	router := newOrderRouter(orders)

	rr := doJSONRequest(t, router, http.MethodGet, "/me/orders/session/cs_test_123", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body orderPayload
	decodeResponse(t, rr, &body)
	if body.ID != "order-1" || body.Status != "pending" {
		t.Fatalf("unexpected order payload: %+v", body)
	}
}

func TestOrderGetBySessionForeignOrder(t *testing.T) {
	orders := &stubOrderService{
		getBySession: func(context.Context, services.Actor, string) (services.Order, error) {
			return services.Order{}, services.ErrPermissionDenied
		},
	}
	router := newOrderRouter(orders)

	rr := doJSONRequest(t, router, http.MethodGet, "/me/orders/session/cs_foreign", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestOrderGetNotFound(t *testing.T) {
	orders := &stubOrderService{
		get: func(context.Context, services.Actor, string) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}
	router := newOrderRouter(orders)

	rr := doJSONRequest(t, router, http.MethodGet, "/me/orders/ghost", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
