package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/pagination"
	"github.com/marketsquare/api/internal/services"
)

func newAdminRouter(catalog services.CatalogService, orders services.OrderService, profiles services.ProfileService) chi.Router {
	handlers := NewAdminHandlers(nil, catalog, orders, profiles)
	return newTestRouter("/admin", adminIdentity(), handlers.Routes)
}

func TestAdminCreateCategory(t *testing.T) {
	var got services.CategoryCommand
	catalog := &stubCatalogService{
		createCategory: func(_ context.Context, cmd services.CategoryCommand) (services.Category, error) {
			got = cmd
			return services.Category{ID: "cat-1", Name: cmd.Name, Slug: cmd.Slug}, nil
		},
	}
	router := newAdminRouter(catalog, nil, nil)

	rr := doJSONRequest(t, router, http.MethodPost, "/admin/categories", map[string]any{
		"name": "Kitchen",
		"slug": "kitchen",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Actor.UserID != "admin-1" || got.Actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor: %+v", got.Actor)
	}
	if got.CategoryID != "" || got.Name != "Kitchen" || got.Slug != "kitchen" {
		t.Fatalf("unexpected command: %+v", got)
	}

	var body categoryResponse
	decodeResponse(t, rr, &body)
	if body.Category.ID != "cat-1" {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestAdminUpdateCategoryNotFound(t *testing.T) {
	catalog := &stubCatalogService{
		updateCategory: func(context.Context, services.CategoryCommand) (services.Category, error) {
			return services.Category{}, services.ErrCategoryNotFound
		},
	}
	router := newAdminRouter(catalog, nil, nil)

	rr := doJSONRequest(t, router, http.MethodPut, "/admin/categories/ghost", map[string]any{"name": "x"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAdminDeleteCategory(t *testing.T) {
	var deleted string
	catalog := &stubCatalogService{
		deleteCategory: func(_ context.Context, actor services.Actor, categoryID string) error {
			if !actor.IsAdmin() {
				t.Fatalf("expected admin actor, got %+v", actor)
			}
			deleted = categoryID
			return nil
		},
	}
	router := newAdminRouter(catalog, nil, nil)

	rr := doJSONRequest(t, router, http.MethodDelete, "/admin/categories/cat-2", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if deleted != "cat-2" {
		t.Fatalf("expected cat-2 deleted, got %q", deleted)
	}
}

func TestAdminListAllOrders(t *testing.T) {
	orders := &stubOrderService{
		listAll: func(_ context.Context, actor services.Actor, status services.OrderStatus, params pagination.Params) (domain.Page[services.Order], error) {
			if !actor.IsAdmin() {
				t.Fatalf("expected admin actor, got %+v", actor)
			}
			if status != "" {
				t.Fatalf("expected empty status, got %q", status)
			}
			return domain.Page[services.Order]{
				Items:    []services.Order{{ID: "order-1", Status: domain.OrderStatusPending}},
				Page:     params.Page,
				PageSize: params.PageSize,
			}, nil
		},
	}
	router := newAdminRouter(nil, orders, nil)

	rr := doJSONRequest(t, router, http.MethodGet, "/admin/orders", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body pagePayload[orderPayload]
	decodeResponse(t, rr, &body)
	if len(body.Items) != 1 || body.Items[0].Status != "pending" {
		t.Fatalf("unexpected page: %+v", body)
	}
}

func TestAdminListAllOrdersStatusFilter(t *testing.T) {
	var gotStatus services.OrderStatus
	orders := &stubOrderService{
		listAll: func(_ context.Context, _ services.Actor, status services.OrderStatus, params pagination.Params) (domain.Page[services.Order], error) {
			gotStatus = status
			return domain.Page[services.Order]{
				Items:    []services.Order{{ID: "order-2", Status: domain.OrderStatusRefunded}},
				Page:     params.Page,
				PageSize: params.PageSize,
			}, nil
		},
	}
	router := newAdminRouter(nil, orders, nil)

	rr := doJSONRequest(t, router, http.MethodGet, "/admin/orders?status=refunded", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotStatus != domain.OrderStatusRefunded {
		t.Fatalf("expected refunded status filter, got %q", gotStatus)
	}
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	var got services.UpdateOrderStatusCommand
	orders := &stubOrderService{
		updateStatus: func(_ context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
			got = cmd
			return services.Order{ID: cmd.OrderID, Status: cmd.Status}, nil
		},
	}
	router := newAdminRouter(nil, orders, nil)

	rr := doJSONRequest(t, router, http.MethodPatch, "/admin/orders/order-1/status", map[string]any{"status": "refunded"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.OrderID != "order-1" || got.Status != domain.OrderStatusRefunded {
		t.Fatalf("unexpected command: %+v", got)
	}
}

func TestAdminUpdateOrderStatusInvalidTransition(t *testing.T) {
	orders := &stubOrderService{
		updateStatus: func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderTransitionInvalid
		},
	}
	router := newAdminRouter(nil, orders, nil)

	rr := doJSONRequest(t, router, http.MethodPatch, "/admin/orders/order-1/status", map[string]any{"status": "pending"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestAdminListProfiles(t *testing.T) {
	profiles := &stubProfileService{
		list: func(_ context.Context, actor services.Actor, params pagination.Params) (domain.Page[services.Profile], error) {
			if !actor.IsAdmin() {
				t.Fatalf("expected admin actor, got %+v", actor)
			}
			return domain.Page[services.Profile]{
				Items:    []services.Profile{{ID: "user-1", Role: domain.RoleBuyer}},
				Page:     1,
				PageSize: 20,
			}, nil
		},
	}
	router := newAdminRouter(nil, nil, profiles)

	rr := doJSONRequest(t, router, http.MethodGet, "/admin/profiles", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body pagePayload[profilePayload]
	decodeResponse(t, rr, &body)
	if len(body.Items) != 1 || body.Items[0].Role != "buyer" {
		t.Fatalf("unexpected page: %+v", body)
	}
}

func TestAdminChangeRole(t *testing.T) {
	var gotUser string
	var gotRole services.Role
	profiles := &stubProfileService{
		changeRole: func(_ context.Context, _ services.Actor, userID string, role services.Role) (services.Profile, error) {
			gotUser, gotRole = userID, role
			return services.Profile{ID: userID, Role: role}, nil
		},
	}
	router := newAdminRouter(nil, nil, profiles)

	rr := doJSONRequest(t, router, http.MethodPatch, "/admin/profiles/user-7/role", map[string]any{"role": "seller"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotUser != "user-7" || gotRole != domain.RoleSeller {
		t.Fatalf("unexpected call: user=%q role=%q", gotUser, gotRole)
	}
}

func TestAdminSetFeatured(t *testing.T) {
	var got services.UpdateProductCommand
	catalog := &stubCatalogService{
		updateProduct: func(_ context.Context, cmd services.UpdateProductCommand) (services.Product, error) {
			got = cmd
			return services.Product{ID: cmd.ProductID, Featured: *cmd.Featured}, nil
		},
	}
	router := newAdminRouter(catalog, nil, nil)

	rr := doJSONRequest(t, router, http.MethodPatch, "/admin/products/prod-1/featured", map[string]any{"featured": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.ProductID != "prod-1" || got.Featured == nil || !*got.Featured {
		t.Fatalf("unexpected command: %+v", got)
	}
	if got.Name != nil || got.Price != nil {
		t.Fatalf("expected other fields nil: %+v", got)
	}

	var body productResponse
	decodeResponse(t, rr, &body)
	if !body.Product.Featured {
		t.Fatalf("expected featured product payload: %+v", body)
	}
}
