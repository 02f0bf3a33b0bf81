package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/auth"
	"github.com/marketsquare/api/internal/platform/httpx"
	"github.com/marketsquare/api/internal/services"
)

// AdminHandlers serves the admin dashboard: category management, order
// oversight, account roles, and catalog curation.
type AdminHandlers struct {
	authn    *auth.Authenticator
	catalog  services.CatalogService
	orders   services.OrderService
	profiles services.ProfileService
}

// NewAdminHandlers constructs handlers gated to the admin role.
func NewAdminHandlers(authn *auth.Authenticator, catalog services.CatalogService, orders services.OrderService, profiles services.ProfileService) *AdminHandlers {
	return &AdminHandlers{
		authn:    authn,
		catalog:  catalog,
		orders:   orders,
		profiles: profiles,
	}
}

// Routes wires the admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Post("/categories", h.createCategory)
	r.Put("/categories/{categoryID}", h.updateCategory)
	r.Delete("/categories/{categoryID}", h.deleteCategory)
	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{orderID}/status", h.updateOrderStatus)
	r.Get("/profiles", h.listProfiles)
	r.Patch("/profiles/{userID}/role", h.changeRole)
	r.Patch("/products/{productID}/featured", h.setFeatured)
}

type categoryRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	ParentID    string `json:"parent_id"`
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type setFeaturedRequest struct {
	Featured bool `json:"featured"`
}

func (r categoryRequest) toCommand(actor services.Actor, categoryID string) services.CategoryCommand {
	return services.CategoryCommand{
		Actor:       actor,
		CategoryID:  categoryID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		ImageURL:    r.ImageURL,
		ParentID:    r.ParentID,
	}
}

func (h *AdminHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.catalog.CreateCategory(ctx, req.toCommand(actorFromIdentity(identity), ""))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, categoryResponse{Category: buildCategoryPayload(category)})
}

func (h *AdminHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.catalog.UpdateCategory(ctx, req.toCommand(actorFromIdentity(identity), chi.URLParam(r, "categoryID")))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, categoryResponse{Category: buildCategoryPayload(category)})
}

func (h *AdminHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteCategory(ctx, actorFromIdentity(identity), chi.URLParam(r, "categoryID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	params, ok := parseListParams(w, r)
	if !ok {
		return
	}

	status := services.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	page, err := h.orders.ListAllOrders(ctx, actorFromIdentity(identity), status, params)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := pagePayload[orderPayload]{
		Items:    make([]orderPayload, 0, len(page.Items)),
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, order := range page.Items {
		payload.Items = append(payload.Items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req orderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		Actor:   actorFromIdentity(identity),
		OrderID: chi.URLParam(r, "orderID"),
		Status:  domain.OrderStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminHandlers) listProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.profiles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	params, ok := parseListParams(w, r)
	if !ok {
		return
	}

	page, err := h.profiles.ListProfiles(ctx, actorFromIdentity(identity), params)
	if err != nil {
		writeProfileError(ctx, w, err)
		return
	}

	payload := pagePayload[profilePayload]{
		Items:    make([]profilePayload, 0, len(page.Items)),
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, profile := range page.Items {
		payload.Items = append(payload.Items, buildProfilePayload(profile))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) changeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.profiles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.profiles.ChangeRole(ctx, actorFromIdentity(identity), chi.URLParam(r, "userID"), domain.Role(strings.TrimSpace(req.Role)))
	if err != nil {
		writeProfileError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProfilePayload(profile))
}

func (h *AdminHandlers) setFeatured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req setFeaturedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpdateProductCommand{
		Actor:     actorFromIdentity(identity),
		ProductID: chi.URLParam(r, "productID"),
		Featured:  &req.Featured,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}
