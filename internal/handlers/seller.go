package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/platform/auth"
	"github.com/marketsquare/api/internal/platform/httpx"
	"github.com/marketsquare/api/internal/platform/storage"
	"github.com/marketsquare/api/internal/services"
)

const maxImageUploadSize = 10 << 20

// SellerHandlers serves the seller dashboard: managing own products and
// uploading product imagery. Admins may use these endpoints as well.
type SellerHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	media   services.MediaService
	orders  services.OrderService
}

// NewSellerHandlers constructs handlers gated to the seller and admin roles.
func NewSellerHandlers(authn *auth.Authenticator, catalog services.CatalogService, media services.MediaService, orders services.OrderService) *SellerHandlers {
	return &SellerHandlers{
		authn:   authn,
		catalog: catalog,
		media:   media,
		orders:  orders,
	}
}

// Routes wires the seller dashboard endpoints onto the provided router.
func (h *SellerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleSeller, auth.RoleAdmin))
	}
	r.Get("/products", h.listOwnProducts)
	r.Post("/products", h.createProduct)
	r.Put("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	r.Get("/orders", h.listSoldItems)
	r.Post("/images", h.uploadImage)
	r.Delete("/images", h.deleteImage)
}

type createProductRequest struct {
	CategoryID        string   `json:"category_id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Price             int64    `json:"price"`
	CompareAtPrice    int64    `json:"compare_at_price"`
	InventoryQuantity int      `json:"inventory_quantity"`
	SKU               string   `json:"sku"`
	Images            []string `json:"images"`
	Status            string   `json:"status"`
}

type updateProductRequest struct {
	CategoryID        *string  `json:"category_id"`
	Name              *string  `json:"name"`
	Description       *string  `json:"description"`
	Price             *int64   `json:"price"`
	CompareAtPrice    *int64   `json:"compare_at_price"`
	InventoryQuantity *int     `json:"inventory_quantity"`
	SKU               *string  `json:"sku"`
	Images            []string `json:"images"`
	Status            *string  `json:"status"`
	Featured          *bool    `json:"featured"`
}

type imageUploadPayload struct {
	URL string `json:"url"`
}

type imageDeleteRequest struct {
	URL string `json:"url"`
}

func (h *SellerHandlers) listOwnProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
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

	actor := actorFromIdentity(identity)
	query := services.ProductListQuery{
		SellerID:           identity.UID,
		Status:             strings.TrimSpace(r.URL.Query().Get("status")),
		Search:             strings.TrimSpace(r.URL.Query().Get("search")),
		Page:               params,
		IncludeUnpublished: true,
	}
	// Admins may inspect any seller's inventory.
	if actor.IsAdmin() {
		if seller := strings.TrimSpace(r.URL.Query().Get("seller")); seller != "" {
			query.SellerID = seller
		}
	}

	page, err := h.catalog.ListProducts(ctx, query)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := pagePayload[productPayload]{
		Items:    make([]productPayload, 0, len(page.Items)),
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, product := range page.Items {
		payload.Items = append(payload.Items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *SellerHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.CreateProduct(ctx, services.CreateProductCommand{
		Actor:             actorFromIdentity(identity),
		CategoryID:        req.CategoryID,
		Name:              req.Name,
		Description:       req.Description,
		Price:             req.Price,
		CompareAtPrice:    req.CompareAtPrice,
		InventoryQuantity: req.InventoryQuantity,
		SKU:               req.SKU,
		Images:            req.Images,
		Status:            req.Status,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, productResponse{Product: buildProductPayload(product)})
}

func (h *SellerHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpdateProductCommand{
		Actor:             actorFromIdentity(identity),
		ProductID:         chi.URLParam(r, "productID"),
		CategoryID:        req.CategoryID,
		Name:              req.Name,
		Description:       req.Description,
		Price:             req.Price,
		CompareAtPrice:    req.CompareAtPrice,
		InventoryQuantity: req.InventoryQuantity,
		SKU:               req.SKU,
		Images:            req.Images,
		Status:            req.Status,
		Featured:          req.Featured,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *SellerHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(ctx, actorFromIdentity(identity), chi.URLParam(r, "productID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type soldItemPayload struct {
	OrderID     string           `json:"order_id"`
	OrderStatus string           `json:"order_status"`
	OrderedAt   string           `json:"ordered_at,omitempty"`
	Item        orderLinePayload `json:"item"`
}

func (h *SellerHandlers) listSoldItems(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.orders.ListSellerItems(ctx, actorFromIdentity(identity), params)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := pagePayload[soldItemPayload]{
		Items:    make([]soldItemPayload, 0, len(page.Items)),
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, sold := range page.Items {
		payload.Items = append(payload.Items, soldItemPayload{
			OrderID:     sold.OrderID,
			OrderStatus: string(sold.OrderStatus),
			OrderedAt:   formatTime(sold.OrderedAt),
			Item: orderLinePayload{
				ProductID: sold.Item.ProductID,
				SellerID:  sold.Item.SellerID,
				Name:      sold.Item.Name,
				ImageURL:  sold.Item.ImageURL,
				Price:     sold.Item.Price,
				Quantity:  sold.Item.Quantity,
				Subtotal:  sold.Item.Subtotal,
			},
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *SellerHandlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		httpx.WriteError(ctx, w, httpx.NewError("media_unavailable", "media service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadSize)
	file, header, err := r.FormFile("image")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "multipart field \"image\" is required", http.StatusBadRequest))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	publicURL, err := h.media.UploadProductImage(ctx, services.UploadImageCommand{
		Actor:       actorFromIdentity(identity),
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeMediaError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, imageUploadPayload{URL: publicURL})
}

func (h *SellerHandlers) deleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		httpx.WriteError(ctx, w, httpx.NewError("media_unavailable", "media service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req imageDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "url is required", http.StatusBadRequest))
		return
	}

	if err := h.media.DeleteProductImage(ctx, actorFromIdentity(identity), req.URL); err != nil {
		writeMediaError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeMediaError(ctx context.Context, w http.ResponseWriter, err error) {
	if storage.IsRejected(err) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_image", err.Error(), http.StatusBadRequest))
		return
	}
	writeServiceError(ctx, w, err)
}
