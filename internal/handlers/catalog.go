package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/platform/auth"
	"github.com/marketsquare/api/internal/platform/httpx"
	"github.com/marketsquare/api/internal/services"
)

// CatalogHandlers serves the public product and category browsing endpoints.
// Reads are unauthenticated and return only published products; review
// writes are registered on the same subtree behind per-route authentication.
type CatalogHandlers struct {
	catalog services.CatalogService
	reviews services.ReviewService
	authn   *auth.Authenticator
	limiter rateLimiter
}

// CatalogOption customises the catalog handlers.
type CatalogOption func(*CatalogHandlers)

// WithCatalogRateLimiter enables per-client rate limiting on search listings.
func WithCatalogRateLimiter(limiter rateLimiter) CatalogOption {
	return func(h *CatalogHandlers) {
		h.limiter = limiter
	}
}

// WithCatalogAuth enables the authenticated review endpoints under /products.
func WithCatalogAuth(authn *auth.Authenticator) CatalogOption {
	return func(h *CatalogHandlers) {
		h.authn = authn
	}
}

// NewCatalogHandlers constructs the public catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService, reviews services.ReviewService, opts ...CatalogOption) *CatalogHandlers {
	h := &CatalogHandlers{
		catalog: catalog,
		reviews: reviews,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the public catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/products", func(products chi.Router) {
		products.Get("/", h.listProducts)
		products.Get("/slug/{slug}", h.getProductBySlug)
		products.Get("/{productID}", h.getProduct)
		products.Get("/{productID}/reviews", h.listReviews)
		authed := chi.Router(products)
		if h.authn != nil {
			authed = products.With(h.authn.RequireFirebaseAuth())
		}
		authed.Post("/{productID}/reviews", h.submitReview)
		authed.Put("/{productID}/reviews/{reviewID}", h.updateReview)
		authed.Delete("/{productID}/reviews/{reviewID}", h.deleteReview)
	})
	r.Route("/categories", func(categories chi.Router) {
		categories.Get("/", h.listCategories)
		categories.Get("/{slug}", h.getCategory)
	})
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		return
	}

	params, ok := parseListParams(w, r)
	if !ok {
		return
	}

	query, err := parseProductListQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	query.Page = params

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

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *CatalogHandlers) getProductBySlug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProductBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *CatalogHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, ok := parseListParams(w, r)
	if !ok {
		return
	}

	page, err := h.reviews.ListForProduct(ctx, chi.URLParam(r, "productID"), params)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	payload := pagePayload[reviewPayload]{
		Items:    make([]reviewPayload, 0, len(page.Items)),
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, review := range page.Items {
		payload.Items = append(payload.Items, buildReviewPayload(review))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

type submitReviewRequest struct {
	OrderID string `json:"order_id"`
	Rating  int    `json:"rating"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
}

func (h *CatalogHandlers) submitReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req submitReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	review, err := h.reviews.Submit(ctx, services.SubmitReviewCommand{
		Actor:     actorFromIdentity(identity),
		ProductID: chi.URLParam(r, "productID"),
		OrderID:   strings.TrimSpace(req.OrderID),
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildReviewPayload(review))
}

type updateReviewRequest struct {
	Rating  *int    `json:"rating"`
	Title   *string `json:"title"`
	Comment *string `json:"comment"`
}

func (h *CatalogHandlers) updateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	review, err := h.reviews.Update(ctx, services.UpdateReviewCommand{
		Actor:    actorFromIdentity(identity),
		ReviewID: chi.URLParam(r, "reviewID"),
		Rating:   req.Rating,
		Title:    req.Title,
		Comment:  req.Comment,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildReviewPayload(review))
}

func (h *CatalogHandlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.reviews.Delete(ctx, actorFromIdentity(identity), chi.URLParam(r, "reviewID")); err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := categoriesResponse{Categories: make([]categoryPayload, 0, len(categories))}
	for _, category := range categories {
		payload.Categories = append(payload.Categories, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	category, err := h.catalog.GetCategoryBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, categoryResponse{Category: buildCategoryPayload(category)})
}

func parseProductListQuery(r *http.Request) (services.ProductListQuery, error) {
	q := r.URL.Query()
	query := services.ProductListQuery{
		CategorySlug: strings.TrimSpace(q.Get("category")),
		SellerID:     strings.TrimSpace(q.Get("seller")),
		Search:       strings.TrimSpace(q.Get("search")),
		SortBy:       strings.TrimSpace(q.Get("sort")),
	}

	if raw := strings.TrimSpace(q.Get("featured")); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return services.ProductListQuery{}, errors.New("featured must be a boolean")
		}
		query.Featured = &featured
	}
	if raw := strings.TrimSpace(q.Get("min_price")); raw != "" {
		minPrice, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || minPrice < 0 {
			return services.ProductListQuery{}, errors.New("min_price must be a non-negative integer")
		}
		query.MinPrice = &minPrice
	}
	if raw := strings.TrimSpace(q.Get("max_price")); raw != "" {
		maxPrice, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || maxPrice < 0 {
			return services.ProductListQuery{}, errors.New("max_price must be a non-negative integer")
		}
		query.MaxPrice = &maxPrice
	}
	if query.MinPrice != nil && query.MaxPrice != nil && *query.MinPrice > *query.MaxPrice {
		return services.ProductListQuery{}, errors.New("min_price must not exceed max_price")
	}
	return query, nil
}

func writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrReviewNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_found", "review not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewExists):
		httpx.WriteError(ctx, w, httpx.NewError("review_exists", "product already reviewed for this order", http.StatusConflict))
	case errors.Is(err, services.ErrReviewNotEligible):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_eligible", "no completed purchase of this product", http.StatusForbidden))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	default:
		writeServiceError(ctx, w, err)
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
	default:
		writeServiceError(ctx, w, err)
	}
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type categoriesResponse struct {
	Categories []categoryPayload `json:"categories"`
}

type categoryResponse struct {
	Category categoryPayload `json:"category"`
}

type productPayload struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Slug              string           `json:"slug"`
	Description       string           `json:"description,omitempty"`
	Price             int64            `json:"price"`
	CompareAtPrice    int64            `json:"compare_at_price,omitempty"`
	InventoryQuantity int              `json:"inventory_quantity"`
	SKU               string           `json:"sku,omitempty"`
	Images            []string         `json:"images"`
	Status            string           `json:"status"`
	Featured          bool             `json:"featured"`
	Rating            float64          `json:"rating"`
	ReviewCount       int              `json:"review_count"`
	SellerID          string           `json:"seller_id"`
	Seller            *sellerPayload   `json:"seller,omitempty"`
	CategoryID        string           `json:"category_id,omitempty"`
	Category          *categoryPayload `json:"category,omitempty"`
	CreatedAt         string           `json:"created_at,omitempty"`
	UpdatedAt         string           `json:"updated_at,omitempty"`
}

type sellerPayload struct {
	ID       string `json:"id"`
	FullName string `json:"full_name,omitempty"`
}

type categoryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
}

type reviewPayload struct {
	ID        string         `json:"id"`
	ProductID string         `json:"product_id"`
	Rating    int            `json:"rating"`
	Title     string         `json:"title,omitempty"`
	Comment   string         `json:"comment,omitempty"`
	Author    *sellerPayload `json:"author,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	images := product.Images
	if images == nil {
		images = []string{}
	}

	payload := productPayload{
		ID:                product.ID,
		Name:              product.Name,
		Slug:              product.Slug,
		Description:       product.Description,
		Price:             product.Price,
		CompareAtPrice:    product.CompareAtPrice,
		InventoryQuantity: product.InventoryQuantity,
		SKU:               product.SKU,
		Images:            images,
		Status:            string(product.Status),
		Featured:          product.Featured,
		Rating:            product.Rating,
		ReviewCount:       product.ReviewCount,
		SellerID:          product.SellerID,
		CategoryID:        product.CategoryID,
		CreatedAt:         formatTime(product.CreatedAt),
		UpdatedAt:         formatTime(product.UpdatedAt),
	}
	if product.Seller != nil {
		payload.Seller = &sellerPayload{ID: product.Seller.ID, FullName: product.Seller.FullName}
	}
	if product.Category != nil {
		category := buildCategoryPayload(*product.Category)
		payload.Category = &category
	}
	return payload
}

func buildCategoryPayload(category services.Category) categoryPayload {
	return categoryPayload{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		ImageURL:    category.ImageURL,
		ParentID:    category.ParentID,
	}
}

func buildReviewPayload(review services.Review) reviewPayload {
	payload := reviewPayload{
		ID:        review.ID,
		ProductID: review.ProductID,
		Rating:    review.Rating,
		Title:     review.Title,
		Comment:   review.Comment,
		CreatedAt: formatTime(review.CreatedAt),
	}
	if review.User != nil {
		payload.Author = &sellerPayload{ID: review.User.ID, FullName: review.User.FullName}
	}
	return payload
}

func clientKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.RemoteAddr)
}
