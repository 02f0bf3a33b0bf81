package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/platform/auth"
	"github.com/marketsquare/api/internal/platform/httpx"
	"github.com/marketsquare/api/internal/services"
)

// WishlistHandlers manages the authenticated user's product wishlist.
type WishlistHandlers struct {
	authn    *auth.Authenticator
	wishlist services.WishlistService
}

// NewWishlistHandlers constructs handlers enforcing Firebase authentication
// before invoking the wishlist service.
func NewWishlistHandlers(authn *auth.Authenticator, wishlist services.WishlistService) *WishlistHandlers {
	return &WishlistHandlers{
		authn:    authn,
		wishlist: wishlist,
	}
}

// Routes wires the wishlist endpoints onto the provided router.
func (h *WishlistHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listWishlist)
	r.Put("/{productID}", h.addToWishlist)
	r.Delete("/{productID}", h.removeFromWishlist)
	r.Get("/{productID}", h.inWishlist)
}

type wishlistItemPayload struct {
	ProductID string          `json:"product_id"`
	AddedAt   string          `json:"added_at,omitempty"`
	Product   *productPayload `json:"product,omitempty"`
}

type wishlistResponse struct {
	Items []wishlistItemPayload `json:"items"`
}

type wishlistMembershipPayload struct {
	ProductID string `json:"product_id"`
	InList    bool   `json:"in_list"`
}

func (h *WishlistHandlers) listWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_unavailable", "wishlist service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	items, err := h.wishlist.ListWishlist(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := wishlistResponse{Items: make([]wishlistItemPayload, 0, len(items))}
	for _, item := range items {
		entry := wishlistItemPayload{
			ProductID: item.Entry.ProductID,
			AddedAt:   formatTime(item.Entry.CreatedAt),
		}
		if item.Product != nil {
			product := buildProductPayload(*item.Product)
			entry.Product = &product
		}
		payload.Items = append(payload.Items, entry)
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *WishlistHandlers) addToWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_unavailable", "wishlist service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "productID")
	created, err := h.wishlist.AddToWishlist(ctx, identity.UID, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, wishlistMembershipPayload{ProductID: productID, InList: true})
}

func (h *WishlistHandlers) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_unavailable", "wishlist service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.wishlist.RemoveFromWishlist(ctx, identity.UID, chi.URLParam(r, "productID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WishlistHandlers) inWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_unavailable", "wishlist service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "productID")
	inList, err := h.wishlist.InWishlist(ctx, identity.UID, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, wishlistMembershipPayload{ProductID: productID, InList: inList})
}
