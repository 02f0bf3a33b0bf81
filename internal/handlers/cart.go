package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/cart"
	"github.com/marketsquare/api/internal/platform/httpx"
	"github.com/marketsquare/api/internal/platform/session"
	"github.com/marketsquare/api/internal/services"
)

// CartHandlers serves the anonymous session cart. The shopper is identified
// by a signed cookie; no authentication is required to build a cart.
type CartHandlers struct {
	carts    services.CartService
	sessions *session.Manager
}

// NewCartHandlers constructs the cart handlers.
func NewCartHandlers(carts services.CartService, sessions *session.Manager) *CartHandlers {
	return &CartHandlers{carts: carts, sessions: sessions}
}

// Routes wires the cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{productID}", h.updateItem)
	r.Delete("/items/{productID}", h.removeItem)
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartItemPayload struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id,omitempty"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type cartPayload struct {
	Items      []cartItemPayload `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice int64             `json:"total_price"`
	Clamped    bool              `json:"clamped,omitempty"`
}

func buildCartPayload(snapshot cart.Cart) cartPayload {
	payload := cartPayload{
		Items:      make([]cartItemPayload, 0, len(snapshot.Items)),
		TotalItems: snapshot.TotalItems(),
		TotalPrice: snapshot.TotalPrice(),
		Clamped:    snapshot.Clamped,
	}
	for _, item := range snapshot.Items {
		payload.Items = append(payload.Items, cartItemPayload{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal(),
		})
	}
	return payload
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.resolveSession(w, r, false)
	if !ok {
		return
	}
	if sessionID == "" {
		writeJSONResponse(w, http.StatusOK, buildCartPayload(cart.Cart{}))
		return
	}

	snapshot, err := h.carts.GetCart(ctx, sessionID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(snapshot))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.resolveSession(w, r, true)
	if !ok {
		return
	}

	var req cartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product_id is required", http.StatusBadRequest))
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	snapshot, err := h.carts.AddItem(ctx, sessionID, req.ProductID, req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(snapshot))
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.resolveSession(w, r, false)
	if !ok {
		return
	}
	if sessionID == "" {
		// No session means no cart; mutating an absent line is a no-op.
		writeJSONResponse(w, http.StatusOK, buildCartPayload(cart.Cart{}))
		return
	}

	var req cartQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	snapshot, err := h.carts.UpdateItem(ctx, sessionID, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(snapshot))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.resolveSession(w, r, false)
	if !ok {
		return
	}
	if sessionID == "" {
		writeJSONResponse(w, http.StatusOK, buildCartPayload(cart.Cart{}))
		return
	}

	snapshot, err := h.carts.RemoveItem(ctx, sessionID, chi.URLParam(r, "productID"))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(snapshot))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.resolveSession(w, r, false)
	if !ok {
		return
	}
	if sessionID != "" {
		if err := h.carts.ClearCart(ctx, sessionID); err != nil {
			writeCartError(ctx, w, err)
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart.Cart{}))
}

// resolveSession extracts the cart session from the signed cookie. When issue
// is set a missing or invalid cookie mints a fresh session; otherwise the
// handler proceeds with an empty session identifier.
func (h *CartHandlers) resolveSession(w http.ResponseWriter, r *http.Request, issue bool) (string, bool) {
	if h.sessions == nil || h.carts == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}

	if issue {
		sessionID, err := h.sessions.ResolveOrIssue(w, r)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("session_error", "could not establish cart session", http.StatusInternalServerError))
			return "", false
		}
		return sessionID, true
	}

	sessionID, err := h.sessions.Resolve(r)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrInvalidSession) {
			return "", true
		}
		httpx.WriteError(r.Context(), w, httpx.NewError("session_error", "could not resolve cart session", http.StatusInternalServerError))
		return "", false
	}
	return sessionID, true
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotPurchasable):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_purchasable", "product cannot be added to the cart", http.StatusConflict))
	case errors.Is(err, cart.ErrOutOfStock):
		httpx.WriteError(ctx, w, httpx.NewError("out_of_stock", "product is out of stock", http.StatusConflict))
	case errors.Is(err, cart.ErrSessionRequired), errors.Is(err, cart.ErrProductRequired):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		writeServiceError(ctx, w, err)
	}
}
