package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/platform/auth"
	"github.com/marketsquare/api/internal/platform/httpx"
	"github.com/marketsquare/api/internal/platform/session"
	"github.com/marketsquare/api/internal/services"
)

// CheckoutHandlers hands the shopper off to the hosted payment page and
// verifies the payment on return. Both endpoints require authentication; the
// cart itself is read from the session cookie.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
	sessions *session.Manager
	limiter  rateLimiter
}

// CheckoutOption customises the checkout handlers.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutRateLimiter bounds how often a single user may start checkout.
func WithCheckoutRateLimiter(limiter rateLimiter) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.limiter = limiter
	}
}

// NewCheckoutHandlers constructs handlers enforcing Firebase authentication
// before invoking the checkout service.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService, sessions *session.Manager, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/session", h.createSession)
	r.Post("/verify", h.verifyPayment)
}

type createCheckoutRequest struct {
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	AddressID     string `json:"address_id"`
	Currency      string `json:"currency"`
}

type checkoutSessionPayload struct {
	SessionID   string `json:"session_id"`
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

type verifyPaymentRequest struct {
	SessionID string `json:"session_id"`
}

type paymentVerificationPayload struct {
	Verified      bool   `json:"verified"`
	Status        string `json:"status"`
	SessionID     string `json:"session_id"`
	Amount        int64  `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	OrderUpdated  bool   `json:"order_updated"`
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts", http.StatusTooManyRequests))
		return
	}

	cartSessionID, ok := h.cartSession(w, r)
	if !ok {
		return
	}

	var req createCheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := strings.TrimSpace(req.CustomerEmail)
	if email == "" {
		email = identity.Email
	}

	checkoutSession, err := h.checkout.CreateSession(ctx, services.CreateCheckoutCommand{
		Actor:         actorFromIdentity(identity),
		CartSessionID: cartSessionID,
		CustomerEmail: email,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		AddressID:     strings.TrimSpace(req.AddressID),
		Currency:      strings.TrimSpace(req.Currency),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutSessionPayload{
		SessionID:   checkoutSession.SessionID,
		OrderID:     checkoutSession.OrderID,
		RedirectURL: checkoutSession.RedirectURL,
		ExpiresAt:   formatTime(checkoutSession.ExpiresAt),
	})
}

func (h *CheckoutHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "session_id is required", http.StatusBadRequest))
		return
	}

	// Verification may clear the cart, so pass along whatever cart session
	// the cookie still carries. A missing cookie is fine here.
	cartSessionID := ""
	if h.sessions != nil {
		if id, err := h.sessions.Resolve(r); err == nil {
			cartSessionID = id
		}
	}

	verification, err := h.checkout.VerifyPayment(ctx, services.VerifyPaymentCommand{
		Actor:         actorFromIdentity(identity),
		SessionID:     strings.TrimSpace(req.SessionID),
		CartSessionID: cartSessionID,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentVerificationPayload{
		Verified:      verification.Verified,
		Status:        verification.Status,
		SessionID:     verification.SessionID,
		Amount:        verification.Amount,
		Currency:      verification.Currency,
		CustomerEmail: verification.CustomerEmail,
		OrderUpdated:  verification.OrderUpdated,
	})
}

// cartSession resolves the cart session cookie. Checkout cannot proceed
// without one since the cart lives server-side keyed by it.
func (h *CheckoutHandlers) cartSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.sessions == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("checkout_unavailable", "cart session manager is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	sessionID, err := h.sessions.Resolve(r)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_empty", "no cart session present", http.StatusConflict))
		return "", false
	}
	return sessionID, true
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "the cart is empty", http.StatusConflict))
	case errors.Is(err, services.ErrInsufficientInventory):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_inventory", "a cart item exceeds available stock", http.StatusConflict))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "a cart item is no longer available", http.StatusConflict))
	case errors.Is(err, services.ErrProductNotPurchasable):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_purchasable", "a cart item is no longer purchasable", http.StatusConflict))
	case errors.Is(err, services.ErrAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "shipping address not found", http.StatusNotFound))
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_session_not_found", "checkout session not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	default:
		writeServiceError(ctx, w, err)
	}
}
