package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/auth"
	"github.com/marketsquare/api/internal/platform/session"
	"github.com/marketsquare/api/internal/services"
)

type checkoutFixture struct {
	router  chi.Router
	manager *session.Manager
}

func newCheckoutFixture(t *testing.T, checkout services.CheckoutService, identity *auth.Identity, opts ...CheckoutOption) checkoutFixture {
	t.Helper()
	manager := newTestSessionManager(t)
	handlers := NewCheckoutHandlers(nil, checkout, manager, opts...)
	return checkoutFixture{
		router:  newTestRouter("/checkout", identity, handlers.Routes),
		manager: manager,
	}
}

func TestCheckoutCreateSessionRequiresIdentity(t *testing.T) {
	fixture := newCheckoutFixture(t, &stubCheckoutService{}, nil)

	rr := doJSONRequest(t, fixture.router, http.MethodPost, "/checkout/session", map[string]any{})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCheckoutCreateSessionWithoutCartCookie(t *testing.T) {
	fixture := newCheckoutFixture(t, &stubCheckoutService{}, buyerIdentity())

	rr := doJSONRequest(t, fixture.router, http.MethodPost, "/checkout/session", map[string]any{})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckoutCreateSession(t *testing.T) {
	var got services.CreateCheckoutCommand
	checkout := &stubCheckoutService{
		createSession: func(_ context.Context, cmd services.CreateCheckoutCommand) (services.CheckoutSession, error) {
			got = cmd
			return services.CheckoutSession{
				SessionID:   "cs_test_123",
				OrderID:     "order-1",
				RedirectURL: "https://pay.example.com/cs_test_123",
				ExpiresAt:   time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	fixture := newCheckoutFixture(t, checkout, buyerIdentity())
	cookie, cartSession := issueCartCookie(t, fixture.manager)

	req := httptest.NewRequest(http.MethodPost, "/checkout/session", jsonBody(t, map[string]any{
		"customer_name": "Pat Buyer",
		"address_id":    "addr-1",
		"currency":      "usd",
	}))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	fixture.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Actor.UserID != "user-1" || got.Actor.Role != domain.RoleBuyer {
		t.Fatalf("unexpected actor: %+v", got.Actor)
	}
	if got.CartSessionID != cartSession {
		t.Fatalf("expected cart session %q, got %q", cartSession, got.CartSessionID)
	}
	if got.CustomerEmail != "buyer@example.com" {
		t.Fatalf("expected email to default to identity, got %q", got.CustomerEmail)
	}
	if got.CustomerName != "Pat Buyer" || got.AddressID != "addr-1" || got.Currency != "usd" {
		t.Fatalf("unexpected command: %+v", got)
	}

	var body checkoutSessionPayload
	decodeResponse(t, rr, &body)
	if body.SessionID != "cs_test_123" || body.OrderID != "order-1" {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if body.RedirectURL != "https://pay.example.com/cs_test_123" {
		t.Fatalf("unexpected redirect url %q", body.RedirectURL)
	}
	if body.ExpiresAt == "" {
		t.Fatalf("expected expires_at to be set")
	}
}

func TestCheckoutCreateSessionEmptyCart(t *testing.T) {
	checkout := &stubCheckoutService{
		createSession: func(context.Context, services.CreateCheckoutCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{}, services.ErrCartEmpty
		},
	}
	fixture := newCheckoutFixture(t, checkout, buyerIdentity())
	cookie, _ := issueCartCookie(t, fixture.manager)

	req := httptest.NewRequest(http.MethodPost, "/checkout/session", jsonBody(t, map[string]any{}))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	fixture.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestCheckoutCreateSessionRateLimited(t *testing.T) {
	limiter := newSimpleRateLimiter(1, time.Minute, time.Now)
	checkout := &stubCheckoutService{
		createSession: func(context.Context, services.CreateCheckoutCommand) (services.CheckoutSession, error) {
			return services.CheckoutSession{SessionID: "cs_1"}, nil
		},
	}
	fixture := newCheckoutFixture(t, checkout, buyerIdentity(), WithCheckoutRateLimiter(limiter))
	cookie, _ := issueCartCookie(t, fixture.manager)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/checkout/session", jsonBody(t, map[string]any{}))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		fixture.router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusCreated {
		t.Fatalf("first request: expected 201, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", code)
	}
}

func TestCheckoutVerifyPaymentRequiresSessionID(t *testing.T) {
	fixture := newCheckoutFixture(t, &stubCheckoutService{}, buyerIdentity())

	rr := doJSONRequest(t, fixture.router, http.MethodPost, "/checkout/verify", map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCheckoutVerifyPayment(t *testing.T) {
	var got services.VerifyPaymentCommand
	checkout := &stubCheckoutService{
		verifyPayment: func(_ context.Context, cmd services.VerifyPaymentCommand) (services.PaymentVerification, error) {
			got = cmd
			return services.PaymentVerification{
				Verified:      true,
				Status:        "paid",
				SessionID:     cmd.SessionID,
				Amount:        4200,
				Currency:      "usd",
				CustomerEmail: "buyer@example.com",
				OrderUpdated:  true,
			}, nil
		},
	}
	fixture := newCheckoutFixture(t, checkout, buyerIdentity())
	cookie, cartSession := issueCartCookie(t, fixture.manager)

	req := httptest.NewRequest(http.MethodPost, "/checkout/verify", jsonBody(t, map[string]any{"session_id": "cs_test_123"}))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	fixture.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.SessionID != "cs_test_123" || got.CartSessionID != cartSession {
		t.Fatalf("unexpected command: %+v", got)
	}

	var body paymentVerificationPayload
	decodeResponse(t, rr, &body)
	if !body.Verified || body.Status != "paid" || !body.OrderUpdated {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if body.Amount != 4200 || body.Currency != "usd" {
		t.Fatalf("unexpected totals: %+v", body)
	}
}

// A missing cart cookie must not block verification; the cart is simply left
// alone when the session cannot be resolved.
func TestCheckoutVerifyPaymentWithoutCartCookie(t *testing.T) {
	checkout := &stubCheckoutService{
		verifyPayment: func(_ context.Context, cmd services.VerifyPaymentCommand) (services.PaymentVerification, error) {
			if cmd.CartSessionID != "" {
				t.Fatalf("expected empty cart session, got %q", cmd.CartSessionID)
			}
			return services.PaymentVerification{Verified: false, Status: "unpaid", SessionID: cmd.SessionID}, nil
		},
	}
	fixture := newCheckoutFixture(t, checkout, buyerIdentity())

	rr := doJSONRequest(t, fixture.router, http.MethodPost, "/checkout/verify", map[string]any{"session_id": "cs_test_456"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body paymentVerificationPayload
	decodeResponse(t, rr, &body)
	if body.Verified || body.Status != "unpaid" {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestCheckoutVerifyPaymentUnknownSession(t *testing.T) {
	checkout := &stubCheckoutService{
		verifyPayment: func(context.Context, services.VerifyPaymentCommand) (services.PaymentVerification, error) {
			return services.PaymentVerification{}, services.ErrSessionNotFound
		},
	}
	fixture := newCheckoutFixture(t, checkout, buyerIdentity())

	rr := doJSONRequest(t, fixture.router, http.MethodPost, "/checkout/verify", map[string]any{"session_id": "cs_missing"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
