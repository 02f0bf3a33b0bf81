package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marketsquare/api/internal/cart"
	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/payments"
)

type fakeCheckoutProvider struct {
	session    payments.CheckoutSession
	sessionErr error
	details    payments.CheckoutSessionDetails
	detailsErr error

	lastCreate payments.CheckoutSessionRequest
	getCalls   int
}

func (p *fakeCheckoutProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	p.lastCreate = req
	if p.sessionErr != nil {
		return payments.CheckoutSession{}, p.sessionErr
	}
	return p.session, nil
}

func (p *fakeCheckoutProvider) GetCheckoutSession(ctx context.Context, req payments.SessionLookupRequest) (payments.CheckoutSessionDetails, error) {
	p.getCalls++
	if p.detailsErr != nil {
		return payments.CheckoutSessionDetails{}, p.detailsErr
	}
	return p.details, nil
}

func (p *fakeCheckoutProvider) Confirm(ctx context.Context, req payments.ConfirmRequest) (payments.PaymentDetails, error) {
	return payments.PaymentDetails{}, nil
}

func (p *fakeCheckoutProvider) Capture(ctx context.Context, req payments.CaptureRequest) (payments.PaymentDetails, error) {
	return payments.PaymentDetails{}, nil
}

func (p *fakeCheckoutProvider) Refund(ctx context.Context, req payments.RefundRequest) (payments.PaymentDetails, error) {
	return payments.PaymentDetails{}, nil
}

func (p *fakeCheckoutProvider) LookupPayment(ctx context.Context, req payments.LookupRequest) (payments.PaymentDetails, error) {
	return payments.PaymentDetails{}, nil
}

var _ payments.Provider = (*fakeCheckoutProvider)(nil)

type checkoutFixture struct {
	service   CheckoutService
	carts     *cart.Registry
	products  *stubProductRepo
	orders    *stubOrderRepo
	provider  *fakeCheckoutProvider
	publisher *stubEventPublisher
	now       time.Time
}

func newCheckoutFixture(t *testing.T, products ...domain.Product) *checkoutFixture {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	carts, err := cart.NewRegistry(cart.RegistryDeps{Clock: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	provider := &fakeCheckoutProvider{
		session: payments.CheckoutSession{
			ID:          "cs_test_123",
			RedirectURL: "https://pay.example.com/cs_test_123",
			IntentID:    "pi_test_123",
		},
		details: payments.CheckoutSessionDetails{
			ID:            "cs_test_123",
			IntentID:      "pi_test_123",
			Status:        payments.StatusSucceeded,
			PaymentStatus: "paid",
			Amount:        3000,
			Currency:      "USD",
			CustomerEmail: "buyer@example.com",
		},
	}
	manager, err := payments.NewManager(map[string]payments.Provider{"stripe": provider})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	productRepo := newStubProductRepo(products...)
	orderRepo := newStubOrderRepo()
	publisher := &stubEventPublisher{}

	service, err := NewCheckoutService(CheckoutServiceDeps{
		Carts:      carts,
		Products:   productRepo,
		Orders:     orderRepo,
		Payments:   manager,
		Events:     publisher,
		SuccessURL: "https://shop.example.com/checkout/success",
		CancelURL:  "https://shop.example.com/checkout/cancel",
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewCheckoutService() error = %v", err)
	}

	return &checkoutFixture{
		service:   service,
		carts:     carts,
		products:  productRepo,
		orders:    orderRepo,
		provider:  provider,
		publisher: publisher,
		now:       now,
	}
}

func (f *checkoutFixture) addToCart(t *testing.T, sessionID string, product domain.Product, quantity int) {
	t.Helper()
	if _, err := f.carts.Add(sessionID, cart.AddInput{
		ProductID:        product.ID,
		SellerID:         product.SellerID,
		Name:             product.Name,
		Price:            product.Price,
		Quantity:         quantity,
		InventoryCeiling: product.InventoryQuantity,
	}); err != nil {
		t.Fatalf("carts.Add() error = %v", err)
	}
}

func activeProduct(id string, price int64, stock int) domain.Product {
	return domain.Product{
		ID:                id,
		SellerID:          "seller-1",
		Name:              "Product " + id,
		Price:             price,
		InventoryQuantity: stock,
		Status:            domain.ProductStatusActive,
	}
}

func TestCheckoutCreateSessionRejectsEmptyCart(t *testing.T) {
	fixture := newCheckoutFixture(t)

	_, err := fixture.service.CreateSession(context.Background(), CreateCheckoutCommand{
		Actor:         Actor{UserID: "user-1", Role: domain.RoleBuyer},
		CartSessionID: "sess-1",
	})
	if !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("CreateSession() error = %v, want ErrCartEmpty", err)
	}
}

func TestCheckoutCreateSessionInsertsPendingOrder(t *testing.T) {
	first := activeProduct("prod-1", 1000, 10)
	second := activeProduct("prod-2", 500, 10)
	fixture := newCheckoutFixture(t, first, second)
	fixture.addToCart(t, "sess-1", first, 2)
	fixture.addToCart(t, "sess-1", second, 1)

	session, err := fixture.service.CreateSession(context.Background(), CreateCheckoutCommand{
		Actor:         Actor{UserID: "user-1", Role: domain.RoleBuyer},
		CartSessionID: "sess-1",
		CustomerEmail: "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.SessionID != "cs_test_123" {
		t.Fatalf("SessionID = %q, want cs_test_123", session.SessionID)
	}
	if session.RedirectURL != "https://pay.example.com/cs_test_123" {
		t.Fatalf("RedirectURL = %q", session.RedirectURL)
	}
	if session.OrderID == "" {
		t.Fatal("expected an order id")
	}

	if got := fixture.provider.lastCreate.Amount; got != 2500 {
		t.Fatalf("session amount = %d, want 2500", got)
	}
	if got := fixture.provider.lastCreate.Metadata["orderId"]; got != session.OrderID {
		t.Fatalf("metadata orderId = %q, want %q", got, session.OrderID)
	}
	if got := len(fixture.provider.lastCreate.Items); got != 2 {
		t.Fatalf("line items = %d, want 2", got)
	}

	order, err := fixture.orders.FindByID(context.Background(), session.OrderID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("order status = %q, want pending", order.Status)
	}
	if order.SessionID != "cs_test_123" {
		t.Fatalf("order session id = %q", order.SessionID)
	}
	if order.TotalAmount != 2500 {
		t.Fatalf("order total = %d, want 2500", order.TotalAmount)
	}
	if order.UserID != "user-1" {
		t.Fatalf("order user = %q", order.UserID)
	}

	// Creating the session must not touch the cart. The cart is cleared only
	// after the payment is verified.
	snapshot, err := fixture.carts.Get("sess-1")
	if err != nil {
		t.Fatalf("carts.Get() error = %v", err)
	}
	if snapshot.IsEmpty() {
		t.Fatal("cart was cleared before payment")
	}
}

func TestCheckoutCreateSessionUsesLivePrice(t *testing.T) {
	product := activeProduct("prod-1", 1000, 10)
	fixture := newCheckoutFixture(t, product)
	fixture.addToCart(t, "sess-1", product, 2)

	// Seller raises the price after the item was added to the cart.
	product.Price = 1500
	if _, err := fixture.products.Update(context.Background(), product); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	session, err := fixture.service.CreateSession(context.Background(), CreateCheckoutCommand{
		Actor:         Actor{UserID: "user-1", Role: domain.RoleBuyer},
		CartSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if got := fixture.provider.lastCreate.Amount; got != 3000 {
		t.Fatalf("session amount = %d, want 3000", got)
	}
	order, err := fixture.orders.FindByID(context.Background(), session.OrderID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if order.Items[0].Price != 1500 {
		t.Fatalf("line price = %d, want live price 1500", order.Items[0].Price)
	}
}

func TestCheckoutCreateSessionRejectsStaleInventory(t *testing.T) {
	product := activeProduct("prod-1", 1000, 5)
	fixture := newCheckoutFixture(t, product)
	fixture.addToCart(t, "sess-1", product, 4)

	// Stock drops below the cart quantity before checkout begins.
	product.InventoryQuantity = 2
	if _, err := fixture.products.Update(context.Background(), product); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	_, err := fixture.service.CreateSession(context.Background(), CreateCheckoutCommand{
		Actor:         Actor{UserID: "user-1", Role: domain.RoleBuyer},
		CartSessionID: "sess-1",
	})
	if !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("CreateSession() error = %v, want ErrInsufficientInventory", err)
	}
}

func TestCheckoutCreateSessionRejectsInactiveProduct(t *testing.T) {
	product := activeProduct("prod-1", 1000, 5)
	fixture := newCheckoutFixture(t, product)
	fixture.addToCart(t, "sess-1", product, 1)

	product.Status = domain.ProductStatusArchived
	if _, err := fixture.products.Update(context.Background(), product); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	_, err := fixture.service.CreateSession(context.Background(), CreateCheckoutCommand{
		Actor:         Actor{UserID: "user-1", Role: domain.RoleBuyer},
		CartSessionID: "sess-1",
	})
	if !errors.Is(err, ErrProductNotPurchasable) {
		t.Fatalf("CreateSession() error = %v, want ErrProductNotPurchasable", err)
	}
}

func TestCheckoutVerifyPaymentCompletesOrder(t *testing.T) {
	product := activeProduct("prod-1", 1000, 10)
	fixture := newCheckoutFixture(t, product)
	fixture.addToCart(t, "sess-1", product, 3)

	actor := Actor{UserID: "user-1", Role: domain.RoleBuyer}
	session, err := fixture.service.CreateSession(context.Background(), CreateCheckoutCommand{
		Actor:         actor,
		CartSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	verification, err := fixture.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		Actor:         actor,
		SessionID:     session.SessionID,
		CartSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}
	if !verification.Verified {
		t.Fatal("expected verification to report paid")
	}
	if !verification.OrderUpdated {
		t.Fatal("expected the order to be updated")
	}

	order, err := fixture.orders.FindByID(context.Background(), session.OrderID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("order status = %q, want completed", order.Status)
	}
	if order.CompletedAt == nil || !order.CompletedAt.Equal(fixture.now) {
		t.Fatalf("completedAt = %v, want %v", order.CompletedAt, fixture.now)
	}

	stocked, err := fixture.products.FindByID(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stocked.InventoryQuantity != 7 {
		t.Fatalf("inventory = %d, want 7", stocked.InventoryQuantity)
	}

	if len(fixture.publisher.messages) != 2 {
		t.Fatalf("published %d events, want 2", len(fixture.publisher.messages))
	}
	created := fixture.publisher.messages[0]
	if created.EventType != "order.created" {
		t.Fatalf("first event type = %q, want order.created", created.EventType)
	}
	if created.Status != "pending" {
		t.Fatalf("created event status = %q, want pending", created.Status)
	}
	paid := fixture.publisher.messages[1]
	if paid.EventType != "order.paid" {
		t.Fatalf("second event type = %q, want order.paid", paid.EventType)
	}
	if paid.OrderID != session.OrderID {
		t.Fatalf("event order id = %q, want %q", paid.OrderID, session.OrderID)
	}
	if paid.TotalPrice != 3000 {
		t.Fatalf("event total = %d, want 3000", paid.TotalPrice)
	}

	snapshot, err := fixture.carts.Get("sess-1")
	if err != nil {
		t.Fatalf("carts.Get() error = %v", err)
	}
	if !snapshot.IsEmpty() {
		t.Fatal("cart was not cleared after verified payment")
	}
}

func TestCheckoutVerifyPaymentUnpaidLeavesOrderAndCart(t *testing.T) {
	product := activeProduct("prod-1", 1000, 10)
	fixture := newCheckoutFixture(t, product)
	fixture.addToCart(t, "sess-1", product, 1)

	actor := Actor{UserID: "user-1", Role: domain.RoleBuyer}
	session, err := fixture.service.CreateSession(context.Background(), CreateCheckoutCommand{
		Actor:         actor,
		CartSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	fixture.provider.details.PaymentStatus = "unpaid"
	fixture.provider.details.Status = payments.StatusPending

	verification, err := fixture.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		Actor:         actor,
		SessionID:     session.SessionID,
		CartSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}
	if verification.Verified {
		t.Fatal("expected verification to report unpaid")
	}
	if verification.OrderUpdated {
		t.Fatal("order must not change on an unpaid session")
	}

	order, err := fixture.orders.FindByID(context.Background(), session.OrderID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("order status = %q, want pending", order.Status)
	}

	snapshot, err := fixture.carts.Get("sess-1")
	if err != nil {
		t.Fatalf("carts.Get() error = %v", err)
	}
	if snapshot.IsEmpty() {
		t.Fatal("cart must survive an unpaid verification")
	}

	// Only the creation event, nothing for the unpaid verification.
	if len(fixture.publisher.messages) != 1 {
		t.Fatalf("published %d events, want 1", len(fixture.publisher.messages))
	}
	if got := fixture.publisher.messages[0].EventType; got != "order.created" {
		t.Fatalf("event type = %q, want order.created", got)
	}
}

func TestCheckoutVerifyPaymentIsIdempotent(t *testing.T) {
	product := activeProduct("prod-1", 1000, 10)
	fixture := newCheckoutFixture(t, product)
	fixture.addToCart(t, "sess-1", product, 2)

	actor := Actor{UserID: "user-1", Role: domain.RoleBuyer}
	session, err := fixture.service.CreateSession(context.Background(), CreateCheckoutCommand{
		Actor:         actor,
		CartSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	cmd := VerifyPaymentCommand{Actor: actor, SessionID: session.SessionID, CartSessionID: "sess-1"}
	if _, err := fixture.service.VerifyPayment(context.Background(), cmd); err != nil {
		t.Fatalf("first VerifyPayment() error = %v", err)
	}
	second, err := fixture.service.VerifyPayment(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second VerifyPayment() error = %v", err)
	}
	if !second.Verified {
		t.Fatal("second verification should still report paid")
	}
	if second.OrderUpdated {
		t.Fatal("second verification must not update the order again")
	}
	// order.created plus a single order.paid, even after the repeat call.
	if len(fixture.publisher.messages) != 2 {
		t.Fatalf("published %d events, want 2", len(fixture.publisher.messages))
	}
	if len(fixture.products.adjustCalls) != 1 {
		t.Fatalf("inventory adjusted %d times, want 1", len(fixture.products.adjustCalls))
	}
}

func TestCheckoutVerifyPaymentRejectsForeignOrder(t *testing.T) {
	product := activeProduct("prod-1", 1000, 10)
	fixture := newCheckoutFixture(t, product)
	fixture.addToCart(t, "sess-1", product, 1)

	session, err := fixture.service.CreateSession(context.Background(), CreateCheckoutCommand{
		Actor:         Actor{UserID: "user-1", Role: domain.RoleBuyer},
		CartSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	_, err = fixture.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		Actor:     Actor{UserID: "user-2", Role: domain.RoleBuyer},
		SessionID: session.SessionID,
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("VerifyPayment() error = %v, want ErrPermissionDenied", err)
	}
}

func TestCheckoutVerifyPaymentUnknownSession(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.provider.detailsErr = errors.New("stripe: no such session")

	_, err := fixture.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		Actor:     Actor{UserID: "user-1", Role: domain.RoleBuyer},
		SessionID: "cs_missing",
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("VerifyPayment() error = %v, want ErrSessionNotFound", err)
	}
}
