package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/marketsquare/api/internal/cart"
	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/payments"
	"github.com/marketsquare/api/internal/repositories"
)

const defaultCheckoutCurrency = "USD"

var (
	// ErrCartEmpty indicates checkout was attempted with nothing in the cart.
	ErrCartEmpty = errors.New("checkout service: cart is empty")
	// ErrInsufficientInventory indicates a cart line exceeds the live stock level.
	ErrInsufficientInventory = errors.New("checkout service: insufficient inventory")
	// ErrOrderNotFound indicates no order matches the checkout session.
	ErrOrderNotFound = errors.New("checkout service: order not found")
	// ErrSessionNotFound indicates the PSP has no record of the session.
	ErrSessionNotFound = errors.New("checkout service: checkout session not found")
)

// CheckoutServiceDeps bundles collaborators for the checkout service.
type CheckoutServiceDeps struct {
	Carts      *cart.Registry
	Products   repositories.ProductRepository
	Orders     repositories.OrderRepository
	Addresses  repositories.AddressRepository
	Payments   *payments.Manager
	Events     OrderEventPublisher
	SuccessURL string
	CancelURL  string
	Currency   string
	SessionTTL time.Duration
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	carts      *cart.Registry
	products   repositories.ProductRepository
	orders     repositories.OrderRepository
	addresses  repositories.AddressRepository
	payments   *payments.Manager
	events     OrderEventPublisher
	successURL string
	cancelURL  string
	currency   string
	sessionTTL time.Duration
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs the checkout service.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart registry is required")
	}
	if deps.Products == nil {
		return nil, errors.New("checkout service: product repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment manager is required")
	}
	if strings.TrimSpace(deps.SuccessURL) == "" || strings.TrimSpace(deps.CancelURL) == "" {
		return nil, errors.New("checkout service: success and cancel urls are required")
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCheckoutCurrency
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		carts:      deps.Carts,
		products:   deps.Products,
		orders:     deps.Orders,
		addresses:  deps.Addresses,
		payments:   deps.Payments,
		events:     deps.Events,
		successURL: strings.TrimSpace(deps.SuccessURL),
		cancelURL:  strings.TrimSpace(deps.CancelURL),
		currency:   currency,
		sessionTTL: deps.SessionTTL,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// CreateSession snapshots the cart into a pending order and hands the browser
// off to the hosted payment page. Inventory is validated here but only
// decremented once payment is verified.
func (s *checkoutService) CreateSession(ctx context.Context, cmd CreateCheckoutCommand) (CheckoutSession, error) {
	userID := strings.TrimSpace(cmd.Actor.UserID)
	if userID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	snapshot, err := s.carts.Get(cmd.CartSessionID)
	if err != nil {
		return CheckoutSession{}, err
	}
	if snapshot.IsEmpty() {
		return CheckoutSession{}, ErrCartEmpty
	}

	lineItems, err := s.buildLineItems(ctx, snapshot)
	if err != nil {
		return CheckoutSession{}, err
	}

	var shipping *domain.ShippingAddress
	if addressID := strings.TrimSpace(cmd.AddressID); addressID != "" {
		if s.addresses == nil {
			return CheckoutSession{}, errors.New("checkout service: address repository not configured")
		}
		address, err := s.addresses.FindByID(ctx, userID, addressID)
		if err != nil {
			if isRepoNotFound(err) {
				return CheckoutSession{}, fmt.Errorf("%w: address %s", ErrNotFound, addressID)
			}
			return CheckoutSession{}, err
		}
		shipping = &domain.ShippingAddress{
			FullName:     address.FullName,
			Phone:        address.Phone,
			AddressLine1: address.AddressLine1,
			AddressLine2: address.AddressLine2,
			City:         address.City,
			State:        address.State,
			PostalCode:   address.PostalCode,
			Country:      address.Country,
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}

	now := s.clock()
	orderID := ulid.Make().String()

	var total int64
	for _, item := range lineItems {
		total += item.Subtotal
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.PaymentContext{Currency: currency}, payments.CheckoutSessionRequest{
		Amount:     total,
		Currency:   currency,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
		Metadata: map[string]string{
			"orderId": orderID,
			"userId":  userID,
		},
		Items: checkoutLineItems(lineItems, currency),
	})
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}

	order := domain.Order{
		ID:              orderID,
		UserID:          userID,
		Items:           lineItems,
		TotalAmount:     total,
		Currency:        currency,
		Status:          domain.OrderStatusPending,
		SessionID:       session.ID,
		PaymentIntentID: session.IntentID,
		CustomerEmail:   strings.TrimSpace(cmd.CustomerEmail),
		CustomerName:    strings.TrimSpace(cmd.CustomerName),
		ShippingAddress: shipping,
	}
	if _, err := s.orders.Insert(ctx, order); err != nil {
		return CheckoutSession{}, fmt.Errorf("insert pending order: %w", err)
	}

	expiresAt := session.ExpiresAt
	if expiresAt.IsZero() && s.sessionTTL > 0 {
		expiresAt = now.Add(s.sessionTTL)
	}

	if s.events != nil {
		message := OrderEventMessage{
			EventType:  "order.created",
			OrderID:    orderID,
			UserID:     userID,
			SessionID:  session.ID,
			Status:     string(domain.OrderStatusPending),
			TotalPrice: total,
			OccurredAt: now,
		}
		if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
			s.logger(ctx, "checkout.event.publish_failed", map[string]any{
				"orderId": orderID,
				"error":   err.Error(),
			})
		}
	}

	s.logger(ctx, "checkout.session.created", map[string]any{
		"orderId":   orderID,
		"sessionId": session.ID,
		"userId":    userID,
		"total":     total,
		"currency":  currency,
	})

	return CheckoutSession{
		SessionID:   session.ID,
		OrderID:     orderID,
		RedirectURL: session.RedirectURL,
		ExpiresAt:   expiresAt,
	}, nil
}

// VerifyPayment polls the PSP for the session state. On the first paid
// verification the order is completed, inventory decremented, the order event
// published, and the session cart cleared. Repeat calls are idempotent.
func (s *checkoutService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (PaymentVerification, error) {
	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		return PaymentVerification{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	details, err := s.payments.GetCheckoutSession(ctx, payments.PaymentContext{}, payments.SessionLookupRequest{SessionID: sessionID})
	if err != nil {
		return PaymentVerification{}, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}

	verification := PaymentVerification{
		Verified:      details.Paid(),
		Status:        details.PaymentStatus,
		SessionID:     details.ID,
		IntentID:      details.IntentID,
		Amount:        details.Amount,
		Currency:      details.Currency,
		CustomerEmail: details.CustomerEmail,
		CustomerName:  details.CustomerName,
	}

	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return PaymentVerification{}, ErrOrderNotFound
		}
		return PaymentVerification{}, err
	}
	if !cmd.Actor.IsAdmin() && order.UserID != strings.TrimSpace(cmd.Actor.UserID) {
		return PaymentVerification{}, ErrPermissionDenied
	}

	if !verification.Verified || order.Status == domain.OrderStatusCompleted {
		return verification, nil
	}

	now := s.clock()
	updated, err := s.orders.MarkStatus(ctx, order.ID, domain.OrderStatusCompleted, details.IntentID, &now)
	if err != nil {
		return PaymentVerification{}, fmt.Errorf("complete order: %w", err)
	}
	verification.OrderUpdated = true

	for _, item := range updated.Items {
		if _, err := s.products.AdjustInventory(ctx, item.ProductID, -item.Quantity); err != nil {
			// Oversell after payment is a reconciliation problem, not a
			// verification failure. Log and continue.
			s.logger(ctx, "checkout.inventory.adjust_failed", map[string]any{
				"orderId":   updated.ID,
				"productId": item.ProductID,
				"error":     err.Error(),
			})
		}
	}

	if s.events != nil {
		message := OrderEventMessage{
			EventType:  "order.paid",
			OrderID:    updated.ID,
			UserID:     updated.UserID,
			SessionID:  sessionID,
			Status:     string(updated.Status),
			TotalPrice: updated.TotalAmount,
			OccurredAt: now,
		}
		if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
			s.logger(ctx, "checkout.event.publish_failed", map[string]any{
				"orderId": updated.ID,
				"error":   err.Error(),
			})
		}
	}

	if cartSession := strings.TrimSpace(cmd.CartSessionID); cartSession != "" {
		if err := s.carts.Clear(cartSession); err != nil {
			s.logger(ctx, "checkout.cart.clear_failed", map[string]any{
				"sessionId": cartSession,
				"error":     err.Error(),
			})
		}
	}

	s.logger(ctx, "checkout.payment.verified", map[string]any{
		"orderId":   updated.ID,
		"sessionId": sessionID,
		"status":    verification.Status,
	})

	return verification, nil
}

// buildLineItems freezes the cart into order lines, revalidating inventory
// and product state against the live catalog.
func (s *checkoutService) buildLineItems(ctx context.Context, snapshot cart.Cart) ([]domain.OrderLineItem, error) {
	items := make([]domain.OrderLineItem, 0, len(snapshot.Items))
	for _, line := range snapshot.Items {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if isRepoNotFound(err) {
				return nil, fmt.Errorf("%w: product %s", ErrNotFound, line.ProductID)
			}
			return nil, err
		}
		if product.Status != domain.ProductStatusActive {
			return nil, fmt.Errorf("%w: product %s", ErrProductNotPurchasable, line.ProductID)
		}
		if product.InventoryQuantity < line.Quantity {
			return nil, fmt.Errorf("%w: product %s", ErrInsufficientInventory, line.ProductID)
		}

		imageURL := line.ImageURL
		if imageURL == "" && len(product.Images) > 0 {
			imageURL = product.Images[0]
		}

		items = append(items, domain.OrderLineItem{
			ProductID: product.ID,
			SellerID:  product.SellerID,
			Name:      product.Name,
			ImageURL:  imageURL,
			Price:     product.Price,
			Quantity:  line.Quantity,
			Subtotal:  product.Price * int64(line.Quantity),
		})
	}
	return items, nil
}

func checkoutLineItems(items []domain.OrderLineItem, currency string) []payments.CheckoutLineItem {
	out := make([]payments.CheckoutLineItem, 0, len(items))
	for _, item := range items {
		out = append(out, payments.CheckoutLineItem{
			Name:     item.Name,
			Quantity: int64(item.Quantity),
			Amount:   item.Price,
			Currency: currency,
		})
	}
	return out
}
