package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/pagination"
	"github.com/marketsquare/api/internal/repositories"
)

// ErrOrderTransitionInvalid indicates a status change the lifecycle does not allow.
var ErrOrderTransitionInvalid = errors.New("order service: invalid status transition")

// OrderServiceDeps bundles constructor inputs for the order service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Events OrderEventPublisher
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	events OrderEventPublisher
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService constructs the order service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders: deps.Orders,
		events: deps.Events,
		clock:  func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, actor Actor, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	if !actor.IsAdmin() && order.UserID != strings.TrimSpace(actor.UserID) {
		return Order{}, ErrPermissionDenied
	}
	return order, nil
}

// GetOrderBySession resolves an order through its checkout session ID, with
// the same ownership rule as GetOrder.
func (s *orderService) GetOrderBySession(ctx context.Context, actor Actor, sessionID string) (Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Order{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	if !actor.IsAdmin() && order.UserID != strings.TrimSpace(actor.UserID) {
		return Order{}, ErrPermissionDenied
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID string, params pagination.Params) (domain.Page[Order], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Page[Order]{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.orders.ListByUser(ctx, userID, params)
}

// ListSellerItems flattens the actor's sold line items out of the orders that
// contain them, preserving newest-first order.
func (s *orderService) ListSellerItems(ctx context.Context, actor Actor, params pagination.Params) (domain.Page[SellerOrderItem], error) {
	sellerID := strings.TrimSpace(actor.UserID)
	if sellerID == "" {
		return domain.Page[SellerOrderItem]{}, fmt.Errorf("%w: seller id is required", ErrInvalidInput)
	}
	if actor.Role != domain.RoleSeller && actor.Role != domain.RoleAdmin {
		return domain.Page[SellerOrderItem]{}, ErrPermissionDenied
	}

	page, err := s.orders.ListBySeller(ctx, sellerID, params)
	if err != nil {
		return domain.Page[SellerOrderItem]{}, err
	}

	items := make([]SellerOrderItem, 0, len(page.Items))
	for _, order := range page.Items {
		for _, line := range order.Items {
			if strings.TrimSpace(line.SellerID) != sellerID {
				continue
			}
			items = append(items, SellerOrderItem{
				OrderID:     order.ID,
				OrderStatus: order.Status,
				OrderedAt:   order.CreatedAt,
				Item:        line,
			})
		}
	}
	return domain.Page[SellerOrderItem]{Items: items, Page: page.Page, PageSize: page.PageSize}, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, actor Actor, status OrderStatus, params pagination.Params) (domain.Page[Order], error) {
	if !actor.IsAdmin() {
		return domain.Page[Order]{}, ErrPermissionDenied
	}
	if status != "" && !knownOrderStatus(status) {
		return domain.Page[Order]{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, status)
	}
	return s.orders.ListAll(ctx, status, params)
}

func knownOrderStatus(status OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusCompleted, domain.OrderStatusCancelled, domain.OrderStatusRefunded:
		return true
	}
	return false
}

// UpdateStatus applies an admin lifecycle transition. Completed orders may be
// refunded, pending orders cancelled; anything else is rejected.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	if !cmd.Actor.IsAdmin() {
		return Order{}, ErrPermissionDenied
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}

	if !allowedTransition(order.Status, cmd.Status) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderTransitionInvalid, order.Status, cmd.Status)
	}

	var completedAt *time.Time
	if cmd.Status == domain.OrderStatusCompleted {
		now := s.clock()
		completedAt = &now
	}

	updated, err := s.orders.MarkStatus(ctx, orderID, cmd.Status, "", completedAt)
	if err != nil {
		return Order{}, err
	}

	if s.events != nil {
		message := OrderEventMessage{
			EventType:  "order." + string(cmd.Status),
			OrderID:    updated.ID,
			UserID:     updated.UserID,
			Status:     string(updated.Status),
			TotalPrice: updated.TotalAmount,
			OccurredAt: s.clock(),
		}
		if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
			s.logger(ctx, "orders.event.publish_failed", map[string]any{
				"orderId": updated.ID,
				"error":   err.Error(),
			})
		}
	}

	s.logger(ctx, "orders.status.updated", map[string]any{
		"orderId": updated.ID,
		"status":  string(updated.Status),
		"actorId": cmd.Actor.UserID,
	})
	return updated, nil
}

func allowedTransition(from, to domain.OrderStatus) bool {
	switch from {
	case domain.OrderStatusPending:
		return to == domain.OrderStatusCompleted || to == domain.OrderStatusCancelled
	case domain.OrderStatusCompleted:
		return to == domain.OrderStatusRefunded
	default:
		return false
	}
}
