package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/platform/auth"
	"github.com/marketsquare/api/internal/platform/httpx"
	"github.com/marketsquare/api/internal/services"
)

// OrderHandlers serves the authenticated user's order history.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs handlers enforcing Firebase authentication
// before invoking the order service.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the order history endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Get("/session/{sessionID}", h.getOrderBySession)
	r.Get("/{orderID}", h.getOrder)
}

type orderLinePayload struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id,omitempty"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type orderAddressPayload struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

type orderPayload struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	Items           []orderLinePayload   `json:"items"`
	TotalAmount     int64                `json:"total_amount"`
	Currency        string               `json:"currency,omitempty"`
	Status          string               `json:"status"`
	CustomerEmail   string               `json:"customer_email,omitempty"`
	CustomerName    string               `json:"customer_name,omitempty"`
	ShippingAddress *orderAddressPayload `json:"shipping_address,omitempty"`
	CompletedAt     string               `json:"completed_at,omitempty"`
	CreatedAt       string               `json:"created_at,omitempty"`
	UpdatedAt       string               `json:"updated_at,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:            order.ID,
		UserID:        order.UserID,
		Items:         make([]orderLinePayload, 0, len(order.Items)),
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		Status:        string(order.Status),
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderLinePayload{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}
	if order.ShippingAddress != nil {
		payload.ShippingAddress = &orderAddressPayload{
			FullName:     order.ShippingAddress.FullName,
			Phone:        order.ShippingAddress.Phone,
			AddressLine1: order.ShippingAddress.AddressLine1,
			AddressLine2: order.ShippingAddress.AddressLine2,
			City:         order.ShippingAddress.City,
			State:        order.ShippingAddress.State,
			PostalCode:   order.ShippingAddress.PostalCode,
			Country:      order.ShippingAddress.Country,
		}
	}
	if order.CompletedAt != nil {
		payload.CompletedAt = formatTime(*order.CompletedAt)
	}
	return payload
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.orders.ListOrders(ctx, identity.UID, params)
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

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, actorFromIdentity(identity), chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) getOrderBySession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrderBySession(ctx, actorFromIdentity(identity), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderTransitionInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", "order cannot move to the requested status", http.StatusConflict))
	default:
		writeServiceError(ctx, w, err)
	}
}
