package firestore

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	domain "github.com/marketsquare/api/internal/domain"
	pfirestore "github.com/marketsquare/api/internal/platform/firestore"
	"github.com/marketsquare/api/internal/platform/pagination"
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const orderCollection = "orders"

// OrderRepository persists orders and their embedded line items in Firestore.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order, minting an identifier when absent.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}

	now := time.Now().UTC()
	if strings.TrimSpace(order.ID) == "" {
		order.ID = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	}
	order.CreatedAt = now

	doc := fromDomainOrder(order, now)
	if _, err := r.base.Set(ctx, order.ID, doc); err != nil {
		return domain.Order{}, err
	}

	saved := toDomainOrder(doc)
	saved.ID = order.ID
	return saved, nil
}

// FindByID loads an order by identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	order := toDomainOrder(doc.Data)
	order.ID = doc.ID
	return order, nil
}

// FindBySessionID resolves the order created for a checkout session.
func (r *OrderRepository) FindBySessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Order{}, errors.New("session id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("sessionId", "==", sessionID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.findBySession", status.Error(codes.NotFound, "order not found"))
	}

	order := toDomainOrder(docs[0].Data)
	order.ID = docs[0].ID
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, params pagination.Params) (domain.Page[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Page[domain.Order]{}, errors.New("user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID).
			OrderBy("createdAt", firestore.Desc).
			Offset(params.Offset()).
			Limit(params.PageSize)
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	return ordersPage(docs, params), nil
}

// ListBySeller returns orders containing at least one of the seller's line
// items, newest first. Sellers are matched through the denormalised sellerIds
// field written alongside the items.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string, params pagination.Params) (domain.Page[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return domain.Page[domain.Order]{}, errors.New("seller id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("sellerIds", "array-contains", sellerID).
			OrderBy("createdAt", firestore.Desc).
			Offset(params.Offset()).
			Limit(params.PageSize)
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	return ordersPage(docs, params), nil
}

// ListAll returns orders for the admin dashboard, newest first, optionally
// narrowed to a single status.
func (r *OrderRepository) ListAll(ctx context.Context, orderStatus domain.OrderStatus, params pagination.Params) (domain.Page[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if orderStatus != "" {
			q = q.Where("status", "==", string(orderStatus))
		}
		return q.OrderBy("createdAt", firestore.Desc).
			Offset(params.Offset()).
			Limit(params.PageSize)
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	return ordersPage(docs, params), nil
}

// MarkStatus transitions the order status, recording the payment intent and
// settlement time when supplied.
func (r *OrderRepository) MarkStatus(ctx context.Context, orderID string, orderStatus domain.OrderStatus, paymentIntentID string, completedAt *time.Time) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(orderStatus)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	if intent := strings.TrimSpace(paymentIntentID); intent != "" {
		updates = append(updates, firestore.Update{Path: "paymentIntentId", Value: intent})
	}
	if completedAt != nil {
		updates = append(updates, firestore.Update{Path: "completedAt", Value: completedAt.UTC()})
	}

	if _, err := r.base.Update(ctx, orderID, updates); err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, orderID)
}

func ordersPage(docs []pfirestore.Document[orderDocument], params pagination.Params) domain.Page[domain.Order] {
	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := toDomainOrder(doc.Data)
		order.ID = doc.ID
		items = append(items, order)
	}
	return domain.Page[domain.Order]{Items: items, Page: params.Page, PageSize: params.PageSize}
}

type orderDocument struct {
	UserID          string              `firestore:"userId"`
	Items           []orderItemDocument `firestore:"items"`
	SellerIDs       []string            `firestore:"sellerIds,omitempty"`
	TotalAmount     int64               `firestore:"totalAmount"`
	Currency        string              `firestore:"currency"`
	Status          string              `firestore:"status"`
	SessionID       string              `firestore:"sessionId,omitempty"`
	PaymentIntentID string              `firestore:"paymentIntentId,omitempty"`
	CustomerEmail   string              `firestore:"customerEmail,omitempty"`
	CustomerName    string              `firestore:"customerName,omitempty"`
	Shipping        *shippingDocument   `firestore:"shipping,omitempty"`
	CompletedAt     *time.Time          `firestore:"completedAt,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	SellerID  string `firestore:"sellerId,omitempty"`
	Name      string `firestore:"name"`
	ImageURL  string `firestore:"imageUrl,omitempty"`
	Price     int64  `firestore:"price"`
	Quantity  int    `firestore:"quantity"`
	Subtotal  int64  `firestore:"subtotal"`
}

type shippingDocument struct {
	FullName     string `firestore:"fullName"`
	Phone        string `firestore:"phone,omitempty"`
	AddressLine1 string `firestore:"addressLine1"`
	AddressLine2 string `firestore:"addressLine2,omitempty"`
	City         string `firestore:"city"`
	State        string `firestore:"state,omitempty"`
	PostalCode   string `firestore:"postalCode"`
	Country      string `firestore:"country"`
}

func toDomainOrder(doc orderDocument) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}

	order := domain.Order{
		UserID:          strings.TrimSpace(doc.UserID),
		Items:           items,
		TotalAmount:     doc.TotalAmount,
		Currency:        doc.Currency,
		Status:          domain.OrderStatus(doc.Status),
		SessionID:       doc.SessionID,
		PaymentIntentID: doc.PaymentIntentID,
		CustomerEmail:   doc.CustomerEmail,
		CustomerName:    doc.CustomerName,
		CompletedAt:     doc.CompletedAt,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if doc.Shipping != nil {
		order.ShippingAddress = &domain.ShippingAddress{
			FullName:     doc.Shipping.FullName,
			Phone:        doc.Shipping.Phone,
			AddressLine1: doc.Shipping.AddressLine1,
			AddressLine2: doc.Shipping.AddressLine2,
			City:         doc.Shipping.City,
			State:        doc.Shipping.State,
			PostalCode:   doc.Shipping.PostalCode,
			Country:      doc.Shipping.Country,
		}
	}
	return order
}

func fromDomainOrder(order domain.Order, now time.Time) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID: strings.TrimSpace(item.ProductID),
			SellerID:  strings.TrimSpace(item.SellerID),
			Name:      strings.TrimSpace(item.Name),
			ImageURL:  strings.TrimSpace(item.ImageURL),
			Price:     item.Price,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}

	sellerIDs := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.SellerID == "" {
			continue
		}
		if _, ok := seen[item.SellerID]; ok {
			continue
		}
		seen[item.SellerID] = struct{}{}
		sellerIDs = append(sellerIDs, item.SellerID)
	}

	doc := orderDocument{
		UserID:          strings.TrimSpace(order.UserID),
		Items:           items,
		SellerIDs:       sellerIDs,
		TotalAmount:     order.TotalAmount,
		Currency:        strings.ToLower(strings.TrimSpace(order.Currency)),
		Status:          string(order.Status),
		SessionID:       strings.TrimSpace(order.SessionID),
		PaymentIntentID: strings.TrimSpace(order.PaymentIntentID),
		CustomerEmail:   strings.TrimSpace(order.CustomerEmail),
		CustomerName:    strings.TrimSpace(order.CustomerName),
		CompletedAt:     order.CompletedAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       now,
	}
	if doc.Status == "" {
		doc.Status = string(domain.OrderStatusPending)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if order.ShippingAddress != nil {
		doc.Shipping = &shippingDocument{
			FullName:     strings.TrimSpace(order.ShippingAddress.FullName),
			Phone:        strings.TrimSpace(order.ShippingAddress.Phone),
			AddressLine1: strings.TrimSpace(order.ShippingAddress.AddressLine1),
			AddressLine2: strings.TrimSpace(order.ShippingAddress.AddressLine2),
			City:         strings.TrimSpace(order.ShippingAddress.City),
			State:        strings.TrimSpace(order.ShippingAddress.State),
			PostalCode:   strings.TrimSpace(order.ShippingAddress.PostalCode),
			Country:      strings.TrimSpace(order.ShippingAddress.Country),
		}
	}
	return doc
}
