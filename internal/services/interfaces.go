package services

import (
	"context"
	"io"
	"time"

	"github.com/marketsquare/api/internal/cart"
	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/pagination"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product             = domain.Product
	ProductStatus       = domain.ProductStatus
	Category            = domain.Category
	Order               = domain.Order
	OrderStatus         = domain.OrderStatus
	Review              = domain.Review
	Profile             = domain.Profile
	Role                = domain.Role
	Address             = domain.Address
	ShippingAddress     = domain.ShippingAddress
	CheckoutSession     = domain.CheckoutSession
	PaymentVerification = domain.PaymentVerification
	SystemHealthReport  = domain.SystemHealthReport
)

// Actor identifies the caller of a privileged operation. Role comes from the
// verified token, never from request payloads.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// CanManageProduct reports whether the actor may mutate the given product.
func (a Actor) CanManageProduct(p Product) bool {
	return a.IsAdmin() || (a.Role == domain.RoleSeller && a.UserID == p.SellerID)
}

// ProductListQuery collects the catalog listing filters exposed to clients.
type ProductListQuery struct {
	CategorySlug string
	CategoryID   string
	SellerID     string
	Status       string
	Featured     *bool
	Search       string
	MinPrice     *int64
	MaxPrice     *int64
	SortBy       string
	Page         pagination.Params

	// IncludeUnpublished lifts the active-only restriction for sellers
	// viewing their own inventory and for admins.
	IncludeUnpublished bool
}

// CreateProductCommand captures a seller's new product submission.
type CreateProductCommand struct {
	Actor             Actor
	CategoryID        string
	Name              string
	Description       string
	Price             int64
	CompareAtPrice    int64
	InventoryQuantity int
	SKU               string
	Images            []string
	Status            string
}

// UpdateProductCommand mutates an existing product owned by the actor.
type UpdateProductCommand struct {
	Actor             Actor
	ProductID         string
	CategoryID        *string
	Name              *string
	Description       *string
	Price             *int64
	CompareAtPrice    *int64
	InventoryQuantity *int
	SKU               *string
	Images            []string
	Status            *string
	Featured          *bool
}

// CategoryCommand captures an admin category mutation.
type CategoryCommand struct {
	Actor       Actor
	CategoryID  string
	Name        string
	Slug        string
	Description string
	ImageURL    string
	ParentID    string
}

// CatalogService serves product browsing and seller/admin catalog management.
type CatalogService interface {
	ListProducts(ctx context.Context, query ProductListQuery) (domain.Page[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (Category, error)

	CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, actor Actor, productID string) error

	CreateCategory(ctx context.Context, cmd CategoryCommand) (Category, error)
	UpdateCategory(ctx context.Context, cmd CategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, actor Actor, categoryID string) error
}

// EnsureProfileCommand upserts the profile record after token verification.
type EnsureProfileCommand struct {
	UserID   string
	Email    string
	FullName string
	Role     Role
}

// UpdateProfileCommand mutates the caller's own profile fields.
type UpdateProfileCommand struct {
	UserID    string
	FullName  *string
	Phone     *string
	AvatarURL *string
}

// ProfileService manages account records and role assignment.
type ProfileService interface {
	EnsureProfile(ctx context.Context, cmd EnsureProfileCommand) (Profile, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (Profile, error)
	ListProfiles(ctx context.Context, actor Actor, params pagination.Params) (domain.Page[Profile], error)
	ChangeRole(ctx context.Context, actor Actor, userID string, role Role) (Profile, error)
}

// CartService mediates the in-memory session cart, hydrating product
// snapshots from the catalog on every add.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (cart.Cart, error)
	AddItem(ctx context.Context, sessionID, productID string, quantity int) (cart.Cart, error)
	UpdateItem(ctx context.Context, sessionID, productID string, quantity int) (cart.Cart, error)
	RemoveItem(ctx context.Context, sessionID, productID string) (cart.Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
}

// CreateCheckoutCommand starts the hosted-payment handoff for a session cart.
type CreateCheckoutCommand struct {
	Actor         Actor
	CartSessionID string
	CustomerEmail string
	CustomerName  string
	AddressID     string
	Currency      string
}

// VerifyPaymentCommand confirms a checkout session after the PSP redirect.
type VerifyPaymentCommand struct {
	Actor         Actor
	SessionID     string
	CartSessionID string
}

// CheckoutService creates hosted checkout sessions and verifies payment on
// return. The cart is only cleared once the PSP reports the session as paid.
type CheckoutService interface {
	CreateSession(ctx context.Context, cmd CreateCheckoutCommand) (CheckoutSession, error)
	VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (PaymentVerification, error)
}

// UpdateOrderStatusCommand is an admin-only order lifecycle transition.
type UpdateOrderStatusCommand struct {
	Actor   Actor
	OrderID string
	Status  OrderStatus
}

// OrderService exposes order history to buyers and full order management to admins.
type OrderService interface {
	GetOrder(ctx context.Context, actor Actor, orderID string) (Order, error)
	GetOrderBySession(ctx context.Context, actor Actor, sessionID string) (Order, error)
	ListOrders(ctx context.Context, userID string, params pagination.Params) (domain.Page[Order], error)
	ListSellerItems(ctx context.Context, actor Actor, params pagination.Params) (domain.Page[SellerOrderItem], error)
	// ListAllOrders pages every order for admins, optionally filtered to one
	// status. An empty status matches all orders.
	ListAllOrders(ctx context.Context, actor Actor, status OrderStatus, params pagination.Params) (domain.Page[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
}

// SellerOrderItem is one sold line item together with the order context a
// seller dashboard needs.
type SellerOrderItem struct {
	OrderID     string
	OrderStatus domain.OrderStatus
	OrderedAt   time.Time
	Item        domain.OrderLineItem
}

// SubmitReviewCommand records a buyer's rating of a purchased product.
type SubmitReviewCommand struct {
	Actor     Actor
	ProductID string
	OrderID   string
	Rating    int
	Title     string
	Comment   string
}

// UpdateReviewCommand edits an existing review. Nil fields keep their
// current value.
type UpdateReviewCommand struct {
	Actor    Actor
	ReviewID string
	Rating   *int
	Title    *string
	Comment  *string
}

// ReviewService manages product reviews and keeps product rating aggregates current.
type ReviewService interface {
	ListForProduct(ctx context.Context, productID string, params pagination.Params) (domain.Page[Review], error)
	ListForUser(ctx context.Context, userID string, params pagination.Params) (domain.Page[Review], error)
	Submit(ctx context.Context, cmd SubmitReviewCommand) (Review, error)
	Update(ctx context.Context, cmd UpdateReviewCommand) (Review, error)
	Delete(ctx context.Context, actor Actor, reviewID string) error
}

// SaveAddressCommand creates or replaces a saved shipping address.
type SaveAddressCommand struct {
	UserID       string
	AddressID    string
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
	IsDefault    bool
}

// AddressService manages a user's saved shipping addresses.
type AddressService interface {
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	CreateAddress(ctx context.Context, cmd SaveAddressCommand) (Address, error)
	UpdateAddress(ctx context.Context, cmd SaveAddressCommand) (Address, error)
	DeleteAddress(ctx context.Context, userID, addressID string) error
	SetDefaultAddress(ctx context.Context, userID, addressID string) (Address, error)
}

// WishlistItem pairs a wishlist entry with its hydrated product.
type WishlistItem struct {
	Entry   domain.WishlistEntry
	Product *Product
}

// WishlistService manages per-user product wishlists.
type WishlistService interface {
	ListWishlist(ctx context.Context, userID string) ([]WishlistItem, error)
	AddToWishlist(ctx context.Context, userID, productID string) (bool, error)
	RemoveFromWishlist(ctx context.Context, userID, productID string) error
	InWishlist(ctx context.Context, userID, productID string) (bool, error)
}

// UploadImageCommand streams a product image into object storage.
type UploadImageCommand struct {
	Actor       Actor
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaService stores and removes seller product imagery.
type MediaService interface {
	UploadProductImage(ctx context.Context, cmd UploadImageCommand) (string, error)
	DeleteProductImage(ctx context.Context, actor Actor, publicURL string) error
}

// SystemService surfaces operational health and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventMessage is the payload delivered to background workers when an
// order changes state.
type OrderEventMessage struct {
	EventType  string    `json:"eventType"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	SessionID  string    `json:"sessionId,omitempty"`
	Status     string    `json:"status"`
	TotalPrice int64     `json:"totalPrice"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher pushes order lifecycle events to the background queue.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}
