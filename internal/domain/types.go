package domain

import (
	"time"
)

// Role classifies what a profile is allowed to reach. Every authenticated
// user carries exactly one role.
type Role string

const (
	// RoleBuyer is the default role granted to new accounts.
	RoleBuyer Role = "buyer"
	// RoleSeller unlocks the seller dashboard and product management.
	RoleSeller Role = "seller"
	// RoleAdmin unlocks the admin dashboard and full catalog/order access.
	RoleAdmin Role = "admin"
)

// KnownRole reports whether the value is one of the supported roles.
func KnownRole(r Role) bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}

// ProductStatus describes the publication state of a product.
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusArchived ProductStatus = "archived"
)

// OrderStatus tracks the coarse lifecycle of an order as reported by the PSP.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// Profile is the application-level account record keyed by the auth UID.
type Profile struct {
	ID        string
	Email     string
	FullName  string
	Phone     string
	Role      Role
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category groups products; categories may nest one level via ParentID.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	ImageURL    string
	ParentID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Product is a sellable catalog entry. Prices are minor units (cents).
type Product struct {
	ID                string
	SellerID          string
	CategoryID        string
	Name              string
	Slug              string
	Description       string
	Price             int64
	CompareAtPrice    int64
	InventoryQuantity int
	SKU               string
	Images            []string
	Status            ProductStatus
	Featured          bool
	Rating            float64
	ReviewCount       int
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Seller and Category are hydrated on reads that join related records.
	Seller   *Profile
	Category *Category
}

// OrderLineItem is one purchased product snapshot frozen at checkout time.
type OrderLineItem struct {
	ProductID string
	SellerID  string
	Name      string
	ImageURL  string
	Price     int64
	Quantity  int
	Subtotal  int64
}

// ShippingAddress is the denormalised destination captured on an order.
type ShippingAddress struct {
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
}

// Order is the purchase record created when checkout begins and completed
// when the PSP confirms payment.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderLineItem
	TotalAmount     int64
	Currency        string
	Status          OrderStatus
	SessionID       string
	PaymentIntentID string
	CustomerEmail   string
	CustomerName    string
	ShippingAddress *ShippingAddress
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Review is a buyer's rating of a purchased product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	OrderID   string
	Rating    int
	Title     string
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time

	User *Profile
}

// Address is a saved shipping destination. At most one address per user
// carries IsDefault.
type Address struct {
	ID           string
	UserID       string
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
	IsDefault    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WishlistEntry marks a product a user wants to revisit.
type WishlistEntry struct {
	ID        string
	UserID    string
	ProductID string
	CreatedAt time.Time
}

// CheckoutSession is returned to the client to hand the browser off to the
// hosted payment page.
type CheckoutSession struct {
	SessionID   string
	OrderID     string
	RedirectURL string
	ExpiresAt   time.Time
}

// PaymentVerification reports the outcome of a post-redirect payment lookup.
// Verified is true only when the PSP reports the session as paid.
type PaymentVerification struct {
	Verified      bool
	Status        string
	SessionID     string
	IntentID      string
	Amount        int64
	Currency      string
	CustomerEmail string
	CustomerName  string
	OrderUpdated  bool
}

// Page bundles one offset-paged result set.
type Page[T any] struct {
	Items    []T
	Page     int
	PageSize int
}
