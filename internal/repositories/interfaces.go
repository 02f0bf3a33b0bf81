package repositories

import (
	"context"
	"time"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/pagination"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Profiles() ProfileRepository
	Categories() CategoryRepository
	Products() ProductRepository
	Orders() OrderRepository
	Reviews() ReviewRepository
	Addresses() AddressRepository
	Wishlists() WishlistRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProfileRepository persists shopper and seller profiles keyed by auth UID.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile domain.Profile) (domain.Profile, error)
	FindByID(ctx context.Context, userID string) (domain.Profile, error)
	UpdateRole(ctx context.Context, userID string, role domain.Role) (domain.Profile, error)
	List(ctx context.Context, params pagination.Params) (domain.Page[domain.Profile], error)
}

// CategoryRepository stores the catalog taxonomy.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) (domain.Category, error)
	Update(ctx context.Context, category domain.Category) (domain.Category, error)
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (domain.Category, error)
	ListAll(ctx context.Context) ([]domain.Category, error)
}

// ProductSort enumerates the supported listing orders.
type ProductSort string

// Listing orders exposed by the catalog API. Newest is the default.
const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
	SortNameAsc   ProductSort = "name_asc"
	SortRating    ProductSort = "rating"
)

// ProductFilter narrows product listings. Nil pointer fields are ignored.
type ProductFilter struct {
	CategoryID string
	SellerID   string
	Status     domain.ProductStatus
	Featured   *bool
	Search     string
	MinPrice   *int64
	MaxPrice   *int64
	SortBy     ProductSort
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) (domain.Product, error)
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	List(ctx context.Context, filter ProductFilter, params pagination.Params) (domain.Page[domain.Product], error)
	// AdjustInventory atomically applies a stock delta for the given product,
	// returning a conflict error when the result would be negative.
	AdjustInventory(ctx context.Context, productID string, delta int) (domain.Product, error)
	// UpdateRating stores the denormalised rating aggregate.
	UpdateRating(ctx context.Context, productID string, rating float64, reviewCount int) error
}

// OrderRepository persists orders and their line items.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, params pagination.Params) (domain.Page[domain.Order], error)
	ListBySeller(ctx context.Context, sellerID string, params pagination.Params) (domain.Page[domain.Order], error)
	// ListAll pages every order, optionally narrowed to one status. An empty
	// status matches all orders.
	ListAll(ctx context.Context, status domain.OrderStatus, params pagination.Params) (domain.Page[domain.Order], error)
	// MarkStatus transitions order state, recording the payment intent and
	// completion time when the order settles.
	MarkStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentIntentID string, completedAt *time.Time) (domain.Order, error)
}

// ReviewRepository persists product reviews.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	Update(ctx context.Context, review domain.Review) (domain.Review, error)
	Delete(ctx context.Context, reviewID string) error
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	FindByProductAndUser(ctx context.Context, productID, userID string) (domain.Review, error)
	ListByProduct(ctx context.Context, productID string, params pagination.Params) (domain.Page[domain.Review], error)
	ListByUser(ctx context.Context, userID string, params pagination.Params) (domain.Page[domain.Review], error)
}

// AddressRepository persists shipping addresses per user.
type AddressRepository interface {
	Insert(ctx context.Context, address domain.Address) (domain.Address, error)
	Update(ctx context.Context, address domain.Address) (domain.Address, error)
	Delete(ctx context.Context, userID, addressID string) error
	FindByID(ctx context.Context, userID, addressID string) (domain.Address, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Address, error)
	// ClearDefault removes the default flag from every address except keepID.
	ClearDefault(ctx context.Context, userID, keepID string) error
}

// WishlistRepository persists per-user product wishlists.
type WishlistRepository interface {
	// Add records a product on the user's wishlist, reporting whether a new
	// entry was created.
	Add(ctx context.Context, userID, productID string) (bool, error)
	Remove(ctx context.Context, userID, productID string) error
	Contains(ctx context.Context, userID, productID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.WishlistEntry, error)
}

// HealthRepository evaluates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
