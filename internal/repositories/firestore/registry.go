package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/marketsquare/api/internal/platform/firestore"
	"github.com/marketsquare/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry interface consumed by the DI container.
type Registry struct {
	provider *pfirestore.Provider

	profiles   *ProfileRepository
	categories *CategoryRepository
	products   *ProductRepository
	orders     *OrderRepository
	reviews    *ReviewRepository
	addresses  *AddressRepository
	wishlists  *WishlistRepository
	health     repositories.HealthRepository
}

// RegistryDeps carries the dependencies needed to build the registry.
type RegistryDeps struct {
	Provider *pfirestore.Provider
	Health   repositories.HealthRepository
}

// NewRegistry constructs every repository against the shared provider.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.Provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	profiles, err := NewProfileRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	categories, err := NewCategoryRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	reviews, err := NewReviewRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	addresses, err := NewAddressRepository(deps.Provider)
	if err != nil {
		return nil, err
	}
	wishlists, err := NewWishlistRepository(deps.Provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:   deps.Provider,
		profiles:   profiles,
		categories: categories,
		products:   products,
		orders:     orders,
		reviews:    reviews,
		addresses:  addresses,
		wishlists:  wishlists,
		health:     deps.Health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Profiles() repositories.ProfileRepository    { return r.profiles }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Products() repositories.ProductRepository    { return r.products }
func (r *Registry) Orders() repositories.OrderRepository        { return r.orders }
func (r *Registry) Reviews() repositories.ReviewRepository      { return r.reviews }
func (r *Registry) Addresses() repositories.AddressRepository   { return r.addresses }
func (r *Registry) Wishlists() repositories.WishlistRepository  { return r.wishlists }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }

// RunInTx groups repository work inside a single Firestore transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

var _ repositories.Registry = (*Registry)(nil)
