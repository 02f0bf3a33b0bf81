package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marketsquare/api/internal/cart"
	"github.com/marketsquare/api/internal/payments"
	"github.com/marketsquare/api/internal/platform/config"
	"github.com/marketsquare/api/internal/platform/storage"
	"github.com/marketsquare/api/internal/repositories"
	"github.com/marketsquare/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog   services.CatalogService
	Cart      services.CartService
	Checkout  services.CheckoutService
	Orders    services.OrderService
	Reviews   services.ReviewService
	Profiles  services.ProfileService
	Addresses services.AddressService
	Wishlist  services.WishlistService
	Media     services.MediaService
	System    services.SystemService
}

// ContainerDeps carries the infrastructure the repository registry does not own:
// the in-memory cart registry, the payment manager, object storage, and the
// order event publisher.
type ContainerDeps struct {
	Config       config.Config
	Repositories repositories.Registry
	Carts        *cart.Registry
	Payments     *payments.Manager
	Images       *storage.ImageStore
	Events       services.OrderEventPublisher
	Build        services.BuildInfo
	Logger       func(ctx context.Context, event string, fields map[string]any)
	Clock        func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Carts        *cart.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, deps ContainerDeps) (*Container, error) {
	if deps.Repositories == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("cart registry is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	svc, err := buildServices(deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Repositories,
		Carts:        deps.Carts,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps ContainerDeps) (Services, error) {
	var svc Services
	reg := deps.Repositories
	cfg := deps.Config

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   reg.Products(),
		Categories: reg.Categories(),
		Profiles:   reg.Profiles(),
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    deps.Carts,
		Products: reg.Products(),
		Logger:   deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	if deps.Payments != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Carts:      deps.Carts,
			Products:   reg.Products(),
			Orders:     reg.Orders(),
			Addresses:  reg.Addresses(),
			Payments:   deps.Payments,
			Events:     deps.Events,
			SuccessURL: cfg.PSP.SuccessURL,
			CancelURL:  cfg.PSP.CancelURL,
			SessionTTL: cfg.PSP.CheckoutSessionTTL,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders: reg.Orders(),
		Events: deps.Events,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews:  reg.Reviews(),
		Products: reg.Products(),
		Orders:   reg.Orders(),
		Profiles: reg.Profiles(),
		Clock:    deps.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviewSvc

	profileSvc, err := services.NewProfileService(services.ProfileServiceDeps{
		Profiles: reg.Profiles(),
		Clock:    deps.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build profile service: %w", err)
	}
	svc.Profiles = profileSvc

	addressSvc, err := services.NewAddressService(services.AddressServiceDeps{
		Addresses: reg.Addresses(),
		Clock:     deps.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build address service: %w", err)
	}
	svc.Addresses = addressSvc

	wishlistSvc, err := services.NewWishlistService(services.WishlistServiceDeps{
		Wishlists: reg.Wishlists(),
		Products:  reg.Products(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build wishlist service: %w", err)
	}
	svc.Wishlist = wishlistSvc

	if deps.Images != nil {
		mediaSvc, err := services.NewMediaService(services.MediaServiceDeps{
			Images: deps.Images,
			Logger: deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build media service: %w", err)
		}
		svc.Media = mediaSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            deps.Clock,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
