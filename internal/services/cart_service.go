package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marketsquare/api/internal/cart"
	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/repositories"
)

// ErrProductNotPurchasable indicates the product exists but is not active.
var ErrProductNotPurchasable = errors.New("cart service: product is not purchasable")

// CartServiceDeps bundles constructor inputs for the cart service.
type CartServiceDeps struct {
	Carts    *cart.Registry
	Products repositories.ProductRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    *cart.Registry
	products repositories.ProductRepository
	logger   func(context.Context, string, map[string]any)
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs the cart service.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart registry is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		logger:   logger,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, sessionID string) (cart.Cart, error) {
	return s.carts.Get(sessionID)
}

// AddItem hydrates the product snapshot and merges it into the session cart.
// The snapshot price is what the cart totals use until checkout revalidates.
func (s *cartService) AddItem(ctx context.Context, sessionID, productID string, quantity int) (cart.Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return cart.Cart{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return cart.Cart{}, ErrProductNotFound
		}
		return cart.Cart{}, err
	}
	if product.Status != domain.ProductStatusActive {
		return cart.Cart{}, ErrProductNotPurchasable
	}

	imageURL := ""
	if len(product.Images) > 0 {
		imageURL = product.Images[0]
	}

	snapshot, err := s.carts.Add(sessionID, cart.AddInput{
		ProductID:        product.ID,
		SellerID:         product.SellerID,
		Name:             product.Name,
		ImageURL:         imageURL,
		Price:            product.Price,
		Quantity:         quantity,
		InventoryCeiling: product.InventoryQuantity,
	})
	if err != nil {
		return cart.Cart{}, err
	}

	s.logger(ctx, "cart.item.added", map[string]any{
		"sessionId": sessionID,
		"productId": product.ID,
		"quantity":  quantity,
		"clamped":   snapshot.Clamped,
	})
	return snapshot, nil
}

func (s *cartService) UpdateItem(ctx context.Context, sessionID, productID string, quantity int) (cart.Cart, error) {
	snapshot, err := s.carts.UpdateQuantity(sessionID, productID, quantity)
	if err != nil {
		return cart.Cart{}, err
	}
	s.logger(ctx, "cart.item.updated", map[string]any{
		"sessionId": sessionID,
		"productId": productID,
		"quantity":  quantity,
		"clamped":   snapshot.Clamped,
	})
	return snapshot, nil
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID, productID string) (cart.Cart, error) {
	snapshot, err := s.carts.Remove(sessionID, productID)
	if err != nil {
		return cart.Cart{}, err
	}
	s.logger(ctx, "cart.item.removed", map[string]any{
		"sessionId": sessionID,
		"productId": productID,
	})
	return snapshot, nil
}

func (s *cartService) ClearCart(ctx context.Context, sessionID string) error {
	if err := s.carts.Clear(sessionID); err != nil {
		return err
	}
	s.logger(ctx, "cart.cleared", map[string]any{
		"sessionId": sessionID,
	})
	return nil
}
