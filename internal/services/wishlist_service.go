package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marketsquare/api/internal/repositories"
)

// WishlistServiceDeps bundles constructor inputs for the wishlist service.
type WishlistServiceDeps struct {
	Wishlists repositories.WishlistRepository
	Products  repositories.ProductRepository
}

type wishlistService struct {
	wishlists repositories.WishlistRepository
	products  repositories.ProductRepository
}

var _ WishlistService = (*wishlistService)(nil)

// NewWishlistService constructs the wishlist service.
func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Wishlists == nil {
		return nil, errors.New("wishlist service: wishlist repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("wishlist service: product repository is required")
	}
	return &wishlistService{
		wishlists: deps.Wishlists,
		products:  deps.Products,
	}, nil
}

// ListWishlist returns entries with their products hydrated. Entries whose
// product has since been deleted are returned without one.
func (s *wishlistService) ListWishlist(ctx context.Context, userID string) ([]WishlistItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	entries, err := s.wishlists.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]WishlistItem, 0, len(entries))
	for _, entry := range entries {
		item := WishlistItem{Entry: entry}
		product, err := s.products.FindByID(ctx, entry.ProductID)
		if err != nil {
			if !isRepoNotFound(err) {
				return nil, err
			}
		} else {
			item.Product = &product
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *wishlistService) AddToWishlist(ctx context.Context, userID, productID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return false, fmt.Errorf("%w: user id and product id are required", ErrInvalidInput)
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if isRepoNotFound(err) {
			return false, ErrProductNotFound
		}
		return false, err
	}
	return s.wishlists.Add(ctx, userID, productID)
}

func (s *wishlistService) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return fmt.Errorf("%w: user id and product id are required", ErrInvalidInput)
	}
	return s.wishlists.Remove(ctx, userID, productID)
}

func (s *wishlistService) InWishlist(ctx context.Context, userID, productID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return false, fmt.Errorf("%w: user id and product id are required", ErrInvalidInput)
	}
	return s.wishlists.Contains(ctx, userID, productID)
}
