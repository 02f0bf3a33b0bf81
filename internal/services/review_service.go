package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/pagination"
	"github.com/marketsquare/api/internal/repositories"
)

var (
	// ErrReviewNotFound indicates the requested review does not exist.
	ErrReviewNotFound = errors.New("review service: review not found")
	// ErrReviewExists indicates the user already reviewed this product.
	ErrReviewExists = errors.New("review service: review already exists")
	// ErrReviewNotEligible indicates the user has no completed order containing the product.
	ErrReviewNotEligible = errors.New("review service: no qualifying purchase")
)

// ReviewServiceDeps bundles constructor inputs for the review service.
type ReviewServiceDeps struct {
	Reviews  repositories.ReviewRepository
	Products repositories.ProductRepository
	Orders   repositories.OrderRepository
	Profiles repositories.ProfileRepository
	Clock    func() time.Time
}

type reviewService struct {
	reviews  repositories.ReviewRepository
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	profiles repositories.ProfileRepository
	clock    func() time.Time
	policy   *bluemonday.Policy
}

var _ ReviewService = (*reviewService)(nil)

// NewReviewService constructs the review service.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("review service: product repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("review service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &reviewService{
		reviews:  deps.Reviews,
		products: deps.Products,
		orders:   deps.Orders,
		profiles: deps.Profiles,
		clock:    func() time.Time { return clock().UTC() },
		policy:   bluemonday.StrictPolicy(),
	}, nil
}

func (s *reviewService) ListForProduct(ctx context.Context, productID string, params pagination.Params) (domain.Page[Review], error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Page[Review]{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}

	page, err := s.reviews.ListByProduct(ctx, productID, params)
	if err != nil {
		return domain.Page[Review]{}, err
	}

	if s.profiles != nil {
		authors := make(map[string]*domain.Profile)
		for i := range page.Items {
			userID := page.Items[i].UserID
			author, ok := authors[userID]
			if !ok {
				loaded, err := s.profiles.FindByID(ctx, userID)
				if err != nil {
					if !isRepoNotFound(err) {
						return domain.Page[Review]{}, err
					}
					authors[userID] = nil
				} else {
					copied := loaded
					authors[userID] = &copied
				}
				author = authors[userID]
			}
			page.Items[i].User = author
		}
	}
	return page, nil
}

// ListForUser returns the reviews the user has written, newest first.
func (s *reviewService) ListForUser(ctx context.Context, userID string, params pagination.Params) (domain.Page[Review], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Page[Review]{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.reviews.ListByUser(ctx, userID, params)
}

// Submit records a review after confirming the author completed an order
// containing the product. Text fields are stripped of any markup.
func (s *reviewService) Submit(ctx context.Context, cmd SubmitReviewCommand) (Review, error) {
	userID := strings.TrimSpace(cmd.Actor.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return Review{}, fmt.Errorf("%w: user id and product id are required", ErrInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Review{}, ErrProductNotFound
		}
		return Review{}, err
	}

	if _, err := s.reviews.FindByProductAndUser(ctx, productID, userID); err == nil {
		return Review{}, ErrReviewExists
	} else if !isRepoNotFound(err) {
		return Review{}, err
	}

	orderID, err := s.qualifyingOrder(ctx, userID, productID, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return Review{}, err
	}

	review := domain.Review{
		ProductID: productID,
		UserID:    userID,
		OrderID:   orderID,
		Rating:    cmd.Rating,
		Title:     s.policy.Sanitize(strings.TrimSpace(cmd.Title)),
		Comment:   s.policy.Sanitize(strings.TrimSpace(cmd.Comment)),
	}

	created, err := s.reviews.Insert(ctx, review)
	if err != nil {
		return Review{}, err
	}

	rating, count := addRating(product.Rating, product.ReviewCount, cmd.Rating)
	if err := s.products.UpdateRating(ctx, productID, rating, count); err != nil {
		return Review{}, fmt.Errorf("update product rating: %w", err)
	}
	return created, nil
}

// Update edits a review in place. Only the author may edit; a rating change
// re-balances the product aggregate.
func (s *reviewService) Update(ctx context.Context, cmd UpdateReviewCommand) (Review, error) {
	reviewID := strings.TrimSpace(cmd.ReviewID)
	if reviewID == "" {
		return Review{}, fmt.Errorf("%w: review id is required", ErrInvalidInput)
	}
	if cmd.Rating != nil && (*cmd.Rating < 1 || *cmd.Rating > 5) {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		if isRepoNotFound(err) {
			return Review{}, ErrReviewNotFound
		}
		return Review{}, err
	}
	if review.UserID != strings.TrimSpace(cmd.Actor.UserID) {
		return Review{}, ErrPermissionDenied
	}

	previousRating := review.Rating
	if cmd.Rating != nil {
		review.Rating = *cmd.Rating
	}
	if cmd.Title != nil {
		review.Title = s.policy.Sanitize(strings.TrimSpace(*cmd.Title))
	}
	if cmd.Comment != nil {
		review.Comment = s.policy.Sanitize(strings.TrimSpace(*cmd.Comment))
	}

	updated, err := s.reviews.Update(ctx, review)
	if err != nil {
		if isRepoNotFound(err) {
			return Review{}, ErrReviewNotFound
		}
		return Review{}, err
	}

	if updated.Rating != previousRating {
		product, err := s.products.FindByID(ctx, updated.ProductID)
		if err != nil {
			if isRepoNotFound(err) {
				return updated, nil
			}
			return Review{}, err
		}
		rating := replaceRating(product.Rating, product.ReviewCount, previousRating, updated.Rating)
		if err := s.products.UpdateRating(ctx, updated.ProductID, rating, product.ReviewCount); err != nil {
			return Review{}, fmt.Errorf("update product rating: %w", err)
		}
	}
	return updated, nil
}

// Delete removes a review. Authors may delete their own; admins any.
func (s *reviewService) Delete(ctx context.Context, actor Actor, reviewID string) error {
	reviewID = strings.TrimSpace(reviewID)
	if reviewID == "" {
		return fmt.Errorf("%w: review id is required", ErrInvalidInput)
	}

	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		if isRepoNotFound(err) {
			return ErrReviewNotFound
		}
		return err
	}
	if !actor.IsAdmin() && review.UserID != strings.TrimSpace(actor.UserID) {
		return ErrPermissionDenied
	}

	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return err
	}

	product, err := s.products.FindByID(ctx, review.ProductID)
	if err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return err
	}
	rating, count := removeRating(product.Rating, product.ReviewCount, review.Rating)
	if err := s.products.UpdateRating(ctx, review.ProductID, rating, count); err != nil {
		return fmt.Errorf("update product rating: %w", err)
	}
	return nil
}

// qualifyingOrder confirms the user completed an order containing the
// product. When the caller names an order it must match; otherwise the
// recent history is scanned.
func (s *reviewService) qualifyingOrder(ctx context.Context, userID, productID, orderID string) (string, error) {
	if orderID != "" {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			if isRepoNotFound(err) {
				return "", ErrReviewNotEligible
			}
			return "", err
		}
		if order.UserID != userID || order.Status != domain.OrderStatusCompleted || !orderContains(order, productID) {
			return "", ErrReviewNotEligible
		}
		return order.ID, nil
	}

	page, err := s.orders.ListByUser(ctx, userID, pagination.Params{Page: 1, PageSize: 100})
	if err != nil {
		return "", err
	}
	for _, order := range page.Items {
		if order.Status == domain.OrderStatusCompleted && orderContains(order, productID) {
			return order.ID, nil
		}
	}
	return "", ErrReviewNotEligible
}

func orderContains(order domain.Order, productID string) bool {
	for _, item := range order.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

func addRating(average float64, count, rating int) (float64, int) {
	total := average*float64(count) + float64(rating)
	count++
	return total / float64(count), count
}

func replaceRating(average float64, count, oldRating, newRating int) float64 {
	if count <= 0 {
		return float64(newRating)
	}
	total := average*float64(count) - float64(oldRating) + float64(newRating)
	return total / float64(count)
}

func removeRating(average float64, count, rating int) (float64, int) {
	if count <= 1 {
		return 0, 0
	}
	total := average*float64(count) - float64(rating)
	count--
	return total / float64(count), count
}
