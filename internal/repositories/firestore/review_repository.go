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

const reviewCollection = "reviews"

// ReviewRepository persists product reviews in Firestore.
type ReviewRepository struct {
	base *pfirestore.BaseRepository[reviewDocument]
}

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[reviewDocument](provider, reviewCollection, nil, nil)
	return &ReviewRepository{base: base}, nil
}

// Insert stores a new review, minting an identifier when absent.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}

	now := time.Now().UTC()
	if strings.TrimSpace(review.ID) == "" {
		review.ID = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	}
	review.CreatedAt = now

	doc := fromDomainReview(review, now)
	if _, err := r.base.Set(ctx, review.ID, doc); err != nil {
		return domain.Review{}, err
	}

	saved := toDomainReview(doc)
	saved.ID = review.ID
	return saved, nil
}

// Update rewrites an existing review document, refreshing its update stamp.
func (r *ReviewRepository) Update(ctx context.Context, review domain.Review) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	reviewID := strings.TrimSpace(review.ID)
	if reviewID == "" {
		return domain.Review{}, errors.New("review id is required")
	}
	if _, err := r.base.Get(ctx, reviewID); err != nil {
		return domain.Review{}, err
	}

	doc := fromDomainReview(review, time.Now().UTC())
	if _, err := r.base.Set(ctx, reviewID, doc); err != nil {
		return domain.Review{}, err
	}

	saved := toDomainReview(doc)
	saved.ID = reviewID
	return saved, nil
}

// Delete removes the review document.
func (r *ReviewRepository) Delete(ctx context.Context, reviewID string) error {
	if r == nil || r.base == nil {
		return errors.New("review repository not initialised")
	}
	docRef, err := r.base.DocumentRef(ctx, reviewID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return pfirestore.WrapError("reviews.delete", err)
	}
	return nil
}

// FindByID loads a review by identifier.
func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}

	doc, err := r.base.Get(ctx, reviewID)
	if err != nil {
		return domain.Review{}, err
	}

	review := toDomainReview(doc.Data)
	review.ID = doc.ID
	return review, nil
}

// FindByProductAndUser returns the user's review for a product, enforcing the
// one-review-per-product rule at the service layer.
func (r *ReviewRepository) FindByProductAndUser(ctx context.Context, productID, userID string) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("productId", "==", strings.TrimSpace(productID)).
			Where("userId", "==", strings.TrimSpace(userID)).
			Limit(1)
	})
	if err != nil {
		return domain.Review{}, err
	}
	if len(docs) == 0 {
		return domain.Review{}, pfirestore.WrapError("reviews.findByProductAndUser", status.Error(codes.NotFound, "review not found"))
	}

	review := toDomainReview(docs[0].Data)
	review.ID = docs[0].ID
	return review, nil
}

// ListByProduct returns a product's reviews, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, params pagination.Params) (domain.Page[domain.Review], error) {
	if r == nil || r.base == nil {
		return domain.Page[domain.Review]{}, errors.New("review repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Page[domain.Review]{}, errors.New("product id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("productId", "==", productID).
			OrderBy("createdAt", firestore.Desc).
			Offset(params.Offset()).
			Limit(params.PageSize)
	})
	if err != nil {
		return domain.Page[domain.Review]{}, err
	}

	items := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		review := toDomainReview(doc.Data)
		review.ID = doc.ID
		items = append(items, review)
	}
	return domain.Page[domain.Review]{Items: items, Page: params.Page, PageSize: params.PageSize}, nil
}

// ListByUser returns the reviews a user has written, newest first.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID string, params pagination.Params) (domain.Page[domain.Review], error) {
	if r == nil || r.base == nil {
		return domain.Page[domain.Review]{}, errors.New("review repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Page[domain.Review]{}, errors.New("user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID).
			OrderBy("createdAt", firestore.Desc).
			Offset(params.Offset()).
			Limit(params.PageSize)
	})
	if err != nil {
		return domain.Page[domain.Review]{}, err
	}

	items := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		review := toDomainReview(doc.Data)
		review.ID = doc.ID
		items = append(items, review)
	}
	return domain.Page[domain.Review]{Items: items, Page: params.Page, PageSize: params.PageSize}, nil
}

type reviewDocument struct {
	ProductID string    `firestore:"productId"`
	UserID    string    `firestore:"userId"`
	OrderID   string    `firestore:"orderId,omitempty"`
	Rating    int       `firestore:"rating"`
	Title     string    `firestore:"title,omitempty"`
	Comment   string    `firestore:"comment,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func toDomainReview(doc reviewDocument) domain.Review {
	return domain.Review{
		ProductID: strings.TrimSpace(doc.ProductID),
		UserID:    strings.TrimSpace(doc.UserID),
		OrderID:   strings.TrimSpace(doc.OrderID),
		Rating:    doc.Rating,
		Title:     doc.Title,
		Comment:   doc.Comment,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func fromDomainReview(review domain.Review, now time.Time) reviewDocument {
	doc := reviewDocument{
		ProductID: strings.TrimSpace(review.ProductID),
		UserID:    strings.TrimSpace(review.UserID),
		OrderID:   strings.TrimSpace(review.OrderID),
		Rating:    review.Rating,
		Title:     strings.TrimSpace(review.Title),
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
		UpdatedAt: now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}
