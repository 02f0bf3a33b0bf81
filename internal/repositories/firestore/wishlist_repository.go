package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/marketsquare/api/internal/domain"
	pfirestore "github.com/marketsquare/api/internal/platform/firestore"
	"github.com/marketsquare/api/internal/repositories"
)

const wishlistCollectionPattern = "profiles/%s/wishlist"

// WishlistRepository persists wishlist entries per user. Documents are keyed
// by product ID so membership checks are single reads.
type WishlistRepository struct {
	provider *pfirestore.Provider
}

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	return &WishlistRepository{provider: provider}, nil
}

// Add stores a wishlist entry. Returns false when the product was already on
// the list, leaving the original timestamp untouched.
func (r *WishlistRepository) Add(ctx context.Context, userID, productID string) (bool, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, errors.New("wishlist repository: product id is required")
	}

	created := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(productID)
		if _, err := tx.Get(docRef); err == nil {
			created = false
			return nil
		} else if status.Code(err) != codes.NotFound {
			return err
		}
		doc := wishlistDocument{
			ProductRef: productDocPath(productID),
			AddedAt:    time.Now().UTC(),
		}
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, pfirestore.WrapError("wishlist.add", err)
	}
	return created, nil
}

// Remove deletes the wishlist entry.
func (r *WishlistRepository) Remove(ctx context.Context, userID, productID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("wishlist repository: product id is required")
	}
	if _, err := coll.Doc(productID).Delete(ctx); err != nil {
		return pfirestore.WrapError("wishlist.remove", err)
	}
	return nil
}

// Contains reports whether the product is on the user's wishlist.
func (r *WishlistRepository) Contains(ctx context.Context, userID, productID string) (bool, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, errors.New("wishlist repository: product id is required")
	}
	if _, err := coll.Doc(productID).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, pfirestore.WrapError("wishlist.contains", err)
	}
	return true, nil
}

// ListByUser returns wishlist entries ordered by most recent addition.
func (r *WishlistRepository) ListByUser(ctx context.Context, userID string) ([]domain.WishlistEntry, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("addedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var entries []domain.WishlistEntry
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("wishlist.list", err)
		}
		var doc wishlistDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode wishlist entry %s: %w", snap.Ref.ID, err)
		}
		productID := snap.Ref.ID
		if trimmed := extractProductID(doc.ProductRef); trimmed != "" {
			productID = trimmed
		}
		entries = append(entries, domain.WishlistEntry{
			ID:        snap.Ref.ID,
			UserID:    userID,
			ProductID: productID,
			CreatedAt: doc.AddedAt,
		})
	}
	return entries, nil
}

func (r *WishlistRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("wishlist repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("wishlist repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(wishlistCollectionPattern, uid)), nil
}

type wishlistDocument struct {
	ProductRef string    `firestore:"productRef"`
	AddedAt    time.Time `firestore:"addedAt"`
}

func productDocPath(productID string) string {
	trimmed := strings.TrimSpace(productID)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "/products/") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "products/") {
		return "/" + trimmed
	}
	return "/products/" + trimmed
}

func extractProductID(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return ""
	}
	trimmed = strings.TrimPrefix(trimmed, "/")
	const prefix = "products/"
	if strings.HasPrefix(trimmed, prefix) {
		return trimmed[len(prefix):]
	}
	return trimmed
}

// Ensure interface compliance.
var _ repositories.WishlistRepository = (*WishlistRepository)(nil)
