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
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const categoryCollection = "categories"

// CategoryRepository persists the catalog taxonomy in Firestore.
type CategoryRepository struct {
	base     *pfirestore.BaseRepository[categoryDocument]
	provider *pfirestore.Provider
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[categoryDocument](provider, categoryCollection, nil, nil)
	return &CategoryRepository{base: base, provider: provider}, nil
}

// Insert stores a new category, minting an identifier when absent.
func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}

	now := time.Now().UTC()
	if strings.TrimSpace(category.ID) == "" {
		category.ID = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	}
	category.CreatedAt = now

	doc := fromDomainCategory(category, now)
	if _, err := r.base.Set(ctx, category.ID, doc); err != nil {
		return domain.Category{}, err
	}

	saved := toDomainCategory(doc)
	saved.ID = category.ID
	return saved, nil
}

// Update replaces the category document.
func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	if strings.TrimSpace(category.ID) == "" {
		return domain.Category{}, errors.New("category id is required")
	}

	existing, err := r.FindByID(ctx, category.ID)
	if err != nil {
		return domain.Category{}, err
	}
	category.CreatedAt = existing.CreatedAt

	now := time.Now().UTC()
	doc := fromDomainCategory(category, now)
	if _, err := r.base.Set(ctx, category.ID, doc); err != nil {
		return domain.Category{}, err
	}

	saved := toDomainCategory(doc)
	saved.ID = category.ID
	return saved, nil
}

// Delete removes the category document.
func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	docRef, err := r.base.DocumentRef(ctx, categoryID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return pfirestore.WrapError("categories.delete", err)
	}
	return nil
}

// FindByID loads a category by identifier.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}

	doc, err := r.base.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}

	category := toDomainCategory(doc.Data)
	category.ID = doc.ID
	return category, nil
}

// FindBySlug resolves a category by its URL slug.
func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return domain.Category{}, errors.New("category slug is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Category{}, err
	}
	if len(docs) == 0 {
		return domain.Category{}, pfirestore.WrapError("categories.findBySlug", status.Error(codes.NotFound, "category not found"))
	}

	category := toDomainCategory(docs[0].Data)
	category.ID = docs[0].ID
	return category, nil
}

// ListAll returns every category ordered by name. The taxonomy is small
// enough that pagination is unnecessary.
func (r *CategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("category repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		category := toDomainCategory(doc.Data)
		category.ID = doc.ID
		categories = append(categories, category)
	}
	return categories, nil
}

type categoryDocument struct {
	Name        string    `firestore:"name"`
	Slug        string    `firestore:"slug"`
	Description string    `firestore:"description,omitempty"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	ParentID    string    `firestore:"parentId,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func toDomainCategory(doc categoryDocument) domain.Category {
	return domain.Category{
		Name:        strings.TrimSpace(doc.Name),
		Slug:        strings.TrimSpace(doc.Slug),
		Description: doc.Description,
		ImageURL:    strings.TrimSpace(doc.ImageURL),
		ParentID:    strings.TrimSpace(doc.ParentID),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func fromDomainCategory(category domain.Category, now time.Time) categoryDocument {
	slug := strings.ToLower(strings.TrimSpace(category.Slug))
	if slug == "" {
		slug = domain.Slugify(category.Name)
	}
	doc := categoryDocument{
		Name:        strings.TrimSpace(category.Name),
		Slug:        slug,
		Description: category.Description,
		ImageURL:    strings.TrimSpace(category.ImageURL),
		ParentID:    strings.TrimSpace(category.ParentID),
		CreatedAt:   category.CreatedAt,
		UpdatedAt:   now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}
