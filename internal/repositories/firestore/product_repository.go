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
	"github.com/marketsquare/api/internal/repositories"
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const productCollection = "products"

// prefixUpperBound closes a prefix range scan over UTF-8 ordered strings.
const prefixUpperBound = ""

// ProductRepository persists catalog products in Firestore.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &ProductRepository{base: base, provider: provider}, nil
}

// Insert stores a new product, minting an identifier when absent.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}

	now := time.Now().UTC()
	if strings.TrimSpace(product.ID) == "" {
		product.ID = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	}
	product.CreatedAt = now

	doc := fromDomainProduct(product, now)
	if _, err := r.base.Set(ctx, product.ID, doc); err != nil {
		return domain.Product{}, err
	}

	saved := toDomainProduct(doc)
	saved.ID = product.ID
	return saved, nil
}

// Update replaces the product document, preserving creation time and rating
// aggregates.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, errors.New("product id is required")
	}

	existing, err := r.FindByID(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	product.CreatedAt = existing.CreatedAt
	product.Rating = existing.Rating
	product.ReviewCount = existing.ReviewCount

	now := time.Now().UTC()
	doc := fromDomainProduct(product, now)
	if _, err := r.base.Set(ctx, product.ID, doc); err != nil {
		return domain.Product{}, err
	}

	saved := toDomainProduct(doc)
	saved.ID = product.ID
	return saved, nil
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	docRef, err := r.base.DocumentRef(ctx, productID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return pfirestore.WrapError("products.delete", err)
	}
	return nil
}

// FindByID loads a product by identifier.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}

	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	product := toDomainProduct(doc.Data)
	product.ID = doc.ID
	return product, nil
}

// FindBySlug resolves a product through its URL slug.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return domain.Product{}, errors.New("product slug is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.WrapError("products.findBySlug", status.Error(codes.NotFound, "product not found"))
	}

	product := toDomainProduct(docs[0].Data)
	product.ID = docs[0].ID
	return product, nil
}

// List executes a filtered, sorted, offset-paginated product query.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductFilter, params pagination.Params) (domain.Page[domain.Product], error) {
	if r == nil || r.base == nil {
		return domain.Page[domain.Product]{}, errors.New("product repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = applyProductFilter(q, filter)
		q = applyProductSort(q, filter)
		return q.Offset(params.Offset()).Limit(params.PageSize)
	})
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product := toDomainProduct(doc.Data)
		product.ID = doc.ID
		items = append(items, product)
	}
	return domain.Page[domain.Product]{Items: items, Page: params.Page, PageSize: params.PageSize}, nil
}

// AdjustInventory applies a stock delta inside a transaction, rejecting
// adjustments that would drive the quantity negative.
func (r *ProductRepository) AdjustInventory(ctx context.Context, productID string, delta int) (domain.Product, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, errors.New("product id is required")
	}

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		next := doc.InventoryQuantity + delta
		if next < 0 {
			return status.Error(codes.Aborted, "insufficient inventory")
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "inventoryQuantity", Value: next},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	}); err != nil {
		return domain.Product{}, pfirestore.WrapError("products.adjustInventory", err)
	}

	return r.FindByID(ctx, productID)
}

// UpdateRating stores the denormalised review aggregate.
func (r *ProductRepository) UpdateRating(ctx context.Context, productID string, rating float64, reviewCount int) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	_, err := r.base.Update(ctx, productID, []firestore.Update{
		{Path: "rating", Value: rating},
		{Path: "reviewCount", Value: reviewCount},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

func applyProductFilter(q firestore.Query, filter repositories.ProductFilter) firestore.Query {
	if category := strings.TrimSpace(filter.CategoryID); category != "" {
		q = q.Where("categoryId", "==", category)
	}
	if seller := strings.TrimSpace(filter.SellerID); seller != "" {
		q = q.Where("sellerId", "==", seller)
	}
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	if filter.Featured != nil {
		q = q.Where("featured", "==", *filter.Featured)
	}
	if filter.MinPrice != nil {
		q = q.Where("price", ">=", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price", "<=", *filter.MaxPrice)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		q = q.Where("nameLower", ">=", search).Where("nameLower", "<=", search+prefixUpperBound)
	}
	return q
}

func applyProductSort(q firestore.Query, filter repositories.ProductFilter) firestore.Query {
	// Firestore requires the first ordering to match any range-filtered field.
	if search := strings.TrimSpace(filter.Search); search != "" {
		return q.OrderBy("nameLower", firestore.Asc)
	}
	hasPriceRange := filter.MinPrice != nil || filter.MaxPrice != nil

	switch filter.SortBy {
	case repositories.SortPriceAsc:
		return q.OrderBy("price", firestore.Asc)
	case repositories.SortPriceDesc:
		return q.OrderBy("price", firestore.Desc)
	case repositories.SortNameAsc:
		if hasPriceRange {
			return q.OrderBy("price", firestore.Asc).OrderBy("nameLower", firestore.Asc)
		}
		return q.OrderBy("nameLower", firestore.Asc)
	case repositories.SortRating:
		if hasPriceRange {
			return q.OrderBy("price", firestore.Asc).OrderBy("rating", firestore.Desc)
		}
		return q.OrderBy("rating", firestore.Desc)
	default:
		if hasPriceRange {
			return q.OrderBy("price", firestore.Asc).OrderBy("createdAt", firestore.Desc)
		}
		return q.OrderBy("createdAt", firestore.Desc)
	}
}

type productDocument struct {
	SellerID          string    `firestore:"sellerId"`
	CategoryID        string    `firestore:"categoryId"`
	Name              string    `firestore:"name"`
	NameLower         string    `firestore:"nameLower"`
	Slug              string    `firestore:"slug"`
	Description       string    `firestore:"description,omitempty"`
	Price             int64     `firestore:"price"`
	CompareAtPrice    int64     `firestore:"compareAtPrice,omitempty"`
	InventoryQuantity int       `firestore:"inventoryQuantity"`
	SKU               string    `firestore:"sku,omitempty"`
	Images            []string  `firestore:"images"`
	Status            string    `firestore:"status"`
	Featured          bool      `firestore:"featured"`
	Rating            float64   `firestore:"rating"`
	ReviewCount       int       `firestore:"reviewCount"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

func toDomainProduct(doc productDocument) domain.Product {
	return domain.Product{
		SellerID:          strings.TrimSpace(doc.SellerID),
		CategoryID:        strings.TrimSpace(doc.CategoryID),
		Name:              strings.TrimSpace(doc.Name),
		Slug:              strings.TrimSpace(doc.Slug),
		Description:       doc.Description,
		Price:             doc.Price,
		CompareAtPrice:    doc.CompareAtPrice,
		InventoryQuantity: doc.InventoryQuantity,
		SKU:               strings.TrimSpace(doc.SKU),
		Images:            doc.Images,
		Status:            domain.ProductStatus(doc.Status),
		Featured:          doc.Featured,
		Rating:            doc.Rating,
		ReviewCount:       doc.ReviewCount,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}

func fromDomainProduct(product domain.Product, now time.Time) productDocument {
	name := strings.TrimSpace(product.Name)
	slug := strings.ToLower(strings.TrimSpace(product.Slug))
	if slug == "" {
		slug = domain.Slugify(name)
	}
	images := product.Images
	if images == nil {
		images = []string{}
	}
	doc := productDocument{
		SellerID:          strings.TrimSpace(product.SellerID),
		CategoryID:        strings.TrimSpace(product.CategoryID),
		Name:              name,
		NameLower:         strings.ToLower(name),
		Slug:              slug,
		Description:       product.Description,
		Price:             product.Price,
		CompareAtPrice:    product.CompareAtPrice,
		InventoryQuantity: product.InventoryQuantity,
		SKU:               strings.TrimSpace(product.SKU),
		Images:            images,
		Status:            string(product.Status),
		Featured:          product.Featured,
		Rating:            product.Rating,
		ReviewCount:       product.ReviewCount,
		CreatedAt:         product.CreatedAt,
		UpdatedAt:         now,
	}
	if doc.Status == "" {
		doc.Status = string(domain.ProductStatusDraft)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}
