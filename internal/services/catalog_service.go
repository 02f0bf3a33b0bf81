package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/repositories"
)

var (
	// ErrProductNotFound indicates the requested product does not exist.
	ErrProductNotFound = errors.New("catalog service: product not found")
	// ErrCategoryNotFound indicates the requested category does not exist.
	ErrCategoryNotFound = errors.New("catalog service: category not found")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Products   repositories.ProductRepository
	Categories repositories.CategoryRepository
	Profiles   repositories.ProfileRepository
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	profiles   repositories.ProfileRepository
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		products:   deps.Products,
		categories: deps.Categories,
		profiles:   deps.Profiles,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, query ProductListQuery) (domain.Page[Product], error) {
	filter := repositories.ProductFilter{
		CategoryID: strings.TrimSpace(query.CategoryID),
		SellerID:   strings.TrimSpace(query.SellerID),
		Featured:   query.Featured,
		Search:     strings.TrimSpace(query.Search),
		MinPrice:   query.MinPrice,
		MaxPrice:   query.MaxPrice,
		SortBy:     normalizeProductSort(query.SortBy),
	}

	if slug := strings.TrimSpace(query.CategorySlug); slug != "" && filter.CategoryID == "" {
		category, err := s.categories.FindBySlug(ctx, slug)
		if err != nil {
			if isRepoNotFound(err) {
				return domain.Page[Product]{Page: query.Page.Page, PageSize: query.Page.PageSize}, nil
			}
			return domain.Page[Product]{}, err
		}
		filter.CategoryID = category.ID
	}

	if query.IncludeUnpublished {
		if status := strings.TrimSpace(query.Status); status != "" {
			filter.Status = domain.ProductStatus(status)
		}
	} else {
		// Public listings never expose drafts or archived products.
		filter.Status = domain.ProductStatusActive
	}

	page, err := s.products.List(ctx, filter, query.Page)
	if err != nil {
		return domain.Page[Product]{}, err
	}

	if err := s.hydrateProducts(ctx, page.Items); err != nil {
		return domain.Page[Product]{}, err
	}
	return page, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}

	items := []Product{product}
	if err := s.hydrateProducts(ctx, items); err != nil {
		return Product{}, err
	}
	return items[0], nil
}

func (s *catalogService) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Product{}, fmt.Errorf("%w: product slug is required", ErrInvalidInput)
	}

	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}

	items := []Product{product}
	if err := s.hydrateProducts(ctx, items); err != nil {
		return Product{}, err
	}
	return items[0], nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	return s.categories.ListAll(ctx)
}

func (s *catalogService) GetCategoryBySlug(ctx context.Context, slug string) (Category, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Category{}, fmt.Errorf("%w: category slug is required", ErrInvalidInput)
	}
	category, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		if isRepoNotFound(err) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, err
	}
	return category, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	if cmd.Actor.Role != domain.RoleSeller && !cmd.Actor.IsAdmin() {
		return Product{}, ErrPermissionDenied
	}
	if err := validateProductFields(cmd.Name, cmd.Price, cmd.InventoryQuantity); err != nil {
		return Product{}, err
	}

	status := domain.ProductStatusDraft
	if trimmed := strings.TrimSpace(cmd.Status); trimmed != "" {
		parsed, err := parseProductStatus(trimmed)
		if err != nil {
			return Product{}, err
		}
		status = parsed
	}

	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID != "" {
		if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
			if isRepoNotFound(err) {
				return Product{}, ErrCategoryNotFound
			}
			return Product{}, err
		}
	}

	product := domain.Product{
		SellerID:          cmd.Actor.UserID,
		CategoryID:        categoryID,
		Name:              strings.TrimSpace(cmd.Name),
		Slug:              domain.Slugify(cmd.Name),
		Description:       strings.TrimSpace(cmd.Description),
		Price:             cmd.Price,
		CompareAtPrice:    cmd.CompareAtPrice,
		InventoryQuantity: cmd.InventoryQuantity,
		SKU:               strings.TrimSpace(cmd.SKU),
		Images:            trimStrings(cmd.Images),
		Status:            status,
	}

	created, err := s.products.Insert(ctx, product)
	if err != nil {
		return Product{}, err
	}

	s.logger(ctx, "catalog.product.created", map[string]any{
		"productId": created.ID,
		"sellerId":  created.SellerID,
		"status":    string(created.Status),
	})
	return created, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	if !cmd.Actor.CanManageProduct(product) {
		return Product{}, ErrPermissionDenied
	}

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Product{}, fmt.Errorf("%w: product name must not be empty", ErrInvalidInput)
		}
		product.Name = name
		product.Slug = domain.Slugify(name)
	}
	if cmd.Description != nil {
		product.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.Price != nil {
		if *cmd.Price <= 0 {
			return Product{}, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
		}
		product.Price = *cmd.Price
	}
	if cmd.CompareAtPrice != nil {
		product.CompareAtPrice = *cmd.CompareAtPrice
	}
	if cmd.InventoryQuantity != nil {
		if *cmd.InventoryQuantity < 0 {
			return Product{}, fmt.Errorf("%w: inventory must not be negative", ErrInvalidInput)
		}
		product.InventoryQuantity = *cmd.InventoryQuantity
	}
	if cmd.SKU != nil {
		product.SKU = strings.TrimSpace(*cmd.SKU)
	}
	if cmd.Images != nil {
		product.Images = trimStrings(cmd.Images)
	}
	if cmd.CategoryID != nil {
		categoryID := strings.TrimSpace(*cmd.CategoryID)
		if categoryID != "" {
			if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
				if isRepoNotFound(err) {
					return Product{}, ErrCategoryNotFound
				}
				return Product{}, err
			}
		}
		product.CategoryID = categoryID
	}
	if cmd.Status != nil {
		status, err := parseProductStatus(*cmd.Status)
		if err != nil {
			return Product{}, err
		}
		product.Status = status
	}
	if cmd.Featured != nil {
		// Curation of the featured shelf is an admin call.
		if !cmd.Actor.IsAdmin() {
			return Product{}, ErrPermissionDenied
		}
		product.Featured = *cmd.Featured
	}

	updated, err := s.products.Update(ctx, product)
	if err != nil {
		return Product{}, err
	}

	s.logger(ctx, "catalog.product.updated", map[string]any{
		"productId": updated.ID,
		"actorId":   cmd.Actor.UserID,
	})
	return updated, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, actor Actor, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return ErrProductNotFound
		}
		return err
	}
	if !actor.CanManageProduct(product) {
		return ErrPermissionDenied
	}

	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}

	s.logger(ctx, "catalog.product.deleted", map[string]any{
		"productId": productID,
		"actorId":   actor.UserID,
	})
	return nil
}

func (s *catalogService) CreateCategory(ctx context.Context, cmd CategoryCommand) (Category, error) {
	if !cmd.Actor.IsAdmin() {
		return Category{}, ErrPermissionDenied
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}

	category := domain.Category{
		Name:        name,
		Slug:        chooseFirstNonEmpty(domain.Slugify(cmd.Slug), domain.Slugify(name)),
		Description: strings.TrimSpace(cmd.Description),
		ImageURL:    strings.TrimSpace(cmd.ImageURL),
		ParentID:    strings.TrimSpace(cmd.ParentID),
	}
	return s.categories.Insert(ctx, category)
}

func (s *catalogService) UpdateCategory(ctx context.Context, cmd CategoryCommand) (Category, error) {
	if !cmd.Actor.IsAdmin() {
		return Category{}, ErrPermissionDenied
	}
	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrInvalidInput)
	}

	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		if isRepoNotFound(err) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, err
	}

	if name := strings.TrimSpace(cmd.Name); name != "" {
		category.Name = name
		category.Slug = chooseFirstNonEmpty(domain.Slugify(cmd.Slug), domain.Slugify(name))
	}
	if description := strings.TrimSpace(cmd.Description); description != "" {
		category.Description = description
	}
	if imageURL := strings.TrimSpace(cmd.ImageURL); imageURL != "" {
		category.ImageURL = imageURL
	}
	category.ParentID = strings.TrimSpace(cmd.ParentID)

	return s.categories.Update(ctx, category)
}

func (s *catalogService) DeleteCategory(ctx context.Context, actor Actor, categoryID string) error {
	if !actor.IsAdmin() {
		return ErrPermissionDenied
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return fmt.Errorf("%w: category id is required", ErrInvalidInput)
	}
	if err := s.categories.Delete(ctx, categoryID); err != nil {
		if isRepoNotFound(err) {
			return ErrCategoryNotFound
		}
		return err
	}
	return nil
}

// hydrateProducts joins seller profiles and categories onto the listed
// products. Lookups are memoised per call since pages repeat sellers.
func (s *catalogService) hydrateProducts(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}

	sellers := make(map[string]*domain.Profile)
	categories := make(map[string]*domain.Category)

	for i := range products {
		if s.profiles != nil && products[i].SellerID != "" {
			seller, ok := sellers[products[i].SellerID]
			if !ok {
				loaded, err := s.profiles.FindByID(ctx, products[i].SellerID)
				if err != nil {
					if !isRepoNotFound(err) {
						return err
					}
					sellers[products[i].SellerID] = nil
				} else {
					copied := loaded
					sellers[products[i].SellerID] = &copied
				}
				seller = sellers[products[i].SellerID]
			}
			products[i].Seller = seller
		}

		if products[i].CategoryID != "" {
			category, ok := categories[products[i].CategoryID]
			if !ok {
				loaded, err := s.categories.FindByID(ctx, products[i].CategoryID)
				if err != nil {
					if !isRepoNotFound(err) {
						return err
					}
					categories[products[i].CategoryID] = nil
				} else {
					copied := loaded
					categories[products[i].CategoryID] = &copied
				}
				category = categories[products[i].CategoryID]
			}
			products[i].Category = category
		}
	}
	return nil
}

func normalizeProductSort(sortBy string) repositories.ProductSort {
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case string(repositories.SortPriceAsc):
		return repositories.SortPriceAsc
	case string(repositories.SortPriceDesc):
		return repositories.SortPriceDesc
	case string(repositories.SortNameAsc):
		return repositories.SortNameAsc
	case string(repositories.SortRating):
		return repositories.SortRating
	default:
		return repositories.SortNewest
	}
}

func parseProductStatus(value string) (domain.ProductStatus, error) {
	switch domain.ProductStatus(strings.ToLower(strings.TrimSpace(value))) {
	case domain.ProductStatusDraft:
		return domain.ProductStatusDraft, nil
	case domain.ProductStatusActive:
		return domain.ProductStatusActive, nil
	case domain.ProductStatusArchived:
		return domain.ProductStatusArchived, nil
	default:
		return "", fmt.Errorf("%w: unknown product status %q", ErrInvalidInput, value)
	}
}

func validateProductFields(name string, price int64, inventory int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if inventory < 0 {
		return fmt.Errorf("%w: inventory must not be negative", ErrInvalidInput)
	}
	return nil
}

func trimStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
