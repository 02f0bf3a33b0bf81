package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/pagination"
	"github.com/marketsquare/api/internal/repositories"
)

type notFoundErr struct{}

func (notFoundErr) Error() string       { return "not found" }
func (notFoundErr) IsNotFound() bool    { return true }
func (notFoundErr) IsConflict() bool    { return false }
func (notFoundErr) IsUnavailable() bool { return false }

var errStubNotFound = notFoundErr{}

type stubProductRepo struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	listErr     error
	lastFilter  repositories.ProductFilter
	adjustCalls []string
	ratings     map[string]float64
	counts      map[string]int
}

func newStubProductRepo(products ...domain.Product) *stubProductRepo {
	repo := &stubProductRepo{
		products: make(map[string]domain.Product),
		ratings:  make(map[string]float64),
		counts:   make(map[string]int),
	}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *stubProductRepo) Insert(ctx context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if product.ID == "" {
		product.ID = "prod-" + time.Now().Format("150405.000000000")
	}
	product.CreatedAt = time.Now().UTC()
	r.products[product.ID] = product
	return product, nil
}

func (r *stubProductRepo) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[product.ID]; !ok {
		return domain.Product{}, errStubNotFound
	}
	r.products[product.ID] = product
	return product, nil
}

func (r *stubProductRepo) Delete(ctx context.Context, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[productID]; !ok {
		return errStubNotFound
	}
	delete(r.products, productID)
	return nil
}

func (r *stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, errStubNotFound
	}
	return product, nil
}

func (r *stubProductRepo) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, product := range r.products {
		if product.Slug == slug {
			return product, nil
		}
	}
	return domain.Product{}, errStubNotFound
}

func (r *stubProductRepo) List(ctx context.Context, filter repositories.ProductFilter, params pagination.Params) (domain.Page[domain.Product], error) {
	if r.listErr != nil {
		return domain.Page[domain.Product]{}, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter

	var items []domain.Product
	for _, p := range r.products {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.SellerID != "" && p.SellerID != filter.SellerID {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if filter.Search != "" && !strings.HasPrefix(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.Page[domain.Product]{Items: items, Page: params.Page, PageSize: params.PageSize}, nil
}

func (r *stubProductRepo) AdjustInventory(ctx context.Context, productID string, delta int) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, errStubNotFound
	}
	product.InventoryQuantity += delta
	r.products[productID] = product
	r.adjustCalls = append(r.adjustCalls, productID)
	return product, nil
}

func (r *stubProductRepo) UpdateRating(ctx context.Context, productID string, rating float64, reviewCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[productID]; !ok {
		return errStubNotFound
	}
	r.ratings[productID] = rating
	r.counts[productID] = reviewCount
	return nil
}

type stubCategoryRepo struct {
	categories map[string]domain.Category
}

func newStubCategoryRepo(categories ...domain.Category) *stubCategoryRepo {
	repo := &stubCategoryRepo{categories: make(map[string]domain.Category)}
	for _, c := range categories {
		repo.categories[c.ID] = c
	}
	return repo
}

func (r *stubCategoryRepo) Insert(ctx context.Context, category domain.Category) (domain.Category, error) {
	if category.ID == "" {
		category.ID = "cat-" + category.Slug
	}
	r.categories[category.ID] = category
	return category, nil
}

func (r *stubCategoryRepo) Update(ctx context.Context, category domain.Category) (domain.Category, error) {
	if _, ok := r.categories[category.ID]; !ok {
		return domain.Category{}, errStubNotFound
	}
	r.categories[category.ID] = category
	return category, nil
}

func (r *stubCategoryRepo) Delete(ctx context.Context, categoryID string) error {
	if _, ok := r.categories[categoryID]; !ok {
		return errStubNotFound
	}
	delete(r.categories, categoryID)
	return nil
}

func (r *stubCategoryRepo) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	category, ok := r.categories[categoryID]
	if !ok {
		return domain.Category{}, errStubNotFound
	}
	return category, nil
}

func (r *stubCategoryRepo) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	for _, category := range r.categories {
		if category.Slug == slug {
			return category, nil
		}
	}
	return domain.Category{}, errStubNotFound
}

func (r *stubCategoryRepo) ListAll(ctx context.Context) ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(r.categories))
	for _, category := range r.categories {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type stubProfileRepo struct {
	profiles map[string]domain.Profile
}

func newStubProfileRepo(profiles ...domain.Profile) *stubProfileRepo {
	repo := &stubProfileRepo{profiles: make(map[string]domain.Profile)}
	for _, p := range profiles {
		repo.profiles[p.ID] = p
	}
	return repo
}

func (r *stubProfileRepo) Upsert(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	r.profiles[profile.ID] = profile
	return profile, nil
}

func (r *stubProfileRepo) FindByID(ctx context.Context, userID string) (domain.Profile, error) {
	profile, ok := r.profiles[userID]
	if !ok {
		return domain.Profile{}, errStubNotFound
	}
	return profile, nil
}

func (r *stubProfileRepo) UpdateRole(ctx context.Context, userID string, role domain.Role) (domain.Profile, error) {
	profile, ok := r.profiles[userID]
	if !ok {
		return domain.Profile{}, errStubNotFound
	}
	profile.Role = role
	r.profiles[userID] = profile
	return profile, nil
}

func (r *stubProfileRepo) List(ctx context.Context, params pagination.Params) (domain.Page[domain.Profile], error) {
	out := make([]domain.Profile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.Page[domain.Profile]{Items: out, Page: params.Page, PageSize: params.PageSize}, nil
}

type stubOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newStubOrderRepo(orders ...domain.Order) *stubOrderRepo {
	repo := &stubOrderRepo{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		repo.orders[o.ID] = o
	}
	return repo
}

func (r *stubOrderRepo) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID == "" {
		order.ID = "order-" + time.Now().Format("150405.000000000")
	}
	order.CreatedAt = time.Now().UTC()
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, errStubNotFound
	}
	return order, nil
}

func (r *stubOrderRepo) FindBySessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.SessionID == sessionID {
			return order, nil
		}
	}
	return domain.Order{}, errStubNotFound
}

func (r *stubOrderRepo) ListByUser(ctx context.Context, userID string, params pagination.Params) (domain.Page[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.Page[domain.Order]{Items: out, Page: params.Page, PageSize: params.PageSize}, nil
}

func (r *stubOrderRepo) ListAll(ctx context.Context, status domain.OrderStatus, params pagination.Params) (domain.Page[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if status != "" && order.Status != status {
			continue
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.Page[domain.Order]{Items: out, Page: params.Page, PageSize: params.PageSize}, nil
}

func (r *stubOrderRepo) ListBySeller(ctx context.Context, sellerID string, params pagination.Params) (domain.Page[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, order := range r.orders {
		for _, line := range order.Items {
			if line.SellerID == sellerID {
				out = append(out, order)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.Page[domain.Order]{Items: out, Page: params.Page, PageSize: params.PageSize}, nil
}

func (r *stubOrderRepo) MarkStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentIntentID string, completedAt *time.Time) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, errStubNotFound
	}
	order.Status = status
	if paymentIntentID != "" {
		order.PaymentIntentID = paymentIntentID
	}
	order.CompletedAt = completedAt
	r.orders[orderID] = order
	return order, nil
}

type stubReviewRepo struct {
	reviews map[string]domain.Review
}

func newStubReviewRepo(reviews ...domain.Review) *stubReviewRepo {
	repo := &stubReviewRepo{reviews: make(map[string]domain.Review)}
	for _, review := range reviews {
		repo.reviews[review.ID] = review
	}
	return repo
}

func (r *stubReviewRepo) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	if review.ID == "" {
		review.ID = "rev-" + review.ProductID + "-" + review.UserID
	}
	review.CreatedAt = time.Now().UTC()
	r.reviews[review.ID] = review
	return review, nil
}

func (r *stubReviewRepo) Update(ctx context.Context, review domain.Review) (domain.Review, error) {
	if _, ok := r.reviews[review.ID]; !ok {
		return domain.Review{}, errStubNotFound
	}
	review.UpdatedAt = time.Now().UTC()
	r.reviews[review.ID] = review
	return review, nil
}

func (r *stubReviewRepo) Delete(ctx context.Context, reviewID string) error {
	if _, ok := r.reviews[reviewID]; !ok {
		return errStubNotFound
	}
	delete(r.reviews, reviewID)
	return nil
}

func (r *stubReviewRepo) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	review, ok := r.reviews[reviewID]
	if !ok {
		return domain.Review{}, errStubNotFound
	}
	return review, nil
}

func (r *stubReviewRepo) FindByProductAndUser(ctx context.Context, productID, userID string) (domain.Review, error) {
	for _, review := range r.reviews {
		if review.ProductID == productID && review.UserID == userID {
			return review, nil
		}
	}
	return domain.Review{}, errStubNotFound
}

func (r *stubReviewRepo) ListByProduct(ctx context.Context, productID string, params pagination.Params) (domain.Page[domain.Review], error) {
	var out []domain.Review
	for _, review := range r.reviews {
		if review.ProductID == productID {
			out = append(out, review)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.Page[domain.Review]{Items: out, Page: params.Page, PageSize: params.PageSize}, nil
}

func (r *stubReviewRepo) ListByUser(ctx context.Context, userID string, params pagination.Params) (domain.Page[domain.Review], error) {
	var out []domain.Review
	for _, review := range r.reviews {
		if review.UserID == userID {
			out = append(out, review)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return domain.Page[domain.Review]{Items: out, Page: params.Page, PageSize: params.PageSize}, nil
}

type stubAddressRepo struct {
	seq       int
	addresses map[string]domain.Address
}

func newStubAddressRepo(addresses ...domain.Address) *stubAddressRepo {
	repo := &stubAddressRepo{addresses: make(map[string]domain.Address)}
	for _, a := range addresses {
		repo.addresses[a.ID] = a
	}
	return repo
}

func (r *stubAddressRepo) Insert(ctx context.Context, address domain.Address) (domain.Address, error) {
	r.seq++
	address.ID = "addr-" + string(rune('0'+r.seq))
	if address.IsDefault {
		r.clearDefault(address.UserID, address.ID)
	}
	r.addresses[address.ID] = address
	return address, nil
}

func (r *stubAddressRepo) Update(ctx context.Context, address domain.Address) (domain.Address, error) {
	existing, ok := r.addresses[address.ID]
	if !ok || existing.UserID != address.UserID {
		return domain.Address{}, errStubNotFound
	}
	if address.IsDefault {
		r.clearDefault(address.UserID, address.ID)
	}
	r.addresses[address.ID] = address
	return address, nil
}

func (r *stubAddressRepo) Delete(ctx context.Context, userID, addressID string) error {
	existing, ok := r.addresses[addressID]
	if !ok || existing.UserID != userID {
		return errStubNotFound
	}
	delete(r.addresses, addressID)
	return nil
}

func (r *stubAddressRepo) FindByID(ctx context.Context, userID, addressID string) (domain.Address, error) {
	address, ok := r.addresses[addressID]
	if !ok || address.UserID != userID {
		return domain.Address{}, errStubNotFound
	}
	return address, nil
}

func (r *stubAddressRepo) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	var out []domain.Address
	for _, address := range r.addresses {
		if address.UserID == userID {
			out = append(out, address)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubAddressRepo) ClearDefault(ctx context.Context, userID, keepID string) error {
	r.clearDefault(userID, keepID)
	return nil
}

func (r *stubAddressRepo) clearDefault(userID, keepID string) {
	for id, address := range r.addresses {
		if address.UserID == userID && id != keepID && address.IsDefault {
			address.IsDefault = false
			r.addresses[id] = address
		}
	}
}

type stubWishlistRepo struct {
	entries map[string]map[string]domain.WishlistEntry
}

func newStubWishlistRepo() *stubWishlistRepo {
	return &stubWishlistRepo{entries: make(map[string]map[string]domain.WishlistEntry)}
}

func (r *stubWishlistRepo) Add(ctx context.Context, userID, productID string) (bool, error) {
	if r.entries[userID] == nil {
		r.entries[userID] = make(map[string]domain.WishlistEntry)
	}
	if _, ok := r.entries[userID][productID]; ok {
		return false, nil
	}
	r.entries[userID][productID] = domain.WishlistEntry{
		ID:        productID,
		UserID:    userID,
		ProductID: productID,
		CreatedAt: time.Now().UTC(),
	}
	return true, nil
}

func (r *stubWishlistRepo) Remove(ctx context.Context, userID, productID string) error {
	if _, ok := r.entries[userID][productID]; !ok {
		return errStubNotFound
	}
	delete(r.entries[userID], productID)
	return nil
}

func (r *stubWishlistRepo) Contains(ctx context.Context, userID, productID string) (bool, error) {
	_, ok := r.entries[userID][productID]
	return ok, nil
}

func (r *stubWishlistRepo) ListByUser(ctx context.Context, userID string) ([]domain.WishlistEntry, error) {
	var out []domain.WishlistEntry
	for _, entry := range r.entries[userID] {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

type stubEventPublisher struct {
	mu       sync.Mutex
	messages []OrderEventMessage
	err      error
}

func (p *stubEventPublisher) PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, message)
	return "msg-1", nil
}

var (
	_ repositories.ProductRepository  = (*stubProductRepo)(nil)
	_ repositories.CategoryRepository = (*stubCategoryRepo)(nil)
	_ repositories.ProfileRepository  = (*stubProfileRepo)(nil)
	_ repositories.OrderRepository    = (*stubOrderRepo)(nil)
	_ repositories.ReviewRepository   = (*stubReviewRepo)(nil)
	_ repositories.AddressRepository  = (*stubAddressRepo)(nil)
	_ repositories.WishlistRepository = (*stubWishlistRepo)(nil)
	_ OrderEventPublisher             = (*stubEventPublisher)(nil)
)
