package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/cart"
	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/auth"
	"github.com/marketsquare/api/internal/platform/pagination"
	"github.com/marketsquare/api/internal/services"
)

var errStubUnconfigured = errors.New("stub: call not configured")

// Function-field stubs so each test wires only the calls it exercises.

type stubCatalogService struct {
	listProducts     func(ctx context.Context, query services.ProductListQuery) (domain.Page[services.Product], error)
	getProduct       func(ctx context.Context, productID string) (services.Product, error)
	getProductBySlug func(ctx context.Context, slug string) (services.Product, error)
	listCategories   func(ctx context.Context) ([]services.Category, error)
	getCategory      func(ctx context.Context, slug string) (services.Category, error)
	createProduct    func(ctx context.Context, cmd services.CreateProductCommand) (services.Product, error)
	updateProduct    func(ctx context.Context, cmd services.UpdateProductCommand) (services.Product, error)
	deleteProduct    func(ctx context.Context, actor services.Actor, productID string) error
	createCategory   func(ctx context.Context, cmd services.CategoryCommand) (services.Category, error)
	updateCategory   func(ctx context.Context, cmd services.CategoryCommand) (services.Category, error)
	deleteCategory   func(ctx context.Context, actor services.Actor, categoryID string) error
}

var _ services.CatalogService = (*stubCatalogService)(nil)

func (s *stubCatalogService) ListProducts(ctx context.Context, query services.ProductListQuery) (domain.Page[services.Product], error) {
	if s.listProducts == nil {
		return domain.Page[services.Product]{}, errStubUnconfigured
	}
	return s.listProducts(ctx, query)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getProduct == nil {
		return services.Product{}, errStubUnconfigured
	}
	return s.getProduct(ctx, productID)
}

func (s *stubCatalogService) GetProductBySlug(ctx context.Context, slug string) (services.Product, error) {
	if s.getProductBySlug == nil {
		return services.Product{}, errStubUnconfigured
	}
	return s.getProductBySlug(ctx, slug)
}

func (s *stubCatalogService) ListCategories(ctx context.Context) ([]services.Category, error) {
	if s.listCategories == nil {
		return nil, errStubUnconfigured
	}
	return s.listCategories(ctx)
}

func (s *stubCatalogService) GetCategoryBySlug(ctx context.Context, slug string) (services.Category, error) {
	if s.getCategory == nil {
		return services.Category{}, errStubUnconfigured
	}
	return s.getCategory(ctx, slug)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.CreateProductCommand) (services.Product, error) {
	if s.createProduct == nil {
		return services.Product{}, errStubUnconfigured
	}
	return s.createProduct(ctx, cmd)
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, cmd services.UpdateProductCommand) (services.Product, error) {
	if s.updateProduct == nil {
		return services.Product{}, errStubUnconfigured
	}
	return s.updateProduct(ctx, cmd)
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, actor services.Actor, productID string) error {
	if s.deleteProduct == nil {
		return errStubUnconfigured
	}
	return s.deleteProduct(ctx, actor, productID)
}

func (s *stubCatalogService) CreateCategory(ctx context.Context, cmd services.CategoryCommand) (services.Category, error) {
	if s.createCategory == nil {
		return services.Category{}, errStubUnconfigured
	}
	return s.createCategory(ctx, cmd)
}

func (s *stubCatalogService) UpdateCategory(ctx context.Context, cmd services.CategoryCommand) (services.Category, error) {
	if s.updateCategory == nil {
		return services.Category{}, errStubUnconfigured
	}
	return s.updateCategory(ctx, cmd)
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, actor services.Actor, categoryID string) error {
	if s.deleteCategory == nil {
		return errStubUnconfigured
	}
	return s.deleteCategory(ctx, actor, categoryID)
}

type stubReviewService struct {
	listForProduct func(ctx context.Context, productID string, params pagination.Params) (domain.Page[services.Review], error)
	listForUser    func(ctx context.Context, userID string, params pagination.Params) (domain.Page[services.Review], error)
	submit         func(ctx context.Context, cmd services.SubmitReviewCommand) (services.Review, error)
	update         func(ctx context.Context, cmd services.UpdateReviewCommand) (services.Review, error)
	remove         func(ctx context.Context, actor services.Actor, reviewID string) error
}

var _ services.ReviewService = (*stubReviewService)(nil)

func (s *stubReviewService) ListForProduct(ctx context.Context, productID string, params pagination.Params) (domain.Page[services.Review], error) {
	if s.listForProduct == nil {
		return domain.Page[services.Review]{}, errStubUnconfigured
	}
	return s.listForProduct(ctx, productID, params)
}

func (s *stubReviewService) ListForUser(ctx context.Context, userID string, params pagination.Params) (domain.Page[services.Review], error) {
	if s.listForUser == nil {
		return domain.Page[services.Review]{}, errStubUnconfigured
	}
	return s.listForUser(ctx, userID, params)
}

func (s *stubReviewService) Submit(ctx context.Context, cmd services.SubmitReviewCommand) (services.Review, error) {
	if s.submit == nil {
		return services.Review{}, errStubUnconfigured
	}
	return s.submit(ctx, cmd)
}

func (s *stubReviewService) Update(ctx context.Context, cmd services.UpdateReviewCommand) (services.Review, error) {
	if s.update == nil {
		return services.Review{}, errStubUnconfigured
	}
	return s.update(ctx, cmd)
}

func (s *stubReviewService) Delete(ctx context.Context, actor services.Actor, reviewID string) error {
	if s.remove == nil {
		return errStubUnconfigured
	}
	return s.remove(ctx, actor, reviewID)
}

type stubCartService struct {
	getCart    func(ctx context.Context, sessionID string) (cart.Cart, error)
	addItem    func(ctx context.Context, sessionID, productID string, quantity int) (cart.Cart, error)
	updateItem func(ctx context.Context, sessionID, productID string, quantity int) (cart.Cart, error)
	removeItem func(ctx context.Context, sessionID, productID string) (cart.Cart, error)
	clearCart  func(ctx context.Context, sessionID string) error
}

var _ services.CartService = (*stubCartService)(nil)

func (s *stubCartService) GetCart(ctx context.Context, sessionID string) (cart.Cart, error) {
	if s.getCart == nil {
		return cart.Cart{}, errStubUnconfigured
	}
	return s.getCart(ctx, sessionID)
}

func (s *stubCartService) AddItem(ctx context.Context, sessionID, productID string, quantity int) (cart.Cart, error) {
	if s.addItem == nil {
		return cart.Cart{}, errStubUnconfigured
	}
	return s.addItem(ctx, sessionID, productID, quantity)
}

func (s *stubCartService) UpdateItem(ctx context.Context, sessionID, productID string, quantity int) (cart.Cart, error) {
	if s.updateItem == nil {
		return cart.Cart{}, errStubUnconfigured
	}
	return s.updateItem(ctx, sessionID, productID, quantity)
}

func (s *stubCartService) RemoveItem(ctx context.Context, sessionID, productID string) (cart.Cart, error) {
	if s.removeItem == nil {
		return cart.Cart{}, errStubUnconfigured
	}
	return s.removeItem(ctx, sessionID, productID)
}

func (s *stubCartService) ClearCart(ctx context.Context, sessionID string) error {
	if s.clearCart == nil {
		return errStubUnconfigured
	}
	return s.clearCart(ctx, sessionID)
}

type stubCheckoutService struct {
	createSession func(ctx context.Context, cmd services.CreateCheckoutCommand) (services.CheckoutSession, error)
	verifyPayment func(ctx context.Context, cmd services.VerifyPaymentCommand) (services.PaymentVerification, error)
}

var _ services.CheckoutService = (*stubCheckoutService)(nil)

func (s *stubCheckoutService) CreateSession(ctx context.Context, cmd services.CreateCheckoutCommand) (services.CheckoutSession, error) {
	if s.createSession == nil {
		return services.CheckoutSession{}, errStubUnconfigured
	}
	return s.createSession(ctx, cmd)
}

func (s *stubCheckoutService) VerifyPayment(ctx context.Context, cmd services.VerifyPaymentCommand) (services.PaymentVerification, error) {
	if s.verifyPayment == nil {
		return services.PaymentVerification{}, errStubUnconfigured
	}
	return s.verifyPayment(ctx, cmd)
}

type stubProfileService struct {
	ensure     func(ctx context.Context, cmd services.EnsureProfileCommand) (services.Profile, error)
	get        func(ctx context.Context, userID string) (services.Profile, error)
	update     func(ctx context.Context, cmd services.UpdateProfileCommand) (services.Profile, error)
	list       func(ctx context.Context, actor services.Actor, params pagination.Params) (domain.Page[services.Profile], error)
	changeRole func(ctx context.Context, actor services.Actor, userID string, role services.Role) (services.Profile, error)
}

var _ services.ProfileService = (*stubProfileService)(nil)

func (s *stubProfileService) EnsureProfile(ctx context.Context, cmd services.EnsureProfileCommand) (services.Profile, error) {
	if s.ensure == nil {
		return services.Profile{}, errStubUnconfigured
	}
	return s.ensure(ctx, cmd)
}

func (s *stubProfileService) GetProfile(ctx context.Context, userID string) (services.Profile, error) {
	if s.get == nil {
		return services.Profile{}, errStubUnconfigured
	}
	return s.get(ctx, userID)
}

func (s *stubProfileService) UpdateProfile(ctx context.Context, cmd services.UpdateProfileCommand) (services.Profile, error) {
	if s.update == nil {
		return services.Profile{}, errStubUnconfigured
	}
	return s.update(ctx, cmd)
}

func (s *stubProfileService) ListProfiles(ctx context.Context, actor services.Actor, params pagination.Params) (domain.Page[services.Profile], error) {
	if s.list == nil {
		return domain.Page[services.Profile]{}, errStubUnconfigured
	}
	return s.list(ctx, actor, params)
}

func (s *stubProfileService) ChangeRole(ctx context.Context, actor services.Actor, userID string, role services.Role) (services.Profile, error) {
	if s.changeRole == nil {
		return services.Profile{}, errStubUnconfigured
	}
	return s.changeRole(ctx, actor, userID, role)
}

type stubAddressService struct {
	list       func(ctx context.Context, userID string) ([]services.Address, error)
	create     func(ctx context.Context, cmd services.SaveAddressCommand) (services.Address, error)
	update     func(ctx context.Context, cmd services.SaveAddressCommand) (services.Address, error)
	remove     func(ctx context.Context, userID, addressID string) error
	setDefault func(ctx context.Context, userID, addressID string) (services.Address, error)
}

var _ services.AddressService = (*stubAddressService)(nil)

func (s *stubAddressService) ListAddresses(ctx context.Context, userID string) ([]services.Address, error) {
	if s.list == nil {
		return nil, errStubUnconfigured
	}
	return s.list(ctx, userID)
}

func (s *stubAddressService) CreateAddress(ctx context.Context, cmd services.SaveAddressCommand) (services.Address, error) {
	if s.create == nil {
		return services.Address{}, errStubUnconfigured
	}
	return s.create(ctx, cmd)
}

func (s *stubAddressService) UpdateAddress(ctx context.Context, cmd services.SaveAddressCommand) (services.Address, error) {
	if s.update == nil {
		return services.Address{}, errStubUnconfigured
	}
	return s.update(ctx, cmd)
}

func (s *stubAddressService) DeleteAddress(ctx context.Context, userID, addressID string) error {
	if s.remove == nil {
		return errStubUnconfigured
	}
	return s.remove(ctx, userID, addressID)
}

func (s *stubAddressService) SetDefaultAddress(ctx context.Context, userID, addressID string) (services.Address, error) {
	if s.setDefault == nil {
		return services.Address{}, errStubUnconfigured
	}
	return s.setDefault(ctx, userID, addressID)
}

type stubWishlistService struct {
	list     func(ctx context.Context, userID string) ([]services.WishlistItem, error)
	add      func(ctx context.Context, userID, productID string) (bool, error)
	remove   func(ctx context.Context, userID, productID string) error
	contains func(ctx context.Context, userID, productID string) (bool, error)
}

var _ services.WishlistService = (*stubWishlistService)(nil)

func (s *stubWishlistService) ListWishlist(ctx context.Context, userID string) ([]services.WishlistItem, error) {
	if s.list == nil {
		return nil, errStubUnconfigured
	}
	return s.list(ctx, userID)
}

func (s *stubWishlistService) AddToWishlist(ctx context.Context, userID, productID string) (bool, error) {
	if s.add == nil {
		return false, errStubUnconfigured
	}
	return s.add(ctx, userID, productID)
}

func (s *stubWishlistService) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	if s.remove == nil {
		return errStubUnconfigured
	}
	return s.remove(ctx, userID, productID)
}

func (s *stubWishlistService) InWishlist(ctx context.Context, userID, productID string) (bool, error) {
	if s.contains == nil {
		return false, errStubUnconfigured
	}
	return s.contains(ctx, userID, productID)
}

type stubOrderService struct {
	get             func(ctx context.Context, actor services.Actor, orderID string) (services.Order, error)
	getBySession    func(ctx context.Context, actor services.Actor, sessionID string) (services.Order, error)
	list            func(ctx context.Context, userID string, params pagination.Params) (domain.Page[services.Order], error)
	listAll         func(ctx context.Context, actor services.Actor, status services.OrderStatus, params pagination.Params) (domain.Page[services.Order], error)
	listSellerItems func(ctx context.Context, actor services.Actor, params pagination.Params) (domain.Page[services.SellerOrderItem], error)
	updateStatus    func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error)
}

var _ services.OrderService = (*stubOrderService)(nil)

func (s *stubOrderService) GetOrder(ctx context.Context, actor services.Actor, orderID string) (services.Order, error) {
	if s.get == nil {
		return services.Order{}, errStubUnconfigured
	}
	return s.get(ctx, actor, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, userID string, params pagination.Params) (domain.Page[services.Order], error) {
	if s.list == nil {
		return domain.Page[services.Order]{}, errStubUnconfigured
	}
	return s.list(ctx, userID, params)
}

func (s *stubOrderService) GetOrderBySession(ctx context.Context, actor services.Actor, sessionID string) (services.Order, error) {
	if s.getBySession == nil {
		return services.Order{}, errStubUnconfigured
	}
	return s.getBySession(ctx, actor, sessionID)
}

func (s *stubOrderService) ListAllOrders(ctx context.Context, actor services.Actor, status services.OrderStatus, params pagination.Params) (domain.Page[services.Order], error) {
	if s.listAll == nil {
		return domain.Page[services.Order]{}, errStubUnconfigured
	}
	return s.listAll(ctx, actor, status, params)
}

func (s *stubOrderService) ListSellerItems(ctx context.Context, actor services.Actor, params pagination.Params) (domain.Page[services.SellerOrderItem], error) {
	if s.listSellerItems == nil {
		return domain.Page[services.SellerOrderItem]{}, errStubUnconfigured
	}
	return s.listSellerItems(ctx, actor, params)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.updateStatus == nil {
		return services.Order{}, errStubUnconfigured
	}
	return s.updateStatus(ctx, cmd)
}

type stubMediaService struct {
	upload func(ctx context.Context, cmd services.UploadImageCommand) (string, error)
	remove func(ctx context.Context, actor services.Actor, publicURL string) error
}

var _ services.MediaService = (*stubMediaService)(nil)

func (s *stubMediaService) UploadProductImage(ctx context.Context, cmd services.UploadImageCommand) (string, error) {
	if s.upload == nil {
		return "", errStubUnconfigured
	}
	return s.upload(ctx, cmd)
}

func (s *stubMediaService) DeleteProductImage(ctx context.Context, actor services.Actor, publicURL string) error {
	if s.remove == nil {
		return errStubUnconfigured
	}
	return s.remove(ctx, actor, publicURL)
}

// identityMiddleware injects a fixed identity the way the auth middleware
// would after token verification.
func identityMiddleware(identity *auth.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func buyerIdentity() *auth.Identity {
	return &auth.Identity{UID: "user-1", Email: "buyer@example.com", Roles: []string{auth.RoleBuyer}}
}

func sellerIdentity() *auth.Identity {
	return &auth.Identity{UID: "seller-1", Email: "seller@example.com", Roles: []string{auth.RoleSeller}}
}

func adminIdentity() *auth.Identity {
	return &auth.Identity{UID: "admin-1", Email: "admin@example.com", Roles: []string{auth.RoleAdmin}}
}

// newTestRouter mounts the registrar under the given prefix with an optional
// identity injected ahead of the routes.
func newTestRouter(prefix string, identity *auth.Identity, register func(chi.Router)) chi.Router {
	r := chi.NewRouter()
	if identity != nil {
		r.Use(identityMiddleware(identity))
	}
	if prefix == "" || prefix == "/" {
		register(r)
		return r
	}
	r.Route(prefix, register)
	return r
}

func jsonBody(t *testing.T, body any) io.Reader {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	return bytes.NewReader(data)
}

func doJSONRequest(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}
