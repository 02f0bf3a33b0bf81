package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/pagination"
)

func completedOrderWith(id, userID, productID string) domain.Order {
	return domain.Order{
		ID:     id,
		UserID: userID,
		Status: domain.OrderStatusCompleted,
		Items: []domain.OrderLineItem{
			{ProductID: productID, Quantity: 1, Price: 1000, Subtotal: 1000},
		},
	}
}

func newReviewFixture(t *testing.T, products []domain.Product, orders []domain.Order, reviews []domain.Review) (ReviewService, *stubReviewRepo, *stubProductRepo) {
	t.Helper()
	reviewRepo := newStubReviewRepo(reviews...)
	productRepo := newStubProductRepo(products...)
	service, err := NewReviewService(ReviewServiceDeps{
		Reviews:  reviewRepo,
		Products: productRepo,
		Orders:   newStubOrderRepo(orders...),
		Profiles: newStubProfileRepo(domain.Profile{ID: "user-1", FullName: "Pat Buyer", Role: domain.RoleBuyer}),
	})
	if err != nil {
		t.Fatalf("NewReviewService() error = %v", err)
	}
	return service, reviewRepo, productRepo
}

func TestReviewSubmitRequiresCompletedPurchase(t *testing.T) {
	product := activeProduct("prod-1", 1000, 5)
	service, _, _ := newReviewFixture(t, []domain.Product{product}, nil, nil)

	_, err := service.Submit(context.Background(), SubmitReviewCommand{
		Actor:     Actor{UserID: "user-1", Role: domain.RoleBuyer},
		ProductID: "prod-1",
		Rating:    5,
	})
	if !errors.Is(err, ErrReviewNotEligible) {
		t.Fatalf("Submit() error = %v, want ErrReviewNotEligible", err)
	}
}

func TestReviewSubmitRejectsPendingOrder(t *testing.T) {
	product := activeProduct("prod-1", 1000, 5)
	order := completedOrderWith("order-1", "user-1", "prod-1")
	order.Status = domain.OrderStatusPending
	service, _, _ := newReviewFixture(t, []domain.Product{product}, []domain.Order{order}, nil)

	_, err := service.Submit(context.Background(), SubmitReviewCommand{
		Actor:     Actor{UserID: "user-1", Role: domain.RoleBuyer},
		ProductID: "prod-1",
		OrderID:   "order-1",
		Rating:    4,
	})
	if !errors.Is(err, ErrReviewNotEligible) {
		t.Fatalf("Submit() error = %v, want ErrReviewNotEligible", err)
	}
}

func TestReviewSubmitStoresSanitisedReview(t *testing.T) {
	product := activeProduct("prod-1", 1000, 5)
	order := completedOrderWith("order-1", "user-1", "prod-1")
	service, _, productRepo := newReviewFixture(t, []domain.Product{product}, []domain.Order{order}, nil)

	created, err := service.Submit(context.Background(), SubmitReviewCommand{
		Actor:     Actor{UserID: "user-1", Role: domain.RoleBuyer},
		ProductID: "prod-1",
		Rating:    4,
		Title:     `Great <script>alert("x")</script>bowl`,
		Comment:   "<b>Lovely</b> finish",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if strings.Contains(created.Title, "<script>") {
		t.Fatalf("title kept markup: %q", created.Title)
	}
	if strings.Contains(created.Comment, "<b>") {
		t.Fatalf("comment kept markup: %q", created.Comment)
	}
	if created.OrderID != "order-1" {
		t.Fatalf("order id = %q, want order-1", created.OrderID)
	}

	if got := productRepo.ratings["prod-1"]; math.Abs(got-4.0) > 1e-9 {
		t.Fatalf("aggregate rating = %v, want 4.0", got)
	}
	if got := productRepo.counts["prod-1"]; got != 1 {
		t.Fatalf("review count = %d, want 1", got)
	}
}

func TestReviewSubmitAggregatesRating(t *testing.T) {
	product := activeProduct("prod-1", 1000, 5)
	product.Rating = 4.0
	product.ReviewCount = 1
	order := completedOrderWith("order-1", "user-2", "prod-1")
	service, _, productRepo := newReviewFixture(t, []domain.Product{product}, []domain.Order{order}, nil)

	if _, err := service.Submit(context.Background(), SubmitReviewCommand{
		Actor:     Actor{UserID: "user-2", Role: domain.RoleBuyer},
		ProductID: "prod-1",
		Rating:    2,
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if got := productRepo.ratings["prod-1"]; math.Abs(got-3.0) > 1e-9 {
		t.Fatalf("aggregate rating = %v, want 3.0", got)
	}
	if got := productRepo.counts["prod-1"]; got != 2 {
		t.Fatalf("review count = %d, want 2", got)
	}
}

func TestReviewSubmitRejectsDuplicate(t *testing.T) {
	product := activeProduct("prod-1", 1000, 5)
	order := completedOrderWith("order-1", "user-1", "prod-1")
	existing := domain.Review{ID: "rev-1", ProductID: "prod-1", UserID: "user-1", Rating: 5}
	service, _, _ := newReviewFixture(t, []domain.Product{product}, []domain.Order{order}, []domain.Review{existing})

	_, err := service.Submit(context.Background(), SubmitReviewCommand{
		Actor:     Actor{UserID: "user-1", Role: domain.RoleBuyer},
		ProductID: "prod-1",
		Rating:    3,
	})
	if !errors.Is(err, ErrReviewExists) {
		t.Fatalf("Submit() error = %v, want ErrReviewExists", err)
	}
}

func TestReviewSubmitValidatesRating(t *testing.T) {
	service, _, _ := newReviewFixture(t, []domain.Product{activeProduct("prod-1", 1000, 5)}, nil, nil)

	for _, rating := range []int{0, 6, -1} {
		_, err := service.Submit(context.Background(), SubmitReviewCommand{
			Actor:     Actor{UserID: "user-1", Role: domain.RoleBuyer},
			ProductID: "prod-1",
			Rating:    rating,
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("rating %d: error = %v, want ErrInvalidInput", rating, err)
		}
	}
}

func TestReviewDeleteAuthorOrAdmin(t *testing.T) {
	product := activeProduct("prod-1", 1000, 5)
	product.Rating = 4.0
	product.ReviewCount = 2
	review := domain.Review{ID: "rev-1", ProductID: "prod-1", UserID: "user-1", Rating: 5}
	service, reviewRepo, productRepo := newReviewFixture(t, []domain.Product{product}, nil, []domain.Review{review})

	if err := service.Delete(context.Background(), Actor{UserID: "user-2", Role: domain.RoleBuyer}, "rev-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign delete: error = %v, want ErrPermissionDenied", err)
	}
	if err := service.Delete(context.Background(), Actor{UserID: "user-1", Role: domain.RoleBuyer}, "rev-1"); err != nil {
		t.Fatalf("author delete: error = %v", err)
	}
	if _, err := reviewRepo.FindByID(context.Background(), "rev-1"); err == nil {
		t.Fatal("review still present after delete")
	}

	// (4.0*2 - 5) / 1 = 3.0
	if got := productRepo.ratings["prod-1"]; math.Abs(got-3.0) > 1e-9 {
		t.Fatalf("aggregate rating = %v, want 3.0", got)
	}
	if got := productRepo.counts["prod-1"]; got != 1 {
		t.Fatalf("review count = %d, want 1", got)
	}
}

func TestReviewUpdateRebalancesRating(t *testing.T) {
	product := activeProduct("prod-1", 1000, 5)
	product.Rating = 4.0
	product.ReviewCount = 2
	review := domain.Review{ID: "rev-1", ProductID: "prod-1", UserID: "user-1", Rating: 5, Title: "Great"}
	service, reviewRepo, productRepo := newReviewFixture(t, []domain.Product{product}, nil, []domain.Review{review})

	rating := 3
	title := "Fine"
	updated, err := service.Update(context.Background(), UpdateReviewCommand{
		Actor:    Actor{UserID: "user-1", Role: domain.RoleBuyer},
		ReviewID: "rev-1",
		Rating:   &rating,
		Title:    &title,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Rating != 3 || updated.Title != "Fine" {
		t.Fatalf("unexpected review: %+v", updated)
	}

	stored, err := reviewRepo.FindByID(context.Background(), "rev-1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.Rating != 3 {
		t.Fatalf("stored rating = %d, want 3", stored.Rating)
	}

	// (4.0*2 - 5 + 3) / 2 = 3.0
	if got := productRepo.ratings["prod-1"]; math.Abs(got-3.0) > 1e-9 {
		t.Fatalf("aggregate rating = %v, want 3.0", got)
	}
}

func TestReviewUpdateAuthorOnly(t *testing.T) {
	review := domain.Review{ID: "rev-1", ProductID: "prod-1", UserID: "user-1", Rating: 5}
	service, _, _ := newReviewFixture(t, nil, nil, []domain.Review{review})

	rating := 1
	if _, err := service.Update(context.Background(), UpdateReviewCommand{
		Actor:    Actor{UserID: "user-2", Role: domain.RoleBuyer},
		ReviewID: "rev-1",
		Rating:   &rating,
	}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign update: error = %v, want ErrPermissionDenied", err)
	}

	bad := 9
	if _, err := service.Update(context.Background(), UpdateReviewCommand{
		Actor:    Actor{UserID: "user-1", Role: domain.RoleBuyer},
		ReviewID: "rev-1",
		Rating:   &bad,
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("out-of-range rating: error = %v, want ErrInvalidInput", err)
	}

	if _, err := service.Update(context.Background(), UpdateReviewCommand{
		Actor:    Actor{UserID: "user-1", Role: domain.RoleBuyer},
		ReviewID: "missing",
	}); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("missing review: error = %v, want ErrReviewNotFound", err)
	}
}

func TestReviewListForUser(t *testing.T) {
	reviews := []domain.Review{
		{ID: "rev-1", ProductID: "prod-1", UserID: "user-1", Rating: 5},
		{ID: "rev-2", ProductID: "prod-2", UserID: "user-2", Rating: 3},
	}
	service, _, _ := newReviewFixture(t, nil, nil, reviews)

	page, err := service.ListForUser(context.Background(), "user-1", pagination.Params{Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "rev-1" {
		t.Fatalf("got %+v, want only rev-1", page.Items)
	}

	if _, err := service.ListForUser(context.Background(), "  ", pagination.Params{Page: 1, PageSize: 20}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank user: error = %v, want ErrInvalidInput", err)
	}
}

func TestReviewListForProductHydratesAuthors(t *testing.T) {
	review := domain.Review{ID: "rev-1", ProductID: "prod-1", UserID: "user-1", Rating: 5}
	service, _, _ := newReviewFixture(t, nil, nil, []domain.Review{review})

	page, err := service.ListForProduct(context.Background(), "prod-1", pagination.Params{Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("ListForProduct() error = %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("got %d reviews, want 1", len(page.Items))
	}
	if page.Items[0].User == nil || page.Items[0].User.FullName != "Pat Buyer" {
		t.Fatalf("author not hydrated: %+v", page.Items[0].User)
	}
}
