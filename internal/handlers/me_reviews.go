package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/platform/auth"
	"github.com/marketsquare/api/internal/platform/httpx"
	"github.com/marketsquare/api/internal/services"
)

// UserReviewHandlers serves the authenticated user's own review history.
type UserReviewHandlers struct {
	authn   *auth.Authenticator
	reviews services.ReviewService
}

// NewUserReviewHandlers constructs handlers for the /me review listing.
func NewUserReviewHandlers(authn *auth.Authenticator, reviews services.ReviewService) *UserReviewHandlers {
	return &UserReviewHandlers{
		authn:   authn,
		reviews: reviews,
	}
}

// Routes wires the review history endpoint onto the provided router.
func (h *UserReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOwnReviews)
}

func (h *UserReviewHandlers) listOwnReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	params, ok := parseListParams(w, r)
	if !ok {
		return
	}

	page, err := h.reviews.ListForUser(ctx, identity.UID, params)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	payload := pagePayload[reviewPayload]{
		Items:    make([]reviewPayload, 0, len(page.Items)),
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, review := range page.Items {
		payload.Items = append(payload.Items, buildReviewPayload(review))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}
