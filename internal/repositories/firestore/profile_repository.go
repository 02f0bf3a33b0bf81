package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	domain "github.com/marketsquare/api/internal/domain"
	pfirestore "github.com/marketsquare/api/internal/platform/firestore"
	"github.com/marketsquare/api/internal/platform/pagination"
)

const profileCollection = "profiles"

// ProfileRepository persists shopper and seller profiles in Firestore.
type ProfileRepository struct {
	base *pfirestore.BaseRepository[profileDocument]
}

// NewProfileRepository constructs a Firestore-backed profile repository.
func NewProfileRepository(provider *pfirestore.Provider) (*ProfileRepository, error) {
	if provider == nil {
		return nil, errors.New("profile repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[profileDocument](provider, profileCollection, nil, nil)
	return &ProfileRepository{base: base}, nil
}

// Upsert writes the profile document keyed by auth UID.
func (r *ProfileRepository) Upsert(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	if r == nil || r.base == nil {
		return domain.Profile{}, errors.New("profile repository not initialised")
	}
	if strings.TrimSpace(profile.ID) == "" {
		return domain.Profile{}, errors.New("profile id is required")
	}

	now := time.Now().UTC()
	doc := fromDomainProfile(profile, now)
	if _, err := r.base.Set(ctx, profile.ID, doc); err != nil {
		return domain.Profile{}, err
	}

	saved := toDomainProfile(doc)
	saved.ID = profile.ID
	return saved, nil
}

// FindByID loads the profile by UID.
func (r *ProfileRepository) FindByID(ctx context.Context, userID string) (domain.Profile, error) {
	if r == nil || r.base == nil {
		return domain.Profile{}, errors.New("profile repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.Profile{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}

	profile := toDomainProfile(doc.Data)
	profile.ID = doc.ID
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = doc.CreateTime
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = doc.UpdateTime
	}
	return profile, nil
}

// UpdateRole sets the role claim mirrored on the profile document.
func (r *ProfileRepository) UpdateRole(ctx context.Context, userID string, role domain.Role) (domain.Profile, error) {
	if r == nil || r.base == nil {
		return domain.Profile{}, errors.New("profile repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.Profile{}, errors.New("user id is required")
	}

	updates := []firestore.Update{
		{Path: "role", Value: string(role)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	if _, err := r.base.Update(ctx, userID, updates); err != nil {
		return domain.Profile{}, err
	}
	return r.FindByID(ctx, userID)
}

// List returns profiles ordered by creation time, newest first.
func (r *ProfileRepository) List(ctx context.Context, params pagination.Params) (domain.Page[domain.Profile], error) {
	if r == nil || r.base == nil {
		return domain.Page[domain.Profile]{}, errors.New("profile repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc).
			Offset(params.Offset()).
			Limit(params.PageSize)
	})
	if err != nil {
		return domain.Page[domain.Profile]{}, err
	}

	items := make([]domain.Profile, 0, len(docs))
	for _, doc := range docs {
		profile := toDomainProfile(doc.Data)
		profile.ID = doc.ID
		items = append(items, profile)
	}
	return domain.Page[domain.Profile]{Items: items, Page: params.Page, PageSize: params.PageSize}, nil
}

type profileDocument struct {
	Email     string    `firestore:"email"`
	FullName  string    `firestore:"fullName"`
	Phone     string    `firestore:"phone"`
	Role      string    `firestore:"role"`
	AvatarURL string    `firestore:"avatarUrl"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func toDomainProfile(doc profileDocument) domain.Profile {
	role := domain.Role(strings.ToLower(strings.TrimSpace(doc.Role)))
	if !domain.KnownRole(role) {
		role = domain.RoleBuyer
	}
	return domain.Profile{
		Email:     strings.TrimSpace(doc.Email),
		FullName:  strings.TrimSpace(doc.FullName),
		Phone:     strings.TrimSpace(doc.Phone),
		Role:      role,
		AvatarURL: strings.TrimSpace(doc.AvatarURL),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func fromDomainProfile(profile domain.Profile, now time.Time) profileDocument {
	role := profile.Role
	if !domain.KnownRole(role) {
		role = domain.RoleBuyer
	}
	doc := profileDocument{
		Email:     strings.ToLower(strings.TrimSpace(profile.Email)),
		FullName:  strings.TrimSpace(profile.FullName),
		Phone:     strings.TrimSpace(profile.Phone),
		Role:      string(role),
		AvatarURL: strings.TrimSpace(profile.AvatarURL),
		CreatedAt: profile.CreatedAt,
		UpdatedAt: now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}
