package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/pagination"
	"github.com/marketsquare/api/internal/repositories"
)

// ErrProfileNotFound indicates the requested profile does not exist.
var ErrProfileNotFound = errors.New("profile service: profile not found")

// ProfileServiceDeps bundles constructor inputs for the profile service.
type ProfileServiceDeps struct {
	Profiles repositories.ProfileRepository
	Clock    func() time.Time
}

type profileService struct {
	profiles repositories.ProfileRepository
	clock    func() time.Time
}

var _ ProfileService = (*profileService)(nil)

// NewProfileService constructs the profile service.
func NewProfileService(deps ProfileServiceDeps) (ProfileService, error) {
	if deps.Profiles == nil {
		return nil, errors.New("profile service: profile repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &profileService{
		profiles: deps.Profiles,
		clock:    func() time.Time { return clock().UTC() },
	}, nil
}

// EnsureProfile creates or refreshes the profile record backing a verified
// identity. Existing role and profile fields are preserved; the token only
// fills gaps on first sight.
func (s *profileService) EnsureProfile(ctx context.Context, cmd EnsureProfileCommand) (Profile, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Profile{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	existing, err := s.profiles.FindByID(ctx, userID)
	if err != nil && !isRepoNotFound(err) {
		return Profile{}, err
	}

	profile := existing
	profile.ID = userID
	if profile.Email == "" {
		profile.Email = strings.TrimSpace(cmd.Email)
	}
	if profile.FullName == "" {
		profile.FullName = strings.TrimSpace(cmd.FullName)
	}
	if !domain.KnownRole(profile.Role) {
		role := cmd.Role
		if !domain.KnownRole(role) {
			role = domain.RoleBuyer
		}
		profile.Role = role
	}

	return s.profiles.Upsert(ctx, profile)
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, err
	}
	return profile, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (Profile, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Profile{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, err
	}

	if cmd.FullName != nil {
		profile.FullName = strings.TrimSpace(*cmd.FullName)
	}
	if cmd.Phone != nil {
		profile.Phone = strings.TrimSpace(*cmd.Phone)
	}
	if cmd.AvatarURL != nil {
		profile.AvatarURL = strings.TrimSpace(*cmd.AvatarURL)
	}

	return s.profiles.Upsert(ctx, profile)
}

func (s *profileService) ListProfiles(ctx context.Context, actor Actor, params pagination.Params) (domain.Page[Profile], error) {
	if !actor.IsAdmin() {
		return domain.Page[Profile]{}, ErrPermissionDenied
	}
	return s.profiles.List(ctx, params)
}

func (s *profileService) ChangeRole(ctx context.Context, actor Actor, userID string, role Role) (Profile, error) {
	if !actor.IsAdmin() {
		return Profile{}, ErrPermissionDenied
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !domain.KnownRole(role) {
		return Profile{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	updated, err := s.profiles.UpdateRole(ctx, userID, role)
	if err != nil {
		if isRepoNotFound(err) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, err
	}
	return updated, nil
}
