package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/storage"
)

// MediaServiceDeps bundles constructor inputs for the media service.
type MediaServiceDeps struct {
	Images *storage.ImageStore
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type mediaService struct {
	images *storage.ImageStore
	logger func(context.Context, string, map[string]any)
}

var _ MediaService = (*mediaService)(nil)

// NewMediaService constructs the media service.
func NewMediaService(deps MediaServiceDeps) (MediaService, error) {
	if deps.Images == nil {
		return nil, errors.New("media service: image store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &mediaService{
		images: deps.Images,
		logger: logger,
	}, nil
}

// UploadProductImage streams a seller's image into the public bucket. The
// object path is namespaced by the uploader so sellers cannot collide.
func (s *mediaService) UploadProductImage(ctx context.Context, cmd UploadImageCommand) (string, error) {
	if cmd.Actor.Role != domain.RoleSeller && !cmd.Actor.IsAdmin() {
		return "", ErrPermissionDenied
	}
	ownerID := strings.TrimSpace(cmd.Actor.UserID)
	if ownerID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	publicURL, err := s.images.Upload(ctx, storage.UploadInput{
		OwnerID:     ownerID,
		Filename:    cmd.Filename,
		ContentType: cmd.ContentType,
		Size:        cmd.Size,
		Body:        cmd.Body,
	})
	if err != nil {
		return "", err
	}

	s.logger(ctx, "media.image.uploaded", map[string]any{
		"ownerId": ownerID,
		"url":     publicURL,
	})
	return publicURL, nil
}

// DeleteProductImage removes an uploaded image. Only the owning seller or an
// admin may delete; ownership is read off the object path prefix.
func (s *mediaService) DeleteProductImage(ctx context.Context, actor Actor, publicURL string) error {
	if actor.Role != domain.RoleSeller && !actor.IsAdmin() {
		return ErrPermissionDenied
	}
	publicURL = strings.TrimSpace(publicURL)
	if publicURL == "" {
		return fmt.Errorf("%w: image url is required", ErrInvalidInput)
	}

	if !actor.IsAdmin() {
		owner := strings.TrimSpace(actor.UserID)
		if owner == "" || !strings.Contains(publicURL, "/"+owner+"/") {
			return ErrPermissionDenied
		}
	}

	if err := s.images.Delete(ctx, publicURL); err != nil {
		return err
	}

	s.logger(ctx, "media.image.deleted", map[string]any{
		"actorId": actor.UserID,
		"url":     publicURL,
	})
	return nil
}
