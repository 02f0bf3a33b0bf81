package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const (
	defaultMaxImageSize  = 10 << 20
	defaultCacheControl  = "public, max-age=86400"
	publicHostPrefix     = "https://storage.googleapis.com"
	defaultObjectTimeout = 30 * time.Second
)

var (
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidOwner       = errors.New("storage: owner id is required")
	errEmptyBody          = errors.New("storage: image body is required")
	errContentTypeMissing = errors.New("storage: content type is required")
	errContentTypeDenied  = errors.New("storage: content type not allowed")
	errImageTooLarge      = errors.New("storage: image exceeds maximum size")
	errForeignURL         = errors.New("storage: url does not belong to the images bucket")
)

// IsRejected reports whether the error describes a problem with the caller's
// input rather than a backend failure.
func IsRejected(err error) bool {
	for _, sentinel := range []error{
		errInvalidOwner,
		errEmptyBody,
		errContentTypeMissing,
		errContentTypeDenied,
		errImageTooLarge,
		errForeignURL,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// Bucket abstracts object writes and deletes so the store can be exercised
// without a live GCS backend.
type Bucket interface {
	Write(ctx context.Context, object, contentType, cacheControl string, body io.Reader) error
	Delete(ctx context.Context, object string) error
}

// NewGCSBucket wraps a *storage.BucketHandle as a Bucket.
func NewGCSBucket(handle *gcs.BucketHandle) Bucket {
	return &gcsBucket{handle: handle}
}

type gcsBucket struct {
	handle *gcs.BucketHandle
}

func (b *gcsBucket) Write(ctx context.Context, object, contentType, cacheControl string, body io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectTimeout)
	defer cancel()

	w := b.handle.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = cacheControl
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBucket) Delete(ctx context.Context, object string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectTimeout)
	defer cancel()
	return b.handle.Object(object).Delete(ctx)
}

// ImageStore uploads product imagery to a publicly readable bucket and
// returns stable public URLs.
type ImageStore struct {
	bucket       Bucket
	bucketName   string
	baseURL      string
	allowedTypes []string
	maxSize      int64
	now          func() time.Time
}

// ImageStoreDeps enumerates the dependencies required by NewImageStore.
type ImageStoreDeps struct {
	Bucket        Bucket
	BucketName    string
	PublicBaseURL string
	AllowedTypes  []string
	MaxSize       int64
	Now           func() time.Time
}

// NewImageStore validates the dependencies and constructs an ImageStore.
func NewImageStore(deps ImageStoreDeps) (*ImageStore, error) {
	if deps.Bucket == nil {
		return nil, errors.New("storage: bucket is required")
	}
	bucketName := strings.TrimSpace(deps.BucketName)
	if bucketName == "" {
		return nil, errInvalidBucket
	}

	baseURL := strings.TrimRight(strings.TrimSpace(deps.PublicBaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s/%s", publicHostPrefix, bucketName)
	}

	allowed := deps.AllowedTypes
	if len(allowed) == 0 {
		allowed = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
	}

	maxSize := deps.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxImageSize
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &ImageStore{
		bucket:       deps.Bucket,
		bucketName:   bucketName,
		baseURL:      baseURL,
		allowedTypes: allowed,
		maxSize:      maxSize,
		now:          func() time.Time { return now().UTC() },
	}, nil
}

// UploadInput describes an image to store.
type UploadInput struct {
	OwnerID     string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload stores the image under <ownerID>/<timestamp>.<ext> and returns its
// public URL.
func (s *ImageStore) Upload(ctx context.Context, input UploadInput) (string, error) {
	owner := strings.TrimSpace(input.OwnerID)
	if owner == "" {
		return "", errInvalidOwner
	}
	if input.Body == nil {
		return "", errEmptyBody
	}
	contentType := strings.ToLower(strings.TrimSpace(input.ContentType))
	if contentType == "" {
		return "", errContentTypeMissing
	}
	if !contentTypeAllowed(contentType, s.allowedTypes) {
		return "", errContentTypeDenied
	}
	if input.Size > s.maxSize {
		return "", errImageTooLarge
	}

	object := s.objectPath(owner, input.Filename, contentType)

	body := io.LimitReader(input.Body, s.maxSize+1)
	counted := &countingReader{r: body}
	if err := s.bucket.Write(ctx, object, contentType, defaultCacheControl, counted); err != nil {
		return "", fmt.Errorf("storage: upload image: %w", err)
	}
	if counted.n > s.maxSize {
		// The object landed oversized; remove it rather than serve it.
		_ = s.bucket.Delete(ctx, object)
		return "", errImageTooLarge
	}

	return s.baseURL + "/" + object, nil
}

// Delete removes the object referenced by a previously returned public URL.
// URLs pointing outside the images bucket are rejected.
func (s *ImageStore) Delete(ctx context.Context, publicURL string) error {
	object, err := s.objectFromURL(publicURL)
	if err != nil {
		return err
	}
	if err := s.bucket.Delete(ctx, object); err != nil {
		return fmt.Errorf("storage: delete image: %w", err)
	}
	return nil
}

func (s *ImageStore) objectPath(owner, filename, contentType string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = extensionForContentType(contentType)
	}
	return fmt.Sprintf("%s/%d.%s", owner, s.now().UnixMilli(), ext)
}

func (s *ImageStore) objectFromURL(publicURL string) (string, error) {
	trimmed := strings.TrimSpace(publicURL)
	if trimmed == "" {
		return "", errForeignURL
	}
	if strings.HasPrefix(trimmed, s.baseURL+"/") {
		object := strings.TrimPrefix(trimmed, s.baseURL+"/")
		if object == "" {
			return "", errForeignURL
		}
		return object, nil
	}

	// Accept canonical storage.googleapis.com URLs even when a CDN base URL
	// is configured.
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", errForeignURL
	}
	prefix := "/" + s.bucketName + "/"
	if parsed.Host == "storage.googleapis.com" && strings.HasPrefix(parsed.Path, prefix) {
		object := strings.TrimPrefix(parsed.Path, prefix)
		if object == "" {
			return "", errForeignURL
		}
		return object, nil
	}
	return "", errForeignURL
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if candidate == "*" {
			return true
		}
		if strings.HasSuffix(candidate, "/*") {
			if strings.HasPrefix(contentType, strings.TrimSuffix(candidate, "*")) {
				return true
			}
			continue
		}
		if contentType == candidate {
			return true
		}
	}
	return false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
