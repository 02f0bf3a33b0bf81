package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/storage"
)

type fakeBucket struct {
	objects map[string]string
	deleted []string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string]string)}
}

func (b *fakeBucket) Write(ctx context.Context, object, contentType, cacheControl string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.objects[object] = string(data)
	return nil
}

func (b *fakeBucket) Delete(ctx context.Context, object string) error {
	if _, ok := b.objects[object]; !ok {
		return errors.New("object not found")
	}
	delete(b.objects, object)
	b.deleted = append(b.deleted, object)
	return nil
}

func newMediaFixture(t *testing.T) (MediaService, *fakeBucket) {
	t.Helper()
	bucket := newFakeBucket()
	store, err := storage.NewImageStore(storage.ImageStoreDeps{
		Bucket:     bucket,
		BucketName: "marketsquare-images",
		Now:        func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewImageStore() error = %v", err)
	}
	service, err := NewMediaService(MediaServiceDeps{Images: store})
	if err != nil {
		t.Fatalf("NewMediaService() error = %v", err)
	}
	return service, bucket
}

func TestMediaUploadNamespacesByUploader(t *testing.T) {
	service, bucket := newMediaFixture(t)

	url, err := service.UploadProductImage(context.Background(), UploadImageCommand{
		Actor:       Actor{UserID: "seller-1", Role: domain.RoleSeller},
		Filename:    "bowl.jpg",
		ContentType: "image/jpeg",
		Size:        4,
		Body:        strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("UploadProductImage() error = %v", err)
	}
	if !strings.Contains(url, "/seller-1/") {
		t.Fatalf("url %q not namespaced by uploader", url)
	}
	if !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("url %q missing extension", url)
	}
	if len(bucket.objects) != 1 {
		t.Fatalf("stored %d objects, want 1", len(bucket.objects))
	}
}

func TestMediaUploadRequiresSellerRole(t *testing.T) {
	service, _ := newMediaFixture(t)

	_, err := service.UploadProductImage(context.Background(), UploadImageCommand{
		Actor:       Actor{UserID: "user-1", Role: domain.RoleBuyer},
		Filename:    "bowl.jpg",
		ContentType: "image/jpeg",
		Body:        strings.NewReader("data"),
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("UploadProductImage() error = %v, want ErrPermissionDenied", err)
	}
}

func TestMediaDeleteEnforcesOwnership(t *testing.T) {
	service, _ := newMediaFixture(t)

	url, err := service.UploadProductImage(context.Background(), UploadImageCommand{
		Actor:       Actor{UserID: "seller-1", Role: domain.RoleSeller},
		Filename:    "bowl.jpg",
		ContentType: "image/jpeg",
		Size:        4,
		Body:        strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("UploadProductImage() error = %v", err)
	}

	if err := service.DeleteProductImage(context.Background(), Actor{UserID: "seller-2", Role: domain.RoleSeller}, url); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign delete: error = %v, want ErrPermissionDenied", err)
	}
	if err := service.DeleteProductImage(context.Background(), Actor{UserID: "seller-1", Role: domain.RoleSeller}, url); err != nil {
		t.Fatalf("owner delete: error = %v", err)
	}
}

func TestMediaDeleteAdminBypassesOwnership(t *testing.T) {
	service, bucket := newMediaFixture(t)

	url, err := service.UploadProductImage(context.Background(), UploadImageCommand{
		Actor:       Actor{UserID: "seller-1", Role: domain.RoleSeller},
		Filename:    "bowl.png",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("UploadProductImage() error = %v", err)
	}

	if err := service.DeleteProductImage(context.Background(), Actor{UserID: "admin-1", Role: domain.RoleAdmin}, url); err != nil {
		t.Fatalf("admin delete: error = %v", err)
	}
	if len(bucket.objects) != 0 {
		t.Fatalf("object not removed: %v", bucket.objects)
	}
}
