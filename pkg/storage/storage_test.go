package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestImageExtension(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":               ".jpg",
		"IMAGE/PNG":                ".png",
		"image/webp; charset=utf8": ".webp",
	}
	for in, want := range cases {
		got, err := ImageExtension(in)
		if err != nil || got != want {
			t.Fatalf("ImageExtension(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ImageExtension("application/pdf"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestPhotoKey(t *testing.T) {
	if got := PhotoKey("v1", "p1", ".jpg"); got != "vendors/v1/photos/p1.jpg" {
		t.Fatalf("photo key = %q", got)
	}
}

func TestMemoryStorePutPresignDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("http://cdn.test")
	if err := m.Put(ctx, "vendors/v1/photos/p1.jpg", strings.NewReader("jpeg"), 4, "image/jpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, ct, ok := m.Get("vendors/v1/photos/p1.jpg")
	if !ok || string(data) != "jpeg" || ct != "image/jpeg" {
		t.Fatalf("get = %q %q %v", data, ct, ok)
	}
	u, err := m.PresignGet(ctx, "vendors/v1/photos/p1.jpg", time.Minute)
	if err != nil || !strings.HasPrefix(u, "http://cdn.test/vendors/v1/photos/p1.jpg?expires=") {
		t.Fatalf("presign = %q, %v", u, err)
	}
	if err := m.Put(ctx, "short", strings.NewReader("ab"), 5, "image/png"); err == nil {
		t.Fatalf("expected size mismatch error")
	}
	if err := m.Delete(ctx, "vendors/v1/photos/p1.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.PresignGet(ctx, "vendors/v1/photos/p1.jpg", time.Minute); err == nil {
		t.Fatalf("presign of deleted object should fail")
	}
}
