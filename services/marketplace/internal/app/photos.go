package app

import (
	"context"
	"errors"
	"io"

	"vendorhub/internal/util"
	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/storage"
)

// PhotoUpload is one image received from a client.
type PhotoUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// UploadPhoto stores an image for the vendor. The tier photo limit is checked
// before the upload and enforced again by the store.
func (a *App) UploadPhoto(ctx context.Context, actor domain.User, vendorID string, up PhotoUpload) (domain.VendorPhoto, error) {
	v, err := a.managedVendor(ctx, actor, vendorID)
	if err != nil {
		return domain.VendorPhoto{}, err
	}
	ext, err := storage.ImageExtension(up.ContentType)
	if err != nil {
		return domain.VendorPhoto{}, validation.Field("file", "contenttype", "file must be a jpeg, png, webp or gif image")
	}
	if up.Size <= 0 || up.Size > a.maxPhotoBytes {
		return domain.VendorPhoto{}, validation.Field("file", "size", "file is empty or too large")
	}
	existing, err := a.store.ListVendorPhotos(ctx, v.ID)
	if err != nil {
		return domain.VendorPhoto{}, storeErr("list photos", err)
	}
	if len(existing) >= v.PhotoLimit {
		return domain.VendorPhoto{}, ErrPhotoLimit
	}

	photo := domain.VendorPhoto{
		ID:          util.NewID(),
		VendorID:    v.ID,
		ContentType: up.ContentType,
		SizeBytes:   up.Size,
		CreatedAt:   a.now(),
	}
	photo.StorageKey = storage.PhotoKey(v.ID, photo.ID, ext)
	if err := a.objects.Put(ctx, photo.StorageKey, up.Reader, up.Size, up.ContentType); err != nil {
		return domain.VendorPhoto{}, err
	}
	if err := a.store.AddVendorPhoto(ctx, photo); err != nil {
		a.removeObject(ctx, photo.StorageKey)
		return domain.VendorPhoto{}, storeErr("add photo", err)
	}
	a.presign(ctx, &photo)
	return photo, nil
}

// ListPhotos returns a vendor's photos with short-lived download URLs.
func (a *App) ListPhotos(ctx context.Context, vendorID string) ([]domain.VendorPhoto, error) {
	photos, err := a.store.ListVendorPhotos(ctx, vendorID)
	if err != nil {
		return nil, storeErr("list photos", err)
	}
	for i := range photos {
		a.presign(ctx, &photos[i])
	}
	return photos, nil
}

func (a *App) DeletePhoto(ctx context.Context, actor domain.User, vendorID, photoID string) error {
	if _, err := a.managedVendor(ctx, actor, vendorID); err != nil {
		return err
	}
	p, ok, err := a.store.GetVendorPhoto(ctx, photoID)
	if err != nil {
		return storeErr("fetch photo", err)
	}
	if !ok || p.VendorID != vendorID {
		return ErrNotFound
	}
	if err := a.store.DeleteVendorPhoto(ctx, photoID); err != nil {
		return storeErr("delete photo", err)
	}
	a.removeObject(ctx, p.StorageKey)
	return nil
}

func (a *App) presign(ctx context.Context, p *domain.VendorPhoto) {
	u, err := a.objects.PresignGet(ctx, p.StorageKey, a.photoURLExpiry)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("presign photo failed", "photo_id", p.ID, "err", err)
		return
	}
	p.URL = u
}

// removeObject deletes a stored object, logging failures. Orphaned objects are
// harmless.
func (a *App) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := a.objects.Delete(ctx, key); err != nil && !errors.Is(err, context.Canceled) {
		util.LoggerFromContext(ctx).Warn("delete object failed", "key", key, "err", err)
	}
}
