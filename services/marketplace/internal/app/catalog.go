package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vendorhub/internal/util"
	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/entitlement"
	"vendorhub/pkg/events"
	"vendorhub/pkg/store"
)

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
	Slug        string `json:"slug" validate:"omitempty,slug,max=120"`
}

// CreateCategory adds a category. The slug is derived from the name when omitted.
func (a *App) CreateCategory(ctx context.Context, actor domain.User, in CategoryInput) (domain.Category, error) {
	if !isAdmin(actor) {
		return domain.Category{}, ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = validation.Slugify(in.Name)
	}
	if err := validation.Struct(in); err != nil {
		return domain.Category{}, err
	}
	if in.Slug == "" {
		return domain.Category{}, validation.Field("slug", "slug", "slug cannot be derived from name")
	}
	c := domain.Category{
		ID:          util.NewID(),
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		ImageURL:    in.ImageURL,
		Slug:        in.Slug,
		CreatedAt:   a.now(),
	}
	if err := a.store.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Category{}, ErrSlugTaken
		}
		return domain.Category{}, storeErr("create category", err)
	}
	return c, nil
}

// ListCategories returns every category. Store failures yield an empty list.
func (a *App) ListCategories(ctx context.Context) []domain.Category {
	items, err := a.store.ListCategories(ctx)
	if err != nil {
		util.LoggerFromContext(ctx).Error("list categories failed", "err", err)
		return []domain.Category{}
	}
	return items
}

func (a *App) GetCategoryBySlug(ctx context.Context, slug string) (domain.Category, error) {
	c, ok, err := a.store.GetCategoryBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return domain.Category{}, storeErr("fetch category", err)
	}
	if !ok {
		return domain.Category{}, ErrNotFound
	}
	return c, nil
}

// SearchVendors runs the vendor query. An invalid price range is a validation
// error; store failures are logged and produce an empty result.
func (a *App) SearchVendors(ctx context.Context, q store.VendorQuery) ([]domain.Vendor, error) {
	q = q.Normalize()
	if q.PriceRange != "" && !validation.ValidPriceRange(q.PriceRange) {
		return nil, validation.Field("priceRange", "pricerange", "priceRange must be one of: $ $$ $$$ $$$$")
	}
	vendors, err := a.store.SearchVendors(ctx, q)
	if err != nil {
		util.LoggerFromContext(ctx).Error("vendor search failed",
			"err", err,
			"search", q.Search,
			"category_id", q.CategoryID,
			"page", q.Page,
			"limit", q.Limit,
		)
		return []domain.Vendor{}, nil
	}
	return vendors, nil
}

// GetVendor returns a vendor and counts a profile view.
func (a *App) GetVendor(ctx context.Context, id string) (domain.Vendor, error) {
	v, ok, err := a.store.GetVendor(ctx, id)
	if err != nil {
		return domain.Vendor{}, storeErr("fetch vendor", err)
	}
	if !ok {
		return domain.Vendor{}, ErrNotFound
	}
	if err := a.views.RecordView(ctx, v.ID); err != nil {
		util.LoggerFromContext(ctx).Warn("record profile view failed", "vendor_id", v.ID, "err", err)
	}
	return v, nil
}

type VendorInput struct {
	Name           string   `json:"name" validate:"required,max=200"`
	Description    string   `json:"description" validate:"max=10000"`
	ImageURL       string   `json:"imageUrl" validate:"omitempty,url"`
	LogoURL        string   `json:"logoUrl" validate:"omitempty,url"`
	CategoryID     string   `json:"categoryId" validate:"required"`
	PriceRange     string   `json:"priceRange" validate:"omitempty,pricerange"`
	Location       string   `json:"location" validate:"max=200"`
	DietaryOptions []string `json:"dietaryOptions" validate:"max=50,dive,required,max=60"`
	CuisineTypes   []string `json:"cuisineTypes" validate:"max=50,dive,required,max=60"`
	ThemeTypes     []string `json:"themeTypes" validate:"max=50,dive,required,max=60"`
}

// CreateVendor lists a new vendor on the free tier. Providers own the vendors
// they create; admins may create unowned vendors.
func (a *App) CreateVendor(ctx context.Context, actor domain.User, in VendorInput) (domain.Vendor, error) {
	if actor.Role != domain.RoleProvider && !isAdmin(actor) {
		return domain.Vendor{}, ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return domain.Vendor{}, err
	}
	if err := a.checkCategory(ctx, in.CategoryID); err != nil {
		return domain.Vendor{}, err
	}
	now := a.now()
	v := domain.Vendor{
		ID:             util.NewID(),
		Name:           in.Name,
		Description:    strings.TrimSpace(in.Description),
		ImageURL:       in.ImageURL,
		LogoURL:        in.LogoURL,
		CategoryID:     in.CategoryID,
		PriceRange:     in.PriceRange,
		Location:       strings.TrimSpace(in.Location),
		DietaryOptions: in.DietaryOptions,
		CuisineTypes:   in.CuisineTypes,
		ThemeTypes:     in.ThemeTypes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if actor.Role == domain.RoleProvider {
		v.OwnerID = actor.ID
	}
	entitlement.Apply(&v, domain.TierFree, domain.SubscriptionActive)
	if err := checkWordCount(v); err != nil {
		return domain.Vendor{}, err
	}
	if err := a.store.CreateVendor(ctx, v); err != nil {
		return domain.Vendor{}, storeErr("create vendor", err)
	}
	return v, nil
}

// VendorPatch carries the profile fields to change. Nil fields are kept.
type VendorPatch struct {
	Name           *string   `json:"name" validate:"omitempty,min=1,max=200"`
	Description    *string   `json:"description" validate:"omitempty,max=10000"`
	ImageURL       *string   `json:"imageUrl" validate:"omitempty,url"`
	LogoURL        *string   `json:"logoUrl" validate:"omitempty,url"`
	CategoryID     *string   `json:"categoryId" validate:"omitempty,min=1"`
	PriceRange     *string   `json:"priceRange" validate:"omitempty,pricerange"`
	Location       *string   `json:"location" validate:"omitempty,max=200"`
	DietaryOptions *[]string `json:"dietaryOptions" validate:"omitempty,max=50,dive,required,max=60"`
	CuisineTypes   *[]string `json:"cuisineTypes" validate:"omitempty,max=50,dive,required,max=60"`
	ThemeTypes     *[]string `json:"themeTypes" validate:"omitempty,max=50,dive,required,max=60"`
}

// UpdateVendor applies a profile patch. The description is held to the word
// count of the vendor's tier.
func (a *App) UpdateVendor(ctx context.Context, actor domain.User, vendorID string, patch VendorPatch) (domain.Vendor, error) {
	v, err := a.managedVendor(ctx, actor, vendorID)
	if err != nil {
		return domain.Vendor{}, err
	}
	if err := validation.Struct(patch); err != nil {
		return domain.Vendor{}, err
	}
	if patch.CategoryID != nil && *patch.CategoryID != v.CategoryID {
		if err := a.checkCategory(ctx, *patch.CategoryID); err != nil {
			return domain.Vendor{}, err
		}
		v.CategoryID = *patch.CategoryID
	}
	setTrimmed(&v.Name, patch.Name)
	setTrimmed(&v.Description, patch.Description)
	setTrimmed(&v.ImageURL, patch.ImageURL)
	setTrimmed(&v.LogoURL, patch.LogoURL)
	setTrimmed(&v.PriceRange, patch.PriceRange)
	setTrimmed(&v.Location, patch.Location)
	if patch.DietaryOptions != nil {
		v.DietaryOptions = *patch.DietaryOptions
	}
	if patch.CuisineTypes != nil {
		v.CuisineTypes = *patch.CuisineTypes
	}
	if patch.ThemeTypes != nil {
		v.ThemeTypes = *patch.ThemeTypes
	}
	if err := checkWordCount(v); err != nil {
		return domain.Vendor{}, err
	}
	v.UpdatedAt = a.now()
	if err := a.store.UpdateVendorProfile(ctx, v); err != nil {
		return domain.Vendor{}, storeErr("update vendor", err)
	}
	return v, nil
}

// DeleteVendor removes a vendor and its photos. Admin only.
func (a *App) DeleteVendor(ctx context.Context, actor domain.User, vendorID string) error {
	if !isAdmin(actor) {
		return ErrForbidden
	}
	photos, err := a.store.ListVendorPhotos(ctx, vendorID)
	if err != nil {
		return storeErr("list photos", err)
	}
	if err := a.store.DeleteVendor(ctx, vendorID); err != nil {
		return storeErr("delete vendor", err)
	}
	for _, p := range photos {
		a.removeObject(ctx, p.StorageKey)
	}
	return nil
}

type SubscriptionInput struct {
	Tier   string `json:"tier" validate:"required"`
	Status string `json:"status"`
}

// SubscriptionChanged is the payload of vendor.subscription.changed.
type SubscriptionChanged struct {
	VendorID       string                    `json:"vendorId"`
	PreviousTier   domain.SubscriptionTier   `json:"previousTier"`
	Tier           domain.SubscriptionTier   `json:"tier"`
	Status         domain.SubscriptionStatus `json:"status"`
	ChangedBy      string                    `json:"changedBy"`
	CataloguePages int                       `json:"cataloguePages"`
}

// ChangeSubscription writes a new tier and status. The entitlement columns
// follow in the same update; a canceled subscription falls back to free.
func (a *App) ChangeSubscription(ctx context.Context, actor domain.User, vendorID string, in SubscriptionInput) (domain.Vendor, error) {
	current, err := a.managedVendor(ctx, actor, vendorID)
	if err != nil {
		return domain.Vendor{}, err
	}
	tier, ok := entitlement.ParseTier(in.Tier)
	if !ok {
		return domain.Vendor{}, validation.Field("tier", "oneof", "tier must be one of: free, basic, pro, premium, premium pro")
	}
	status := domain.SubscriptionActive
	if strings.TrimSpace(in.Status) != "" {
		if status, ok = entitlement.ParseStatus(in.Status); !ok {
			return domain.Vendor{}, validation.Field("status", "oneof", "status must be one of: active, inactive, canceled")
		}
	}
	v, err := a.store.UpdateSubscription(ctx, vendorID, tier, status)
	if err != nil {
		return domain.Vendor{}, storeErr("update subscription", err)
	}
	a.publish(ctx, events.TypeSubscriptionChanged, SubscriptionChanged{
		VendorID:       v.ID,
		PreviousTier:   current.SubscriptionTier,
		Tier:           v.SubscriptionTier,
		Status:         v.SubscriptionStatus,
		ChangedBy:      actor.ID,
		CataloguePages: v.CataloguePages,
	})
	return v, nil
}

func (a *App) checkCategory(ctx context.Context, categoryID string) error {
	_, ok, err := a.store.GetCategory(ctx, categoryID)
	if err != nil {
		return storeErr("fetch category", err)
	}
	if !ok {
		return validation.Field("categoryId", "exists", "categoryId does not match a category")
	}
	return nil
}

func checkWordCount(v domain.Vendor) error {
	if n := validation.WordCount(v.Description); n > v.WordCount {
		return validation.Field("description", "maxwords",
			fmt.Sprintf("description must be at most %d words for the %s tier", v.WordCount, v.SubscriptionTier))
	}
	return nil
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
