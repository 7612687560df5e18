package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"vendorhub/pkg/analytics"
	"vendorhub/pkg/domain"
)

// VendorDashboard is the analytics summary plus recent daily views.
type VendorDashboard struct {
	domain.VendorAnalytics
	DailyViews []analytics.DailyCount `json:"dailyViews"`
}

// VendorAnalytics gathers the dashboard counters concurrently.
func (a *App) VendorAnalytics(ctx context.Context, actor domain.User, vendorID string, days int) (VendorDashboard, error) {
	v, err := a.managedVendor(ctx, actor, vendorID)
	if err != nil {
		return VendorDashboard{}, err
	}
	out := VendorDashboard{VendorAnalytics: domain.VendorAnalytics{
		VendorID:    v.ID,
		ReviewCount: v.ReviewCount,
		Rating:      v.Rating,
		PhotoLimit:  v.PhotoLimit,
	}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	g.Go(func() error {
		n, err := a.views.Views(gctx, v.ID)
		if err != nil {
			return fmt.Errorf("profile views: %w", err)
		}
		out.ProfileViews = n
		return nil
	})
	g.Go(func() error {
		daily, err := a.views.DailyViews(gctx, v.ID, days)
		if err != nil {
			return fmt.Errorf("daily views: %w", err)
		}
		out.DailyViews = daily
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountShortlistsByVendor(gctx, v.ID)
		if err != nil {
			return storeErr("count shortlists", err)
		}
		out.ShortlistCount = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountConversationsByVendor(gctx, v.ID)
		if err != nil {
			return storeErr("count conversations", err)
		}
		out.ConversationCount = n
		return nil
	})
	g.Go(func() error {
		photos, err := a.store.ListVendorPhotos(gctx, v.ID)
		if err != nil {
			return storeErr("list photos", err)
		}
		out.PhotoCount = len(photos)
		return nil
	})
	if err := g.Wait(); err != nil {
		return VendorDashboard{}, err
	}
	return out, nil
}
