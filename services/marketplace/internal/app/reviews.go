package app

import (
	"context"
	"strings"

	"vendorhub/internal/util"
	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/events"
)

type ReviewInput struct {
	UserID     string `json:"userId"`
	VendorID   string `json:"vendorId" validate:"required"`
	Rating     int    `json:"rating" validate:"required,gte=1,lte=5"`
	Title      string `json:"title" validate:"max=200"`
	ReviewText string `json:"reviewText" validate:"required,maxwords=120"`
}

// ReviewCreated is the payload of review.created.
type ReviewCreated struct {
	ReviewID    string  `json:"reviewId"`
	VendorID    string  `json:"vendorId"`
	UserID      string  `json:"userId"`
	Rating      int     `json:"rating"`
	VendorScore float64 `json:"vendorRating"`
	ReviewCount int     `json:"reviewCount"`
}

// CreateReview stores a pending review and refreshes the vendor aggregate in
// the same transaction. Vendors below premium reject reviews without any
// state change.
func (a *App) CreateReview(ctx context.Context, actor domain.User, in ReviewInput) (domain.Review, domain.Vendor, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.ReviewText = strings.TrimSpace(in.ReviewText)
	if err := validation.Struct(in); err != nil {
		return domain.Review{}, domain.Vendor{}, err
	}
	if in.UserID != "" && in.UserID != actor.ID {
		return domain.Review{}, domain.Vendor{}, ErrForbidden
	}
	now := a.now()
	r := domain.Review{
		ID:         util.NewID(),
		UserID:     actor.ID,
		VendorID:   in.VendorID,
		Rating:     in.Rating,
		Title:      in.Title,
		ReviewText: in.ReviewText,
		Status:     domain.ReviewPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	v, err := a.store.CreateReview(ctx, r)
	if err != nil {
		return domain.Review{}, domain.Vendor{}, storeErr("create review", err)
	}
	a.publish(ctx, events.TypeReviewCreated, ReviewCreated{
		ReviewID:    r.ID,
		VendorID:    v.ID,
		UserID:      r.UserID,
		Rating:      r.Rating,
		VendorScore: v.Rating,
		ReviewCount: v.ReviewCount,
	})
	return r, v, nil
}

// ListReviews returns the vendor's non-rejected reviews, newest first.
// Store failures yield an empty list.
func (a *App) ListReviews(ctx context.Context, vendorID string) []domain.Review {
	items, err := a.store.ListReviewsByVendor(ctx, vendorID)
	if err != nil {
		util.LoggerFromContext(ctx).Error("list reviews failed", "vendor_id", vendorID, "err", err)
		return []domain.Review{}
	}
	return items
}

type ModerationInput struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
}

// ModerateReview sets a review's status. The vendor aggregate is recomputed
// by the store.
func (a *App) ModerateReview(ctx context.Context, actor domain.User, reviewID string, in ModerationInput) (domain.Review, error) {
	if !isAdmin(actor) {
		return domain.Review{}, ErrForbidden
	}
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if err := validation.Struct(in); err != nil {
		return domain.Review{}, err
	}
	r, err := a.store.SetReviewStatus(ctx, reviewID, domain.ReviewStatus(in.Status))
	if err != nil {
		return domain.Review{}, storeErr("moderate review", err)
	}
	return r, nil
}

type ReplyInput struct {
	Reply string `json:"reply" validate:"required,max=2000"`
}

// ReplyToReview sets or replaces the admin reply. A reply cannot be cleared.
func (a *App) ReplyToReview(ctx context.Context, actor domain.User, reviewID string, in ReplyInput) (domain.Review, error) {
	if !isAdmin(actor) {
		return domain.Review{}, ErrForbidden
	}
	in.Reply = strings.TrimSpace(in.Reply)
	if err := validation.Struct(in); err != nil {
		return domain.Review{}, err
	}
	r, err := a.store.SetReviewReply(ctx, reviewID, in.Reply, a.now())
	if err != nil {
		return domain.Review{}, storeErr("reply to review", err)
	}
	return r, nil
}
