package app

import (
	"context"
	"strings"

	"vendorhub/internal/util"
	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
)

type ShortlistInput struct {
	UserID   string `json:"userId"`
	VendorID string `json:"vendorId" validate:"required"`
	Notes    string `json:"notes" validate:"max=1000"`
}

// ownerFor resolves the user a shortlist call acts on. Only admins may act
// for someone else.
func ownerFor(actor domain.User, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == actor.ID {
		return actor.ID, nil
	}
	if !isAdmin(actor) {
		return "", ErrForbidden
	}
	return userID, nil
}

// AddShortlist saves a vendor for a user. Adding an existing pair returns the
// stored entry with created=false.
func (a *App) AddShortlist(ctx context.Context, actor domain.User, in ShortlistInput) (domain.Shortlist, bool, error) {
	if err := validation.Struct(in); err != nil {
		return domain.Shortlist{}, false, err
	}
	userID, err := ownerFor(actor, in.UserID)
	if err != nil {
		return domain.Shortlist{}, false, err
	}
	item, created, err := a.store.AddShortlist(ctx, domain.Shortlist{
		ID:        util.NewID(),
		UserID:    userID,
		VendorID:  in.VendorID,
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: a.now(),
	})
	if err != nil {
		return domain.Shortlist{}, false, storeErr("add shortlist", err)
	}
	return item, created, nil
}

// RemoveShortlist deletes the pair. Removing an absent pair is not an error.
func (a *App) RemoveShortlist(ctx context.Context, actor domain.User, userID, vendorID string) error {
	owner, err := ownerFor(actor, userID)
	if err != nil {
		return err
	}
	return storeErr("remove shortlist", a.store.RemoveShortlist(ctx, owner, vendorID))
}

func (a *App) IsShortlisted(ctx context.Context, actor domain.User, userID, vendorID string) (bool, error) {
	owner, err := ownerFor(actor, userID)
	if err != nil {
		return false, err
	}
	_, ok, err := a.store.GetShortlist(ctx, owner, vendorID)
	if err != nil {
		return false, storeErr("fetch shortlist", err)
	}
	return ok, nil
}

func (a *App) ListShortlists(ctx context.Context, actor domain.User) ([]domain.Shortlist, error) {
	items, err := a.store.ListShortlists(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("list shortlists", err)
	}
	return items, nil
}
