package app

import (
	"context"
	"strings"

	"vendorhub/internal/util"
	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/queue"
)

type CampaignInput struct {
	Channel string `json:"channel" validate:"required,oneof=email sms whatsapp"`
	Subject string `json:"subject" validate:"max=200"`
	Body    string `json:"body" validate:"required,max=5000"`
	Role    string `json:"role" validate:"omitempty,oneof=host provider admin"`
}

// CreateCampaign queues one notification per active recipient, in batches,
// and records the campaign. Admin only.
func (a *App) CreateCampaign(ctx context.Context, actor domain.User, in CampaignInput) (domain.Campaign, error) {
	if !isAdmin(actor) {
		return domain.Campaign{}, ErrForbidden
	}
	in.Channel = strings.ToLower(strings.TrimSpace(in.Channel))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Body = strings.TrimSpace(in.Body)
	if err := validation.Struct(in); err != nil {
		return domain.Campaign{}, err
	}
	if in.Channel == string(domain.ChannelEmail) && in.Subject == "" {
		return domain.Campaign{}, validation.Field("subject", "required", "subject is required for email campaigns")
	}
	if a.notifications == nil {
		return domain.Campaign{}, ErrNotificationsDisabled
	}
	users, err := a.store.ListUsers(ctx, domain.UserRole(in.Role))
	if err != nil {
		return domain.Campaign{}, storeErr("list recipients", err)
	}

	c := domain.Campaign{
		ID:           util.NewID(),
		Channel:      domain.NotificationChannel(in.Channel),
		Subject:      in.Subject,
		Body:         in.Body,
		AudienceRole: domain.UserRole(in.Role),
		CreatedBy:    actor.ID,
		CreatedAt:    a.now(),
	}
	batch := make([]queue.Notification, 0, a.campaignBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := a.notifications.EnqueueBatch(ctx, batch); err != nil {
			return err
		}
		c.RecipientCount += len(batch)
		batch = batch[:0]
		return nil
	}
	for _, u := range users {
		if u.Status != domain.StatusActive {
			continue
		}
		batch = append(batch, queue.Notification{
			Kind:        queue.KindCampaign,
			Channel:     c.Channel,
			RecipientID: u.ID,
			Address:     u.Email,
			Subject:     c.Subject,
			Body:        c.Body,
			CampaignID:  c.ID,
		})
		if len(batch) == a.campaignBatch {
			if err := flush(); err != nil {
				return domain.Campaign{}, err
			}
		}
	}
	if err := flush(); err != nil {
		return domain.Campaign{}, err
	}
	if err := a.store.CreateCampaign(ctx, c); err != nil {
		return domain.Campaign{}, storeErr("record campaign", err)
	}
	util.LoggerFromContext(ctx).Info("campaign queued", "campaign_id", c.ID, "channel", c.Channel, "recipients", c.RecipientCount)
	return c, nil
}

func (a *App) ListCampaigns(ctx context.Context, actor domain.User) ([]domain.Campaign, error) {
	if !isAdmin(actor) {
		return nil, ErrForbidden
	}
	items, err := a.store.ListCampaigns(ctx)
	if err != nil {
		return nil, storeErr("list campaigns", err)
	}
	return items, nil
}
