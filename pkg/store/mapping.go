package store

import (
	"encoding/json"
	"strings"

	"github.com/lib/pq"
	"vendorhub/pkg/domain"
)

func optionalID(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return &id
}

func derefID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func stringSet(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	status := domain.UserStatus(m.Status)
	if status == "" {
		status = domain.StatusActive
	}
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func categoryToModel(c domain.Category) CategoryModel {
	return CategoryModel{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		Slug:        c.Slug,
		CreatedAt:   c.CreatedAt,
	}
}

func categoryFromModel(m CategoryModel) domain.Category {
	return domain.Category{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		ImageURL:    m.ImageURL,
		Slug:        m.Slug,
		CreatedAt:   m.CreatedAt,
	}
}

func vendorToModel(v domain.Vendor) VendorModel {
	return VendorModel{
		ID:                 v.ID,
		OwnerID:            optionalID(v.OwnerID),
		Name:               v.Name,
		Description:        v.Description,
		ImageURL:           v.ImageURL,
		LogoURL:            v.LogoURL,
		CategoryID:         optionalID(v.CategoryID),
		PriceRange:         v.PriceRange,
		Rating:             v.Rating,
		ReviewCount:        v.ReviewCount,
		Location:           v.Location,
		DietaryOptions:     stringSet(v.DietaryOptions),
		CuisineTypes:       stringSet(v.CuisineTypes),
		ThemeTypes:         stringSet(v.ThemeTypes),
		SubscriptionTier:   string(v.SubscriptionTier),
		SubscriptionStatus: string(v.SubscriptionStatus),
		CataloguePages:     v.CataloguePages,
		WordCount:          v.WordCount,
		PhotoLimit:         v.PhotoLimit,
		ReviewsEnabled:     v.ReviewsEnabled,
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
}

func vendorFromModel(m VendorModel) domain.Vendor {
	return domain.Vendor{
		ID:                 m.ID,
		OwnerID:            derefID(m.OwnerID),
		Name:               m.Name,
		Description:        m.Description,
		ImageURL:           m.ImageURL,
		LogoURL:            m.LogoURL,
		CategoryID:         derefID(m.CategoryID),
		PriceRange:         m.PriceRange,
		Rating:             m.Rating,
		ReviewCount:        m.ReviewCount,
		Location:           m.Location,
		DietaryOptions:     []string(stringSet(m.DietaryOptions)),
		CuisineTypes:       []string(stringSet(m.CuisineTypes)),
		ThemeTypes:         []string(stringSet(m.ThemeTypes)),
		SubscriptionTier:   domain.SubscriptionTier(m.SubscriptionTier),
		SubscriptionStatus: domain.SubscriptionStatus(m.SubscriptionStatus),
		CataloguePages:     m.CataloguePages,
		WordCount:          m.WordCount,
		PhotoLimit:         m.PhotoLimit,
		ReviewsEnabled:     m.ReviewsEnabled,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func photoToModel(p domain.VendorPhoto) VendorPhotoModel {
	return VendorPhotoModel{
		ID:          p.ID,
		VendorID:    p.VendorID,
		StorageKey:  p.StorageKey,
		ContentType: p.ContentType,
		SizeBytes:   p.SizeBytes,
		CreatedAt:   p.CreatedAt,
	}
}

func photoFromModel(m VendorPhotoModel) domain.VendorPhoto {
	return domain.VendorPhoto{
		ID:          m.ID,
		VendorID:    m.VendorID,
		StorageKey:  m.StorageKey,
		ContentType: m.ContentType,
		SizeBytes:   m.SizeBytes,
		CreatedAt:   m.CreatedAt,
	}
}

func shortlistToModel(s domain.Shortlist) ShortlistModel {
	return ShortlistModel{ID: s.ID, UserID: s.UserID, VendorID: s.VendorID, Notes: s.Notes, CreatedAt: s.CreatedAt}
}

func shortlistFromModel(m ShortlistModel) domain.Shortlist {
	return domain.Shortlist{ID: m.ID, UserID: m.UserID, VendorID: m.VendorID, Notes: m.Notes, CreatedAt: m.CreatedAt}
}

func taskToModel(t domain.Task) TaskModel {
	return TaskModel{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Status:      string(t.Status),
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func taskFromModel(m TaskModel) domain.Task {
	return domain.Task{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		DueDate:     m.DueDate,
		Status:      domain.TaskStatus(m.Status),
		Completed:   m.Completed,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func timelineToModel(e domain.TimelineEvent) TimelineEventModel {
	return TimelineEventModel{
		ID:          e.ID,
		UserID:      e.UserID,
		Title:       e.Title,
		Description: e.Description,
		StartsAt:    e.StartsAt,
		EndsAt:      e.EndsAt,
		Completed:   e.Completed,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func timelineFromModel(m TimelineEventModel) domain.TimelineEvent {
	return domain.TimelineEvent{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		StartsAt:    m.StartsAt,
		EndsAt:      m.EndsAt,
		Completed:   m.Completed,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func calendarToModel(e domain.CalendarEvent) CalendarEventModel {
	return CalendarEventModel{
		ID:        e.ID,
		VendorID:  e.VendorID,
		Title:     e.Title,
		StartsAt:  e.StartsAt,
		EndsAt:    e.EndsAt,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
	}
}

func calendarFromModel(m CalendarEventModel) domain.CalendarEvent {
	return domain.CalendarEvent{
		ID:        m.ID,
		VendorID:  m.VendorID,
		Title:     m.Title,
		StartsAt:  m.StartsAt,
		EndsAt:    m.EndsAt,
		Status:    domain.CalendarStatus(m.Status),
		CreatedAt: m.CreatedAt,
	}
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:           r.ID,
		UserID:       r.UserID,
		VendorID:     r.VendorID,
		Rating:       r.Rating,
		Title:        r.Title,
		ReviewText:   r.ReviewText,
		Status:       string(r.Status),
		AdminReply:   r.AdminReply,
		AdminReplyAt: r.AdminReplyAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:           m.ID,
		UserID:       m.UserID,
		VendorID:     m.VendorID,
		Rating:       m.Rating,
		Title:        m.Title,
		ReviewText:   m.ReviewText,
		Status:       domain.ReviewStatus(m.Status),
		AdminReply:   m.AdminReply,
		AdminReplyAt: m.AdminReplyAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:            c.ID,
		HostID:        c.HostID,
		ProviderID:    c.ProviderID,
		VendorID:      optionalID(c.VendorID),
		Status:        string(c.Status),
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:            m.ID,
		HostID:        m.HostID,
		ProviderID:    m.ProviderID,
		VendorID:      derefID(m.VendorID),
		Status:        domain.ConversationStatus(m.Status),
		LastMessageAt: m.LastMessageAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		IsRead:         msg.IsRead,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

type campaignAudience struct {
	Role string `json:"role,omitempty"`
}

func campaignToModel(c domain.Campaign) CampaignModel {
	audience, _ := json.Marshal(campaignAudience{Role: string(c.AudienceRole)})
	return CampaignModel{
		ID:             c.ID,
		Channel:        string(c.Channel),
		Subject:        c.Subject,
		Body:           c.Body,
		Audience:       audience,
		RecipientCount: c.RecipientCount,
		CreatedBy:      c.CreatedBy,
		CreatedAt:      c.CreatedAt,
	}
}

func campaignFromModel(m CampaignModel) domain.Campaign {
	var audience campaignAudience
	if len(m.Audience) > 0 {
		_ = json.Unmarshal(m.Audience, &audience)
	}
	return domain.Campaign{
		ID:             m.ID,
		Channel:        domain.NotificationChannel(m.Channel),
		Subject:        m.Subject,
		Body:           m.Body,
		AudienceRole:   domain.UserRole(audience.Role),
		RecipientCount: m.RecipientCount,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}
