package store

import (
	"context"
	"errors"
	"time"

	"vendorhub/pkg/domain"
)

var (
	// ErrNotFound is returned by mutations whose target row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("store: conflict")
	// ErrUnavailable means the backend could not serve the call in time.
	// Callers may retry.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrReviewsDisabled is returned when a review targets a vendor whose tier
	// does not include reviews.
	ErrReviewsDisabled = errors.New("store: reviews disabled for vendor")
	// ErrPhotoLimit is returned when a vendor already holds photoLimit photos.
	ErrPhotoLimit = errors.New("store: photo limit reached")
)

// Store defines persistence for the marketplace. Lookups return
// (value, found, error); a missing row is not an error.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	ListUsers(ctx context.Context, role domain.UserRole) ([]domain.User, error)
	UserCount(ctx context.Context) (int, error)

	// categories
	CreateCategory(ctx context.Context, c domain.Category) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (domain.Category, bool, error)
	GetCategoryBySlug(ctx context.Context, slug string) (domain.Category, bool, error)

	// vendors
	CreateVendor(ctx context.Context, v domain.Vendor) error
	UpdateVendorProfile(ctx context.Context, v domain.Vendor) error
	GetVendor(ctx context.Context, id string) (domain.Vendor, bool, error)
	DeleteVendor(ctx context.Context, id string) error
	SearchVendors(ctx context.Context, q VendorQuery) ([]domain.Vendor, error)
	UpdateSubscription(ctx context.Context, vendorID string, tier domain.SubscriptionTier, status domain.SubscriptionStatus) (domain.Vendor, error)

	// photos
	AddVendorPhoto(ctx context.Context, p domain.VendorPhoto) error
	GetVendorPhoto(ctx context.Context, id string) (domain.VendorPhoto, bool, error)
	ListVendorPhotos(ctx context.Context, vendorID string) ([]domain.VendorPhoto, error)
	DeleteVendorPhoto(ctx context.Context, id string) error

	// shortlists
	AddShortlist(ctx context.Context, s domain.Shortlist) (domain.Shortlist, bool, error)
	RemoveShortlist(ctx context.Context, userID, vendorID string) error
	GetShortlist(ctx context.Context, userID, vendorID string) (domain.Shortlist, bool, error)
	ListShortlists(ctx context.Context, userID string) ([]domain.Shortlist, error)
	CountShortlistsByVendor(ctx context.Context, vendorID string) (int, error)

	// planning
	CreateTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, id string) (domain.Task, bool, error)
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error

	CreateTimelineEvent(ctx context.Context, e domain.TimelineEvent) error
	GetTimelineEvent(ctx context.Context, id string) (domain.TimelineEvent, bool, error)
	ListTimelineEvents(ctx context.Context, userID string) ([]domain.TimelineEvent, error)
	UpdateTimelineEvent(ctx context.Context, e domain.TimelineEvent) error
	DeleteTimelineEvent(ctx context.Context, id string) error

	CreateCalendarEvent(ctx context.Context, e domain.CalendarEvent) error
	GetCalendarEvent(ctx context.Context, id string) (domain.CalendarEvent, bool, error)
	ListCalendarEvents(ctx context.Context, vendorID string, from, to time.Time) ([]domain.CalendarEvent, error)
	DeleteCalendarEvent(ctx context.Context, id string) error

	// reviews
	CreateReview(ctx context.Context, r domain.Review) (domain.Vendor, error)
	GetReview(ctx context.Context, id string) (domain.Review, bool, error)
	ListReviewsByVendor(ctx context.Context, vendorID string) ([]domain.Review, error)
	SetReviewStatus(ctx context.Context, id string, status domain.ReviewStatus) (domain.Review, error)
	SetReviewReply(ctx context.Context, id, reply string, at time.Time) (domain.Review, error)

	// messaging
	OpenConversation(ctx context.Context, c domain.Conversation) (domain.Conversation, bool, error)
	GetConversation(ctx context.Context, id string) (domain.Conversation, bool, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	SetConversationStatus(ctx context.Context, id string, status domain.ConversationStatus) (domain.Conversation, error)
	CountConversationsByVendor(ctx context.Context, vendorID string) (int, error)
	AppendMessage(ctx context.Context, msg domain.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int64, error)

	// campaigns
	CreateCampaign(ctx context.Context, c domain.Campaign) error
	ListCampaigns(ctx context.Context) ([]domain.Campaign, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
