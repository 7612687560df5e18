package domain

import "time"

type UserRole string

const (
	RoleHost     UserRole = "host"
	RoleProvider UserRole = "provider"
	RoleAdmin    UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Slug        string    `json:"slug"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SubscriptionTier is a vendor's paid plan level.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierBasic      SubscriptionTier = "basic"
	TierPro        SubscriptionTier = "pro"
	TierPremium    SubscriptionTier = "premium"
	TierPremiumPro SubscriptionTier = "premium pro"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// PriceRanges lists the accepted vendor price tiers, cheapest first.
var PriceRanges = []string{"$", "$$", "$$$", "$$$$"}

// Vendor is a service provider listed in the marketplace. CataloguePages,
// WordCount, PhotoLimit and ReviewsEnabled are derived from SubscriptionTier.
type Vendor struct {
	ID                 string             `json:"id"`
	OwnerID            string             `json:"ownerId,omitempty"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	ImageURL           string             `json:"imageUrl"`
	LogoURL            string             `json:"logoUrl"`
	CategoryID         string             `json:"categoryId"`
	PriceRange         string             `json:"priceRange"`
	Rating             float64            `json:"rating"`
	ReviewCount        int                `json:"reviewCount"`
	Location           string             `json:"location"`
	DietaryOptions     []string           `json:"dietaryOptions"`
	CuisineTypes       []string           `json:"cuisineTypes"`
	ThemeTypes         []string           `json:"themeTypes"`
	SubscriptionTier   SubscriptionTier   `json:"subscriptionTier"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	CataloguePages     int                `json:"cataloguePages"`
	WordCount          int                `json:"wordCount"`
	PhotoLimit         int                `json:"photoLimit"`
	ReviewsEnabled     bool               `json:"reviewsEnabled"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

type VendorPhoto struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendorId"`
	StorageKey  string    `json:"-"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Shortlist struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	VendorID  string    `json:"vendorId"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Status      TaskStatus `json:"status"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type TimelineEvent struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartsAt    time.Time  `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type CalendarStatus string

const (
	CalendarAvailable CalendarStatus = "available"
	CalendarBooked    CalendarStatus = "booked"
	CalendarBlocked   CalendarStatus = "blocked"
)

type CalendarEvent struct {
	ID        string         `json:"id"`
	VendorID  string         `json:"vendorId"`
	Title     string         `json:"title"`
	StartsAt  time.Time      `json:"startsAt"`
	EndsAt    time.Time      `json:"endsAt"`
	Status    CalendarStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type Review struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	VendorID     string       `json:"vendorId"`
	Rating       int          `json:"rating"`
	Title        string       `json:"title"`
	ReviewText   string       `json:"reviewText"`
	Status       ReviewStatus `json:"status"`
	AdminReply   string       `json:"adminReply,omitempty"`
	AdminReplyAt *time.Time   `json:"adminReplyAt,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// Conversation links exactly one host and one provider.
type Conversation struct {
	ID            string             `json:"id"`
	HostID        string             `json:"hostId"`
	ProviderID    string             `json:"providerId"`
	VendorID      string             `json:"vendorId,omitempty"`
	Status        ConversationStatus `json:"status"`
	LastMessageAt *time.Time         `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// HasParticipant reports whether userID is the host or the provider.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.HostID == userID || c.ProviderID == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c Conversation) OtherParticipant(userID string) string {
	if c.HostID == userID {
		return c.ProviderID
	}
	return c.HostID
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "email"
	ChannelSMS      NotificationChannel = "sms"
	ChannelWhatsApp NotificationChannel = "whatsapp"
)

// Campaign records a marketing broadcast queued for delivery.
type Campaign struct {
	ID             string              `json:"id"`
	Channel        NotificationChannel `json:"channel"`
	Subject        string              `json:"subject"`
	Body           string              `json:"body"`
	AudienceRole   UserRole            `json:"audienceRole,omitempty"`
	RecipientCount int                 `json:"recipientCount"`
	CreatedBy      string              `json:"createdBy"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// VendorAnalytics is the dashboard summary for one vendor.
type VendorAnalytics struct {
	VendorID          string  `json:"vendorId"`
	ProfileViews      int64   `json:"profileViews"`
	ShortlistCount    int     `json:"shortlistCount"`
	ReviewCount       int     `json:"reviewCount"`
	Rating            float64 `json:"rating"`
	ConversationCount int     `json:"conversationCount"`
	PhotoCount        int     `json:"photoCount"`
	PhotoLimit        int     `json:"photoLimit"`
}
