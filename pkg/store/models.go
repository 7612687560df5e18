package store

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// GORM models used for persistence. The schema itself is owned by the SQL
// migrations under migrations/.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	Status       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type CategoryModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	ImageURL    string
	Slug        string    `gorm:"uniqueIndex;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (CategoryModel) TableName() string { return "categories" }

type VendorModel struct {
	ID                 string  `gorm:"primaryKey"`
	OwnerID            *string `gorm:"index"`
	Name               string  `gorm:"not null"`
	Description        string
	ImageURL           string
	LogoURL            string
	CategoryID         *string `gorm:"index"`
	PriceRange         string
	Rating             float64
	ReviewCount        int
	Location           string
	DietaryOptions     pq.StringArray `gorm:"type:text[]"`
	CuisineTypes       pq.StringArray `gorm:"type:text[]"`
	ThemeTypes         pq.StringArray `gorm:"type:text[]"`
	SubscriptionTier   string         `gorm:"not null"`
	SubscriptionStatus string         `gorm:"not null"`
	CataloguePages     int
	WordCount          int
	PhotoLimit         int
	ReviewsEnabled     bool
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

func (VendorModel) TableName() string { return "vendors" }

type VendorPhotoModel struct {
	ID          string    `gorm:"primaryKey"`
	VendorID    string    `gorm:"not null;index"`
	StorageKey  string    `gorm:"not null"`
	ContentType string    `gorm:"not null"`
	SizeBytes   int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (VendorPhotoModel) TableName() string { return "vendor_photos" }

type ShortlistModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:shortlists_user_vendor_key"`
	VendorID  string    `gorm:"not null;uniqueIndex:shortlists_user_vendor_key"`
	Notes     string
	CreatedAt time.Time `gorm:"not null"`
}

func (ShortlistModel) TableName() string { return "shortlists" }

type TaskModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string
	DueDate     *time.Time
	Status      string    `gorm:"not null"`
	Completed   bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (TaskModel) TableName() string { return "tasks" }

type TimelineEventModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string
	StartsAt    time.Time `gorm:"not null"`
	EndsAt      *time.Time
	Completed   bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (TimelineEventModel) TableName() string { return "timeline_events" }

type CalendarEventModel struct {
	ID        string `gorm:"primaryKey"`
	VendorID  string `gorm:"not null;index"`
	Title     string
	StartsAt  time.Time `gorm:"not null"`
	EndsAt    time.Time `gorm:"not null"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (CalendarEventModel) TableName() string { return "calendar_events" }

type ReviewModel struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"not null"`
	VendorID     string `gorm:"not null;index"`
	Rating       int    `gorm:"not null"`
	Title        string
	ReviewText   string
	Status       string `gorm:"not null"`
	AdminReply   string
	AdminReplyAt *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (ReviewModel) TableName() string { return "reviews" }

type ConversationModel struct {
	ID            string  `gorm:"primaryKey"`
	HostID        string  `gorm:"not null;index"`
	ProviderID    string  `gorm:"not null;index"`
	VendorID      *string `gorm:"index"`
	Status        string  `gorm:"not null"`
	LastMessageAt *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (ConversationModel) TableName() string { return "conversations" }

type MessageModel struct {
	ID             string    `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index"`
	SenderID       string    `gorm:"not null"`
	Content        string    `gorm:"not null"`
	IsRead         bool      `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

func (MessageModel) TableName() string { return "messages" }

type CampaignModel struct {
	ID             string `gorm:"primaryKey"`
	Channel        string `gorm:"not null"`
	Subject        string
	Body           string         `gorm:"not null"`
	Audience       datatypes.JSON `gorm:"type:jsonb"`
	RecipientCount int
	CreatedBy      string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (CampaignModel) TableName() string { return "campaigns" }
