package app

import "errors"

var (
	// ErrInvalidCredentials is shown to end users and must not reveal whether
	// the email exists.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	// ErrUserDisabled is returned when a disabled account logs in.
	ErrUserDisabled = errors.New("user disabled")

	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrSlugTaken          = errors.New("category slug already exists")

	// ErrReviewsDisabled means the vendor's tier does not accept reviews.
	ErrReviewsDisabled = errors.New("reviews are only available for premium vendors")
	ErrPhotoLimit      = errors.New("photo limit reached for subscription tier")

	ErrConversationArchived = errors.New("conversation is archived")
	ErrConversationConflict = errors.New("an active conversation already exists for these participants")

	ErrNotificationsDisabled = errors.New("notifications are not configured")
)
