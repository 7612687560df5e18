// Package queue moves notification jobs from the API to the notifier through
// a Redis stream with a consumer group.
package queue

import (
	"errors"
	"strings"
	"time"

	"vendorhub/pkg/domain"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

const (
	KindMessage  = "message"
	KindCampaign = "campaign"
)

// Notification is one outbound message to one recipient.
type Notification struct {
	Kind        string                     `json:"kind"`
	Channel     domain.NotificationChannel `json:"channel"`
	RecipientID string                     `json:"recipientId"`
	Address     string                     `json:"address"`
	Subject     string                     `json:"subject,omitempty"`
	Body        string                     `json:"body"`
	CampaignID  string                     `json:"campaignId,omitempty"`
}

func (n Notification) validate() error {
	if strings.TrimSpace(n.RecipientID) == "" && strings.TrimSpace(n.Address) == "" {
		return errors.New("notification recipient required")
	}
	if strings.TrimSpace(n.Body) == "" {
		return errors.New("notification body required")
	}
	switch n.Channel {
	case domain.ChannelEmail, domain.ChannelSMS, domain.ChannelWhatsApp:
	default:
		return errors.New("notification channel must be email, sms or whatsapp")
	}
	return nil
}

// Job tracks delivery of one notification.
type Job struct {
	ID           string       `json:"id"`
	Notification Notification `json:"notification"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	Attempts     int          `json:"attempts"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
