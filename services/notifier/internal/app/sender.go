package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vendorhub/internal/util"
	"vendorhub/pkg/queue"
)

// Sender hands one notification to the outbound provider.
type Sender interface {
	Send(ctx context.Context, job queue.Job) error
}

// webhookPayload is the body posted to the provider webhook. The provider
// resolves phone numbers for sms and whatsapp from recipientId.
type webhookPayload struct {
	JobID       string `json:"jobId"`
	Kind        string `json:"kind"`
	Channel     string `json:"channel"`
	RecipientID string `json:"recipientId"`
	Address     string `json:"address,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body"`
	CampaignID  string `json:"campaignId,omitempty"`
}

// WebhookSender posts notifications as JSON to a provider endpoint.
type WebhookSender struct {
	url        string
	token      string
	httpClient *http.Client
}

func NewWebhookSender(url, token string, timeout time.Duration) (*WebhookSender, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("webhook url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (s *WebhookSender) Send(ctx context.Context, job queue.Job) error {
	n := job.Notification
	payload, err := json.Marshal(webhookPayload{
		JobID:       job.ID,
		Kind:        n.Kind,
		Channel:     string(n.Channel),
		RecipientID: n.RecipientID,
		Address:     n.Address,
		Subject:     n.Subject,
		Body:        n.Body,
		CampaignID:  n.CampaignID,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	// retries reuse the job id so the provider can drop duplicates
	req.Header.Set("Idempotency-Key", job.ID)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("webhook error: %s", msg)
	}
	return nil
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, job queue.Job) error {
	n := job.Notification
	util.LoggerFromContext(ctx).Info("notification",
		"job_id", job.ID,
		"kind", n.Kind,
		"channel", n.Channel,
		"recipient_id", n.RecipientID,
		"campaign_id", n.CampaignID,
	)
	return nil
}
