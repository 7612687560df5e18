package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"vendorhub/pkg/domain"
	"vendorhub/pkg/queue"
)

type recordingSender struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (s *recordingSender) Send(_ context.Context, job queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func testJob(id string) queue.Job {
	return queue.Job{
		ID: id,
		Notification: queue.Notification{
			Kind:        queue.KindCampaign,
			Channel:     domain.ChannelWhatsApp,
			RecipientID: "u-1",
			Address:     "host@example.com",
			Body:        "Tasting night on Friday",
			CampaignID:  "c-1",
		},
		Attempts: 1,
	}
}

func TestWebhookSenderPostsJSON(t *testing.T) {
	var got webhookPayload
	var auth, idempotency string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		idempotency = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender, err := NewWebhookSender(srv.URL, "hook-secret", time.Second)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := sender.Send(context.Background(), testJob("job-1")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer hook-secret" || idempotency != "job-1" {
		t.Fatalf("headers: auth=%q idempotency=%q", auth, idempotency)
	}
	if got.Channel != "whatsapp" || got.RecipientID != "u-1" || got.CampaignID != "c-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestWebhookSenderReportsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"carrier unavailable"}`))
	}))
	defer srv.Close()

	sender, err := NewWebhookSender(srv.URL, "", time.Second)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	err = sender.Send(context.Background(), testJob("job-1"))
	if err == nil || !strings.Contains(err.Error(), "carrier unavailable") {
		t.Fatalf("err = %v, want provider message", err)
	}
}

func TestNewRequiresSender(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without sender")
	}
	if _, err := NewWebhookSender("  ", "", 0); err == nil {
		t.Fatalf("expected error without webhook url")
	}
}

func TestDeliverThrottles(t *testing.T) {
	sender := &recordingSender{}
	a, err := New(Config{Sender: sender, RatePerSecond: 20, RateBurst: 1})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := a.Deliver(context.Background(), testJob("job")); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}
	// burst of one at 20/s spaces the last two sends by ~50ms each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("three sends took %v, expected throttling", elapsed)
	}
	if sender.count() != 3 {
		t.Fatalf("sent = %d, want 3", sender.count())
	}
}

func TestDeliverStopsWhenContextCanceled(t *testing.T) {
	sender := &recordingSender{}
	a, err := New(Config{Sender: sender, RatePerSecond: 0.01, RateBurst: 1})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.Deliver(context.Background(), testJob("job-1")); err != nil {
		t.Fatalf("first deliver: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Deliver(ctx, testJob("job-2")); err == nil {
		t.Fatalf("expected error once the limiter cannot wait")
	}
	if sender.count() != 1 {
		t.Fatalf("sent = %d, want 1", sender.count())
	}
}

func TestDeliverPropagatesSendError(t *testing.T) {
	sender := &recordingSender{err: errors.New("boom")}
	a, err := New(Config{Sender: sender})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.Deliver(context.Background(), testJob("job-1")); err == nil {
		t.Fatalf("expected send error to reach the queue")
	}
}

func TestRunDrainsQueue(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	q, err := queue.NewRedisQueue(queue.RedisQueueConfig{
		Addr:   redisSrv.Addr(),
		Stream: "test:notifications",
		Block:  10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer q.Close()

	sender := &recordingSender{}
	a, err := New(Config{Sender: sender})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := testJob("").Notification
	jobs, err := q.EnqueueBatch(ctx, []queue.Notification{n, n, n})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, q, 2) }()

	deadline := time.Now().Add(3 * time.Second)
	for sender.count() < len(jobs) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sender.count() != len(jobs) {
		t.Fatalf("delivered %d of %d jobs", sender.count(), len(jobs))
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}
