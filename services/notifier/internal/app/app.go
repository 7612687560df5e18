package app

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"vendorhub/internal/util"
	"vendorhub/pkg/queue"
)

var deliveries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vendorhub_notifications_delivered_total",
		Help: "Notification delivery attempts by channel and outcome.",
	},
	[]string{"channel", "outcome"},
)

// Consumer is the queue side the notifier drives.
type Consumer interface {
	Start(ctx context.Context, concurrency int, handler queue.Handler) error
	Wait()
}

// Config holds runtime configuration.
type Config struct {
	Sender        Sender
	RatePerSecond float64
	RateBurst     int
}

// App delivers queued notifications under a shared send rate.
type App struct {
	sender  Sender
	limiter *rate.Limiter
}

// New constructs the notifier. A zero RatePerSecond disables throttling.
func New(cfg Config) (*App, error) {
	if cfg.Sender == nil {
		return nil, errors.New("sender required")
	}
	limit := rate.Inf
	burst := cfg.RateBurst
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		if burst <= 0 {
			burst = int(math.Ceil(cfg.RatePerSecond))
		}
	}
	if burst <= 0 {
		burst = 1
	}
	return &App{sender: cfg.Sender, limiter: rate.NewLimiter(limit, burst)}, nil
}

// Deliver sends one job. It is the queue handler; a returned error makes the
// queue retry the job.
func (a *App) Deliver(ctx context.Context, job queue.Job) error {
	channel := string(job.Notification.Channel)
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	logger := util.LoggerFromContext(ctx).With("job_id", job.ID, "channel", channel, "attempt", job.Attempts)
	if err := a.sender.Send(ctx, job); err != nil {
		deliveries.WithLabelValues(channel, "error").Inc()
		logger.Warn("notification delivery failed", "err", err)
		return err
	}
	deliveries.WithLabelValues(channel, "sent").Inc()
	logger.Debug("notification delivered")
	return nil
}

// Run starts concurrency consumers on q and blocks until ctx is canceled and
// every consumer has returned.
func (a *App) Run(ctx context.Context, q Consumer, concurrency int) error {
	if err := q.Start(ctx, concurrency, a.Deliver); err != nil {
		return fmt.Errorf("start consumers: %w", err)
	}
	<-ctx.Done()
	q.Wait()
	return nil
}
