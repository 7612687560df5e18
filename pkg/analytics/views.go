// Package analytics counts vendor profile views.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix   = "vendorhub:views"
	dailyRetention  = 90 * 24 * time.Hour
	dailyKeyLayout  = "20060102"
	maxDailyHistory = 90
)

// ViewCounter records and reads profile views.
type ViewCounter interface {
	RecordView(ctx context.Context, vendorID string) error
	Views(ctx context.Context, vendorID string) (int64, error)
	DailyViews(ctx context.Context, vendorID string, days int) ([]DailyCount, error)
}

type DailyCount struct {
	Day   string `json:"day"`
	Views int64  `json:"views"`
}

// RedisViewCounter keeps a running total plus one expiring counter per day.
type RedisViewCounter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisViewCounter(client redis.UniversalClient, prefix string) (*RedisViewCounter, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisViewCounter{client: client, prefix: prefix, now: time.Now}, nil
}

func (c *RedisViewCounter) RecordView(ctx context.Context, vendorID string) error {
	day := c.dailyKey(vendorID, c.now())
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, c.totalKey(vendorID))
	pipe.Incr(ctx, day)
	pipe.Expire(ctx, day, dailyRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record view %s: %w", vendorID, err)
	}
	return nil
}

func (c *RedisViewCounter) Views(ctx context.Context, vendorID string) (int64, error) {
	n, err := c.client.Get(ctx, c.totalKey(vendorID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read views %s: %w", vendorID, err)
	}
	return n, nil
}

// DailyViews returns counts for the last days days, oldest first.
func (c *RedisViewCounter) DailyViews(ctx context.Context, vendorID string, days int) ([]DailyCount, error) {
	days = clampDays(days)
	now := c.now().UTC()
	keys := make([]string, days)
	out := make([]DailyCount, days)
	for i := 0; i < days; i++ {
		d := now.AddDate(0, 0, i-days+1)
		keys[i] = c.dailyKey(vendorID, d)
		out[i].Day = d.Format(time.DateOnly)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read daily views %s: %w", vendorID, err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i].Views, _ = strconv.ParseInt(s, 10, 64)
		}
	}
	return out, nil
}

func (c *RedisViewCounter) totalKey(vendorID string) string {
	return c.prefix + ":" + vendorID + ":total"
}

func (c *RedisViewCounter) dailyKey(vendorID string, t time.Time) string {
	return c.prefix + ":" + vendorID + ":" + t.UTC().Format(dailyKeyLayout)
}

func clampDays(days int) int {
	if days <= 0 {
		return 7
	}
	if days > maxDailyHistory {
		return maxDailyHistory
	}
	return days
}

// MemoryViewCounter is a process-local ViewCounter.
type MemoryViewCounter struct {
	mu    sync.Mutex
	total map[string]int64
	daily map[string]int64
	now   func() time.Time
}

func NewMemoryViewCounter() *MemoryViewCounter {
	return &MemoryViewCounter{total: map[string]int64{}, daily: map[string]int64{}, now: time.Now}
}

func (m *MemoryViewCounter) RecordView(_ context.Context, vendorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total[vendorID]++
	m.daily[vendorID+":"+m.now().UTC().Format(dailyKeyLayout)]++
	return nil
}

func (m *MemoryViewCounter) Views(_ context.Context, vendorID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total[vendorID], nil
}

func (m *MemoryViewCounter) DailyViews(_ context.Context, vendorID string, days int) ([]DailyCount, error) {
	days = clampDays(days)
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	out := make([]DailyCount, days)
	for i := 0; i < days; i++ {
		d := now.AddDate(0, 0, i-days+1)
		out[i] = DailyCount{Day: d.Format(time.DateOnly), Views: m.daily[vendorID+":"+d.Format(dailyKeyLayout)]}
	}
	return out, nil
}
