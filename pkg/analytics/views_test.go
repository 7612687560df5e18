package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisViewCounter(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	c, err := NewRedisViewCounter(client, "test:views")
	if err != nil {
		t.Fatalf("new counter: %v", err)
	}
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return day }
	ctx := context.Background()

	if n, err := c.Views(ctx, "v1"); err != nil || n != 0 {
		t.Fatalf("views before any record = %d, %v", n, err)
	}
	for i := 0; i < 3; i++ {
		if err := c.RecordView(ctx, "v1"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	day = day.AddDate(0, 0, 1)
	_ = c.RecordView(ctx, "v1")
	_ = c.RecordView(ctx, "v2")

	if n, _ := c.Views(ctx, "v1"); n != 4 {
		t.Fatalf("v1 views = %d, want 4", n)
	}
	daily, err := c.DailyViews(ctx, "v1", 3)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	want := []DailyCount{{"2026-03-09", 0}, {"2026-03-10", 3}, {"2026-03-11", 1}}
	for i := range want {
		if daily[i] != want[i] {
			t.Fatalf("daily[%d] = %+v, want %+v", i, daily[i], want[i])
		}
	}
	if ttl := srv.TTL("test:views:v1:20260311"); ttl <= 0 {
		t.Fatalf("expected daily key to expire, ttl=%v", ttl)
	}
}

func TestMemoryViewCounter(t *testing.T) {
	m := NewMemoryViewCounter()
	ctx := context.Background()
	_ = m.RecordView(ctx, "v1")
	_ = m.RecordView(ctx, "v1")
	if n, _ := m.Views(ctx, "v1"); n != 2 {
		t.Fatalf("views = %d, want 2", n)
	}
	daily, _ := m.DailyViews(ctx, "v1", 0)
	if len(daily) != 7 || daily[6].Views != 2 {
		t.Fatalf("unexpected daily counts: %+v", daily)
	}
}
