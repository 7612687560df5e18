package security

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAlerter(t *testing.T, rules []Rule) (*Alerter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAlerter(client, "test:alerts", rules), mr
}

func TestObserveFiresOncePerWindow(t *testing.T) {
	alerter, _ := newTestAlerter(t, nil)
	ctx := context.Background()
	fired := 0
	for i := 0; i < 12; i++ {
		alert, err := alerter.Observe(ctx, "marketplace.login", "fail", "203.0.113.7")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if alert.Fired {
			fired++
			if alert.Count != 10 {
				t.Fatalf("fired at count %d, want 10", alert.Count)
			}
		}
	}
	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}
}

func TestObserveRateLimitedMatchesAnyEvent(t *testing.T) {
	alerter, _ := newTestAlerter(t, []Rule{{Outcome: "rate_limited", Threshold: 2, Window: time.Minute}})
	ctx := context.Background()
	if a, _ := alerter.Observe(ctx, "marketplace.signup", "rate_limited", "198.51.100.1"); a.Fired {
		t.Fatalf("fired on first event")
	}
	a, err := alerter.Observe(ctx, "marketplace.signup", "rate_limited", "198.51.100.1")
	if err != nil || !a.Fired {
		t.Fatalf("second event = %+v, %v; want fired", a, err)
	}
	other, _ := alerter.Observe(ctx, "marketplace.signup", "rate_limited", "198.51.100.2")
	if other.Count != 1 {
		t.Fatalf("other ip count = %d, want its own window", other.Count)
	}
}

func TestObserveIgnoresUnmatchedEvents(t *testing.T) {
	alerter, _ := newTestAlerter(t, nil)
	for _, tc := range [][2]string{{"marketplace.review.create", "fail"}, {"marketplace.login", "success"}} {
		alert, err := alerter.Observe(context.Background(), tc[0], tc[1], "203.0.113.7")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if alert.Fired || alert.Count != 0 {
			t.Fatalf("unexpected alert for %v: %+v", tc, alert)
		}
	}
}

func TestObserveKeyStripsSeparators(t *testing.T) {
	alerter, mr := newTestAlerter(t, nil)
	if _, err := alerter.Observe(context.Background(), "marketplace.login", "fail", "::1 x"); err != nil {
		t.Fatalf("observe: %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("keys = %v, want one", keys)
	}
	if !strings.HasPrefix(keys[0], "test:alerts:marketplace.login:fail:__1_x:") {
		t.Fatalf("key = %q", keys[0])
	}
	if ttl := mr.TTL(keys[0]); ttl <= 0 || ttl > 5*time.Minute {
		t.Fatalf("ttl = %v, want the rule window", ttl)
	}
}

func TestNilAlerterObservesNothing(t *testing.T) {
	alerter := NewAlerter(nil, "", nil)
	alert, err := alerter.Observe(context.Background(), "marketplace.login", "fail", "203.0.113.7")
	if err != nil || alert.Fired {
		t.Fatalf("nil alerter: %+v %v", alert, err)
	}
}
