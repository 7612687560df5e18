package security

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "vendorhub:marketplace:alerts"
	observeTimeout   = 2 * time.Second
)

// windowCounter bumps KEYS[1] and arms its expiry on the first hit.
var windowCounter = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Rule fires once Threshold matching events from one client IP land in the
// same Window. An empty Event matches every event.
type Rule struct {
	Event     string
	Outcome   string
	Threshold int64
	Window    time.Duration
}

func (r Rule) matches(event, outcome string) bool {
	return r.Outcome == outcome && (r.Event == "" || r.Event == event)
}

// DefaultRules cover credential stuffing, signup floods and privilege probing.
var DefaultRules = []Rule{
	{Outcome: "rate_limited", Threshold: 20, Window: time.Minute},
	{Event: "marketplace.login", Outcome: "fail", Threshold: 10, Window: 5 * time.Minute},
	{Event: "marketplace.signup", Outcome: "fail", Threshold: 10, Window: 5 * time.Minute},
	{Event: "marketplace.logout", Outcome: "fail", Threshold: 15, Window: 5 * time.Minute},
	{Event: "marketplace.authorize", Outcome: "fail", Threshold: 25, Window: 5 * time.Minute},
	{Event: "marketplace.admin.authorize", Outcome: "fail", Threshold: 25, Window: 5 * time.Minute},
}

// Alert is the outcome of one observation. Fired is set only on the event
// that brings the window count to the rule threshold.
type Alert struct {
	Rule  Rule
	Count int64
	Fired bool
}

// Alerter counts failed or throttled audit events in Redis.
type Alerter struct {
	client redis.UniversalClient
	prefix string
	rules  []Rule
}

// NewAlerter returns nil for a nil client; a nil *Alerter ignores every
// event. Nil rules mean DefaultRules.
func NewAlerter(client redis.UniversalClient, prefix string, rules []Rule) *Alerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if rules == nil {
		rules = DefaultRules
	}
	return &Alerter{client: client, prefix: prefix, rules: rules}
}

// Observe counts the event against the first matching rule.
func (a *Alerter) Observe(ctx context.Context, event, outcome, ip string) (Alert, error) {
	if a == nil {
		return Alert{}, nil
	}
	event, outcome = strings.TrimSpace(event), strings.TrimSpace(outcome)
	rule, ok := a.ruleFor(event, outcome)
	if !ok || rule.Threshold <= 0 || rule.Window <= 0 {
		return Alert{}, nil
	}

	windowMs := rule.Window.Milliseconds()
	bucket := time.Now().UTC().UnixMilli() / windowMs
	key := a.key(event, outcome, ip, bucket)

	ctx, cancel := context.WithTimeout(ctx, observeTimeout)
	defer cancel()
	n, err := windowCounter.Run(ctx, a.client, []string{key}, windowMs).Int64()
	if err != nil {
		return Alert{}, err
	}
	return Alert{Rule: rule, Count: n, Fired: n == rule.Threshold}, nil
}

func (a *Alerter) ruleFor(event, outcome string) (Rule, bool) {
	for _, r := range a.rules {
		if r.matches(event, outcome) {
			return r, true
		}
	}
	return Rule{}, false
}

func (a *Alerter) key(event, outcome, ip string, bucket int64) string {
	parts := []string{a.prefix, keySegment(event), keySegment(outcome), keySegment(ip), strconv.FormatInt(bucket, 10)}
	return strings.Join(parts, ":")
}

// keySegment keeps client-supplied values from adding key separators.
func keySegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '|', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, s)
}
