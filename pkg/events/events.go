// Package events publishes marketplace domain events.
package events

import (
	"context"
	"log/slog"
	"time"

	"vendorhub/internal/util"
)

const (
	TypeReviewCreated       = "review.created"
	TypeSubscriptionChanged = "vendor.subscription.changed"
	TypeMessageSent         = "message.sent"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// New stamps an event with an id and the current time.
func New(eventType string, data any) Event {
	return Event{ID: util.NewID(), Type: eventType, OccurredAt: time.Now().UTC(), Data: data}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to the log only.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, ev Event) error {
	util.LoggerFromContext(ctx).Debug("domain event", "event_id", ev.ID, "type", ev.Type)
	return nil
}

func (LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	events chan Event
}

func NewRecorder(capacity int) *Recorder {
	return &Recorder{events: make(chan Event, capacity)}
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	select {
	case r.events <- ev:
	default:
		slog.Warn("event recorder full, dropping", "type", ev.Type)
	}
	return nil
}

func (r *Recorder) Close() error { return nil }

// Drain returns the events recorded so far.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}
