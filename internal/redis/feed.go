package redis

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
)

const feedChannelPrefix = "orders:feed:"

// Feed is the push change channel: every order mutation is published on a
// company-scoped Pub/Sub channel and fans out to all subscribed observers.
// Delivery is best-effort; the polling fallback covers missed events.
type Feed struct {
	client *redis.Client
}

// NewFeed creates a new Feed.
func NewFeed(client *redis.Client) *Feed {
	return &Feed{client: client}
}

// Publish announces an order change to the company's channel.
func (f *Feed) Publish(ctx context.Context, event domain.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, feedChannelPrefix+event.CompanyID, data).Err()
}

// Subscription is a live subscription to a company's change channel.
type Subscription struct {
	pubsub *redis.PubSub
	events chan domain.OrderEvent
	done   chan struct{}
}

// Subscribe opens a subscription to a company's change channel. The caller
// must Close it when the owning observer goes away.
func (f *Feed) Subscribe(ctx context.Context, companyID string) (*Subscription, error) {
	pubsub := f.client.Subscribe(ctx, feedChannelPrefix+companyID)

	// Force the subscribe round-trip so a broken connection fails here
	// rather than silently delivering nothing.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan domain.OrderEvent, 16),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

// Events returns the decoded event stream. The channel is closed when the
// subscription is closed or the underlying connection goes away.
func (s *Subscription) Events() <-chan domain.OrderEvent {
	return s.events
}

// Close tears down the subscription.
func (s *Subscription) Close() error {
	close(s.done)
	return s.pubsub.Close()
}

func (s *Subscription) pump() {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		var event domain.OrderEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("feed: dropping malformed event: %v", err)
			continue
		}
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}
