package service

import (
	"context"
	"log"
	"sync"
	"time"

	"dispatch/internal/domain"
)

// DefaultPollInterval is the fallback reload cadence when the push channel
// is healthy, slow, or dead.
const DefaultPollInterval = 30 * time.Second

// OrderLister is the authoritative reload source for a feed.
type OrderLister interface {
	ListByCompany(ctx context.Context, companyID string) ([]*domain.Order, error)
}

// EventSubscription is a live push-channel subscription.
type EventSubscription interface {
	Events() <-chan domain.OrderEvent
	Close() error
}

// SubscribeFunc opens a push subscription for a company. It adapts
// redis.Feed.Subscribe without binding this package to the concrete type.
type SubscribeFunc func(ctx context.Context, companyID string) (EventSubscription, error)

// FeedUpdate is delivered to feed consumers after every applied reload.
// Event is nil for poll-driven reloads.
type FeedUpdate struct {
	Event  *domain.OrderEvent
	Orders []*domain.Order
}

// OrderFeed keeps one observer's view of a company's orders in agreement
// with the backing store. Two channels feed the same snapshot: a push
// subscription that triggers a full reload on every signal, and an
// unconditional poll ticker that covers a dead or slow subscription.
//
// Reload-on-signal is an explicit scalability ceiling: at larger volumes
// replace it with a row-level merge keyed by id and updated_at.
type OrderFeed struct {
	companyID    string
	lister       OrderLister
	subscribe    SubscribeFunc
	pollInterval time.Duration

	mu         sync.Mutex
	snapshot   []*domain.Order
	startedSeq uint64 // last reload started
	appliedSeq uint64 // last reload applied to the snapshot

	updates chan FeedUpdate
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// NewOrderFeed creates a feed for one company. Call Start to begin syncing
// and Close when the owning observer goes away.
func NewOrderFeed(companyID string, lister OrderLister, subscribe SubscribeFunc, pollInterval time.Duration) *OrderFeed {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &OrderFeed{
		companyID:    companyID,
		lister:       lister,
		subscribe:    subscribe,
		pollInterval: pollInterval,
		updates:      make(chan FeedUpdate, 8),
		done:         make(chan struct{}),
	}
}

// Start performs the initial reload, opens the push subscription and starts
// the poll ticker. The push channel is optional: if the subscription cannot
// be opened the feed runs on polling alone.
func (f *OrderFeed) Start(ctx context.Context) error {
	if _, err := f.Reload(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	var sub EventSubscription
	if f.subscribe != nil {
		var err error
		sub, err = f.subscribe(runCtx, f.companyID)
		if err != nil {
			log.Printf("order feed %s: push subscription unavailable, polling only: %v", f.companyID, err)
			sub = nil
		}
	}

	go f.run(runCtx, sub)
	return nil
}

// Snapshot returns the current local order list.
func (f *OrderFeed) Snapshot() []*domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Order, len(f.snapshot))
	copy(out, f.snapshot)
	return out
}

// Updates returns the consumer-facing update stream. It is closed on Close.
func (f *OrderFeed) Updates() <-chan FeedUpdate {
	return f.updates
}

// Reload fetches the authoritative list and replaces the snapshot. It is
// idempotent and safe to call concurrently with itself: a sequence number
// taken at reload start makes overlapping calls last-started-wins, so two
// in-flight reloads never interleave partial results.
func (f *OrderFeed) Reload(ctx context.Context) ([]*domain.Order, error) {
	f.mu.Lock()
	f.startedSeq++
	seq := f.startedSeq
	f.mu.Unlock()

	orders, err := f.lister.ListByCompany(ctx, f.companyID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq > f.appliedSeq {
		f.snapshot = orders
		f.appliedSeq = seq
	}
	out := make([]*domain.Order, len(f.snapshot))
	copy(out, f.snapshot)
	return out, nil
}

// Close tears down the subscription and the poll ticker. No timer or
// subscription outlives its owning feed.
func (f *OrderFeed) Close() {
	f.once.Do(func() {
		close(f.done)
		if f.cancel != nil {
			f.cancel()
		}
	})
}

func (f *OrderFeed) run(ctx context.Context, sub EventSubscription) {
	defer close(f.updates)

	var events <-chan domain.OrderEvent
	if sub != nil {
		events = sub.Events()
		defer sub.Close()
	}

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case event, ok := <-events:
			if !ok {
				// Push channel died; degrade to polling latency.
				log.Printf("order feed %s: push channel closed, polling only", f.companyID)
				events = nil
				continue
			}
			f.reloadAndNotify(ctx, &event)
		case <-ticker.C:
			f.reloadAndNotify(ctx, nil)
		}
	}
}

func (f *OrderFeed) reloadAndNotify(ctx context.Context, event *domain.OrderEvent) {
	orders, err := f.Reload(ctx)
	if err != nil {
		// Absorbed: the next poll tick or push signal retries naturally.
		log.Printf("order feed %s: reload failed: %v", f.companyID, err)
		return
	}

	update := FeedUpdate{Event: event, Orders: orders}
	select {
	case f.updates <- update:
	case <-f.done:
	case <-ctx.Done():
	default:
		// Consumer is not keeping up; it will catch up on its next read
		// since every update carries the full list.
	}
}
