package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func waitForUpdate(t *testing.T, feed *service.OrderFeed) service.FeedUpdate {
	t.Helper()
	select {
	case update, ok := <-feed.Updates():
		if !ok {
			t.Fatal("updates channel closed while waiting for an update")
		}
		return update
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a feed update")
	}
	return service.FeedUpdate{}
}

func TestOrderFeed_SnapshotOnStart(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	repo.AddOrder(&domain.Order{ID: "order-1", CompanyID: "company-1", Status: domain.OrderStatusPending})
	repo.AddOrder(&domain.Order{ID: "other", CompanyID: "company-2", Status: domain.OrderStatusPending})

	feed := service.NewOrderFeed("company-1", repo, nil, time.Hour)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer feed.Close()

	snapshot := feed.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != "order-1" {
		t.Errorf("expected snapshot scoped to company-1, got %+v", snapshot)
	}
}

func TestOrderFeed_ReloadIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	repo.AddOrder(&domain.Order{ID: "order-1", CompanyID: "company-1", Status: domain.OrderStatusPending})

	feed := service.NewOrderFeed("company-1", repo, nil, time.Hour)
	ctx := context.Background()

	first, err := feed.Reload(ctx)
	if err != nil {
		t.Fatalf("first reload: %v", err)
	}
	second, err := feed.Reload(ctx)
	if err != nil {
		t.Fatalf("second reload: %v", err)
	}
	if len(first) != len(second) || len(first) != 1 || first[0].ID != second[0].ID {
		t.Errorf("expected identical views with no store change: %+v vs %+v", first, second)
	}
}

func TestOrderFeed_PushSignalTriggersReload(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	broker := NewMockFeed()

	// A long poll interval: only the push channel can wake this feed.
	feed := service.NewOrderFeed("company-1", repo, broker.Subscribe, time.Hour)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer feed.Close()

	repo.AddOrder(&domain.Order{ID: "order-1", CompanyID: "company-1", Status: domain.OrderStatusPending})
	if err := broker.Publish(context.Background(), domain.OrderEvent{
		OrderID:   "order-1",
		CompanyID: "company-1",
		Status:    domain.OrderStatusPending,
		Kind:      domain.OrderEventCreated,
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	update := waitForUpdate(t, feed)
	if update.Event == nil || update.Event.Kind != domain.OrderEventCreated {
		t.Errorf("expected the triggering event attached, got %+v", update.Event)
	}
	if len(update.Orders) != 1 || update.Orders[0].ID != "order-1" {
		t.Errorf("expected reloaded view with the new order, got %+v", update.Orders)
	}
	if snapshot := feed.Snapshot(); len(snapshot) != 1 {
		t.Errorf("expected snapshot updated, got %d orders", len(snapshot))
	}
}

func TestOrderFeed_PollFallbackWithoutSubscription(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()

	feed := service.NewOrderFeed("company-1", repo, nil, 20*time.Millisecond)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer feed.Close()

	repo.AddOrder(&domain.Order{ID: "order-1", CompanyID: "company-1", Status: domain.OrderStatusPending})

	// Poll ticks that raced the insert may carry an empty view; wait for
	// the tick that observes the new order.
	for {
		update := waitForUpdate(t, feed)
		if update.Event != nil {
			t.Fatalf("expected poll-driven updates with no event, got %+v", update.Event)
		}
		if len(update.Orders) == 1 && update.Orders[0].ID == "order-1" {
			break
		}
	}
}

func TestOrderFeed_CloseStopsDelivery(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	broker := NewMockFeed()

	feed := service.NewOrderFeed("company-1", repo, broker.Subscribe, 20*time.Millisecond)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	feed.Close()

	// Drain any buffered updates; the channel must close rather than leak
	// the run goroutine.
	deadline := time.After(2 * time.Second)
drain:
	for {
		select {
		case _, ok := <-feed.Updates():
			if !ok {
				break drain
			}
		case <-deadline:
			t.Fatal("timed out waiting for updates channel to close")
		}
	}

	// Closing twice is safe.
	feed.Close()
}

func TestOrderFeed_ConcurrentReloadsConverge(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	repo.AddOrder(&domain.Order{ID: "order-1", CompanyID: "company-1", Status: domain.OrderStatusPending})

	feed := service.NewOrderFeed("company-1", repo, nil, time.Hour)
	ctx := context.Background()
	if _, err := feed.Reload(ctx); err != nil {
		t.Fatalf("initial reload: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := feed.Reload(ctx); err != nil {
				t.Errorf("Reload: %v", err)
			}
		}()
	}
	wg.Wait()

	// Whatever interleaving won, the snapshot reflects the store.
	snapshot := feed.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != "order-1" {
		t.Errorf("expected converged snapshot, got %+v", snapshot)
	}
}
