package tests

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func newMonitor(repo *MockOrderRepository, locks *MockLockStore, feed *MockFeed) *service.TimeoutMonitor {
	return service.NewTimeoutMonitor(repo, locks, feed, time.Minute, 15*time.Second)
}

func TestSweep_RevertsStaleAssignments(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	feed := NewMockFeed()
	monitor := newMonitor(repo, NewMockLockStore(), feed)

	stale := time.Now().Add(-2 * time.Minute)
	repo.AddOrder(&domain.Order{
		ID:        "stale-order",
		CompanyID: "company-1",
		Status:    domain.OrderStatusAssigned,
		DriverID:  "driver-a",
		UpdatedAt: stale,
	})
	repo.AddOrder(&domain.Order{
		ID:        "fresh-order",
		CompanyID: "company-1",
		Status:    domain.OrderStatusAssigned,
		DriverID:  "driver-b",
		UpdatedAt: time.Now(),
	})

	reverted, err := monitor.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if reverted != 1 {
		t.Fatalf("expected 1 revert, got %d", reverted)
	}

	got := repo.GetOrder("stale-order")
	if got.Status != domain.OrderStatusPending {
		t.Errorf("expected stale order back to PENDING, got %s", got.Status)
	}
	if got.DriverID != "" {
		t.Errorf("expected driver unbound, got %q", got.DriverID)
	}

	history := repo.HistoryFor("stale-order")
	if len(history) != 1 {
		t.Fatalf("expected exactly one history entry, got %d", len(history))
	}
	if !history[0].IsSystemRevert() {
		t.Errorf("expected a system revert entry, got %+v", history[0])
	}

	// The fresh assignment must be untouched.
	if fresh := repo.GetOrder("fresh-order"); fresh.Status != domain.OrderStatusAssigned || fresh.DriverID != "driver-b" {
		t.Errorf("fresh assignment touched: %+v", fresh)
	}

	published := feed.Published()
	if len(published) != 1 || published[0].Kind != domain.OrderEventReverted {
		t.Errorf("expected one reverted feed event, got %+v", published)
	}
}

func TestSweep_OnlyAssignedOrdersAreSwept(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	monitor := newMonitor(repo, NewMockLockStore(), NewMockFeed())

	stale := time.Now().Add(-time.Hour)
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusEnRouteToPickup,
		domain.OrderStatusPickedUp,
		domain.OrderStatusDelivered,
	} {
		repo.AddOrder(&domain.Order{
			ID:        "order-" + string(status),
			CompanyID: "company-1",
			Status:    status,
			UpdatedAt: stale,
		})
	}

	reverted, err := monitor.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if reverted != 0 {
		t.Errorf("expected no reverts, got %d", reverted)
	}
}

func TestSweep_SkipsTickWhenLockDenied(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	locks := NewMockLockStore()
	locks.Denied = true
	monitor := newMonitor(repo, locks, NewMockFeed())

	repo.AddOrder(&domain.Order{
		ID:        "stale-order",
		CompanyID: "company-1",
		Status:    domain.OrderStatusAssigned,
		DriverID:  "driver-a",
		UpdatedAt: time.Now().Add(-time.Hour),
	})

	reverted, err := monitor.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if reverted != 0 {
		t.Errorf("expected sweep skipped, got %d reverts", reverted)
	}
	if atomic.LoadInt32(&locks.AcquireCallCount) != 1 {
		t.Errorf("expected one lock attempt, got %d", locks.AcquireCallCount)
	}
	if got := repo.GetOrder("stale-order"); got.Status != domain.OrderStatusAssigned {
		t.Errorf("expected stale order untouched while lock denied, got %s", got.Status)
	}
}

func TestSweep_RevertFailuresAreAbsorbed(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	monitor := newMonitor(repo, NewMockLockStore(), NewMockFeed())

	repo.AddOrder(&domain.Order{
		ID:        "stale-order",
		CompanyID: "company-1",
		Status:    domain.OrderStatusAssigned,
		DriverID:  "driver-a",
		UpdatedAt: time.Now().Add(-time.Hour),
	})
	repo.RevertError = context.DeadlineExceeded

	reverted, err := monitor.Sweep(context.Background())
	if err != nil {
		t.Fatalf("expected per-order failure absorbed, got %v", err)
	}
	if reverted != 0 {
		t.Errorf("expected 0 reverts, got %d", reverted)
	}
}

func TestSweep_SecondPassFindsNothing(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	monitor := newMonitor(repo, NewMockLockStore(), NewMockFeed())

	repo.AddOrder(&domain.Order{
		ID:        "stale-order",
		CompanyID: "company-1",
		Status:    domain.OrderStatusAssigned,
		DriverID:  "driver-a",
		UpdatedAt: time.Now().Add(-time.Hour),
	})

	ctx := context.Background()
	if n, err := monitor.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("first sweep: n=%d err=%v", n, err)
	}
	if n, err := monitor.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
	if len(repo.HistoryFor("stale-order")) != 1 {
		t.Error("expected a single revert entry across repeated sweeps")
	}
}

// Exercises the dispatcher-creates, driver-accepts, timeout-reverts sequence
// end to end and checks the resulting audit trail.
func TestAssignmentTimeout_EndToEnd(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	feed := NewMockFeed()
	svc := newOrderService(repo, NewMockPositionStore(), nil, feed)
	monitor := newMonitor(repo, NewMockLockStore(), feed)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, service.CreateOrderRequest{
		CompanyID:       "company-1",
		CreatedBy:       "dispatcher-1",
		PickupAddress:   "a",
		DeliveryAddress: "b",
		Price:           10000,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := svc.AcceptOrder(ctx, order.ID, "driver-a"); err != nil {
		t.Fatalf("AcceptOrder: %v", err)
	}

	// Age the assignment past the timeout.
	repo.GetOrder(order.ID).UpdatedAt = time.Now().Add(-2 * time.Minute)

	if n, err := monitor.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}

	got := repo.GetOrder(order.ID)
	if got.Status != domain.OrderStatusPending || got.DriverID != "" {
		t.Fatalf("expected reverted pending order, got %+v", got)
	}

	history := repo.HistoryFor(order.ID)
	if len(history) != 3 {
		t.Fatalf("expected 3 history entries (created, assigned, reverted), got %d", len(history))
	}
	if history[0].Status != domain.OrderStatusPending || history[0].Actor != "dispatcher-1" {
		t.Errorf("entry 0: %+v", history[0])
	}
	if history[1].Status != domain.OrderStatusAssigned || history[1].Actor != "driver-a" {
		t.Errorf("entry 1: %+v", history[1])
	}
	if !history[2].IsSystemRevert() {
		t.Errorf("entry 2: expected system revert, got %+v", history[2])
	}

	// The order is claimable again after the revert.
	if _, err := svc.AcceptOrder(ctx, order.ID, "driver-b"); err != nil {
		t.Fatalf("re-accept after revert: %v", err)
	}
}
