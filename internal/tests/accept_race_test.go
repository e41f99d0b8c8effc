package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// Twenty drivers claim the same pending order at once; the conditional
// write must let exactly one through.
func TestAcceptOrder_ConcurrentClaims(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	svc := newOrderService(repo, NewMockPositionStore(), nil, NewMockFeed())

	repo.AddOrder(&domain.Order{
		ID:        "contested",
		CompanyID: "company-1",
		Status:    domain.OrderStatusPending,
		UpdatedAt: time.Now(),
	})

	const drivers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losses  int
	)

	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			driverID := fmt.Sprintf("driver-%d", n)
			order, err := svc.AcceptOrder(context.Background(), "contested", driverID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, order.DriverID)
			case errors.Is(err, service.ErrOrderAlreadyTaken):
				losses++
			default:
				t.Errorf("driver %s: unexpected error %v", driverID, err)
			}
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d (%v)", len(winners), winners)
	}
	if losses != drivers-1 {
		t.Errorf("expected %d rejected claims, got %d", drivers-1, losses)
	}

	got := repo.GetOrder("contested")
	if got.Status != domain.OrderStatusAssigned || got.DriverID != winners[0] {
		t.Errorf("expected order bound to winner %s, got %+v", winners[0], got)
	}
	if entries := repo.HistoryFor("contested"); len(entries) != 1 {
		t.Errorf("expected one ASSIGNED history entry, got %d", len(entries))
	}
}
