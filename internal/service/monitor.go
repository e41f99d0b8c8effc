package service

import (
	"context"
	"errors"
	"log"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

const (
	// DefaultAssignmentTimeout is how long an order may sit in ASSIGNED
	// without advancing before it is reverted to PENDING.
	DefaultAssignmentTimeout = 60 * time.Second

	// DefaultSweepInterval is how often the monitor scans for stale orders.
	DefaultSweepInterval = 15 * time.Second
)

// TimeoutMonitor reverts orders stuck in ASSIGNED past the deadline: a
// driver who claims an order and then stalls (abandons it, loses
// connectivity) must not block the order from other drivers.
//
// The sweep runs server-side only. A Redis leader lock keeps horizontally
// scaled replicas from sweeping the same tick; even without it the per-order
// conditional revert makes duplicate sweeps harmless. The deadline is a
// heuristic safety net, not a hard real-time guarantee.
type TimeoutMonitor struct {
	orderRepo repository.OrderRepository
	locks     redis.LockStoreInterface
	feed      redis.FeedPublisher
	timeout   time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewTimeoutMonitor creates a new TimeoutMonitor. Zero durations fall back
// to the defaults.
func NewTimeoutMonitor(
	orderRepo repository.OrderRepository,
	locks redis.LockStoreInterface,
	feed redis.FeedPublisher,
	timeout, interval time.Duration,
) *TimeoutMonitor {
	if timeout <= 0 {
		timeout = DefaultAssignmentTimeout
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &TimeoutMonitor{
		orderRepo: orderRepo,
		locks:     locks,
		feed:      feed,
		timeout:   timeout,
		interval:  interval,
		now:       time.Now,
	}
}

// Run executes sweep ticks until ctx is cancelled. Tick failures are logged
// and absorbed; the loop itself never dies.
func (m *TimeoutMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("timeout monitor: started (timeout=%s interval=%s)", m.timeout, m.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("timeout monitor: stopped")
			return
		case <-ticker.C:
			if n, err := m.Sweep(ctx); err != nil {
				log.Printf("timeout monitor: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("timeout monitor: reverted %d stale order(s)", n)
			}
		}
	}
}

// Sweep performs one sweep pass and returns the number of orders reverted.
// When another replica holds the leader lock the pass is skipped entirely.
func (m *TimeoutMonitor) Sweep(ctx context.Context) (int, error) {
	if m.locks != nil {
		acquired, err := m.locks.AcquireSweepLock(ctx, m.interval)
		if err != nil {
			return 0, err
		}
		if !acquired {
			return 0, nil
		}
		defer func() {
			_ = m.locks.ReleaseSweepLock(ctx)
		}()
	}

	deadline := m.now().Add(-m.timeout)
	stale, err := m.orderRepo.ListStaleAssigned(ctx, deadline)
	if err != nil {
		return 0, err
	}

	reverted := 0
	for _, order := range stale {
		if err := m.revert(ctx, order); err != nil {
			// Skip and let the next tick re-select the order; reverts are
			// retried by repetition, not by in-tick retry logic.
			log.Printf("timeout monitor: revert of order %s failed: %v", order.ID, err)
			continue
		}
		reverted++
	}

	return reverted, nil
}

func (m *TimeoutMonitor) revert(ctx context.Context, order *domain.Order) error {
	err := m.orderRepo.RevertAssignment(ctx, order.ID, m.now())
	if err != nil {
		// Someone advanced or already reverted the order between the scan
		// and the write. The order is no longer stale; nothing to do.
		if errors.Is(err, repository.ErrConflict) {
			return nil
		}
		return err
	}

	if m.feed != nil {
		event := domain.OrderEvent{
			OrderID:   order.ID,
			CompanyID: order.CompanyID,
			Status:    domain.OrderStatusPending,
			Kind:      domain.OrderEventReverted,
		}
		if pubErr := m.feed.Publish(ctx, event); pubErr != nil {
			log.Printf("timeout monitor: publish revert of order %s: %v", order.ID, pubErr)
		}
	}

	return nil
}
