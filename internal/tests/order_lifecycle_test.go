package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

func newOrderService(repo *MockOrderRepository, positions *MockPositionStore, geocoder service.Geocoder, feed *MockFeed) *service.OrderService {
	location := service.NewLocationService(positions, time.Minute)
	var publisher redis.FeedPublisher
	if feed != nil {
		publisher = feed
	}
	return service.NewOrderService(repo, repo, location, geocoder, publisher, 5.0)
}

func TestCreateOrder_StartsPendingWithPickupCode(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	feed := NewMockFeed()
	geocoder := NewMockGeocoder()
	geocoder.SetPoint("Abay Ave 1", &domain.Coordinate{Lat: 43.24, Lng: 76.91})

	svc := newOrderService(repo, NewMockPositionStore(), geocoder, feed)

	order, err := svc.CreateOrder(context.Background(), service.CreateOrderRequest{
		CompanyID:       "company-1",
		CreatedBy:       "dispatcher-1",
		PickupAddress:   "Abay Ave 1",
		DeliveryAddress: "Dostyk Ave 99",
		Price:           10000,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", order.Status)
	}
	if order.DriverID != "" {
		t.Errorf("expected no driver on a pending order, got %s", order.DriverID)
	}
	if len(order.PickupCode) != 4 {
		t.Errorf("expected 4-digit pickup code, got %q", order.PickupCode)
	}
	if order.PickupCoord == nil || order.PickupCoord.Lat != 43.24 {
		t.Errorf("expected geocoded pickup coordinate, got %+v", order.PickupCoord)
	}
	if order.DeliveryCoord != nil {
		t.Errorf("expected unresolved delivery coordinate to stay nil, got %+v", order.DeliveryCoord)
	}

	history := repo.HistoryFor(order.ID)
	if len(history) != 1 || history[0].Status != domain.OrderStatusPending || history[0].Actor != "dispatcher-1" {
		t.Errorf("expected one creation history entry by dispatcher-1, got %+v", history)
	}

	published := feed.Published()
	if len(published) != 1 || published[0].Kind != domain.OrderEventCreated {
		t.Errorf("expected one created feed event, got %+v", published)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	t.Parallel()

	svc := newOrderService(NewMockOrderRepository(), NewMockPositionStore(), nil, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  service.CreateOrderRequest
		want error
	}{
		{"missing company", service.CreateOrderRequest{PickupAddress: "a", DeliveryAddress: "b"}, service.ErrInvalidCompanyID},
		{"missing pickup", service.CreateOrderRequest{CompanyID: "c", DeliveryAddress: "b"}, service.ErrInvalidPickupAddress},
		{"missing delivery", service.CreateOrderRequest{CompanyID: "c", PickupAddress: "a"}, service.ErrInvalidDeliveryAddress},
		{"negative price", service.CreateOrderRequest{CompanyID: "c", PickupAddress: "a", DeliveryAddress: "b", Price: -1}, service.ErrInvalidPrice},
		{"bad coordinate", service.CreateOrderRequest{CompanyID: "c", PickupAddress: "a", DeliveryAddress: "b", PickupCoord: &domain.Coordinate{Lat: 91, Lng: 0}}, service.ErrInvalidLocation},
	}

	for _, tc := range cases {
		if _, err := svc.CreateOrder(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestAcceptOrder_BindsDriverAndRefreshesUpdatedAt(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	feed := NewMockFeed()
	svc := newOrderService(repo, NewMockPositionStore(), nil, feed)
	ctx := context.Background()

	created := time.Now().Add(-time.Minute)
	repo.AddOrder(&domain.Order{
		ID:        "order-1",
		CompanyID: "company-1",
		Status:    domain.OrderStatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	})

	order, err := svc.AcceptOrder(ctx, "order-1", "driver-a")
	if err != nil {
		t.Fatalf("AcceptOrder: %v", err)
	}

	if order.Status != domain.OrderStatusAssigned {
		t.Errorf("expected ASSIGNED, got %s", order.Status)
	}
	if order.DriverID != "driver-a" {
		t.Errorf("expected driver-a bound, got %q", order.DriverID)
	}
	if !order.UpdatedAt.After(created) {
		t.Error("expected updated_at refreshed by accept")
	}

	history := repo.HistoryFor("order-1")
	if len(history) != 1 || history[0].Status != domain.OrderStatusAssigned || history[0].Actor != "driver-a" {
		t.Errorf("expected an ASSIGNED history entry by driver-a, got %+v", history)
	}
}

func TestAcceptOrder_NonPendingConflicts(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	svc := newOrderService(repo, NewMockPositionStore(), nil, nil)
	ctx := context.Background()

	repo.AddOrder(&domain.Order{
		ID:        "order-1",
		CompanyID: "company-1",
		Status:    domain.OrderStatusAssigned,
		DriverID:  "driver-a",
	})

	if _, err := svc.AcceptOrder(ctx, "order-1", "driver-b"); !errors.Is(err, service.ErrOrderAlreadyTaken) {
		t.Errorf("expected ErrOrderAlreadyTaken, got %v", err)
	}

	if _, err := svc.AcceptOrder(ctx, "missing", "driver-b"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// The loser must not have overwritten the winner.
	if got := repo.GetOrder("order-1").DriverID; got != "driver-a" {
		t.Errorf("expected driver-a still bound, got %q", got)
	}
}

func TestAdvanceStatus_FullLifecycle(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	feed := NewMockFeed()
	geocoder := NewMockGeocoder()
	svc := newOrderService(repo, NewMockPositionStore(), geocoder, feed)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, service.CreateOrderRequest{
		CompanyID:       "company-1",
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

	steps := []struct {
		to   domain.OrderStatus
		code string
	}{
		{domain.OrderStatusEnRouteToPickup, ""},
		{domain.OrderStatusPickedUp, order.PickupCode},
		{domain.OrderStatusDelivered, ""},
	}
	for _, step := range steps {
		if _, err := svc.AdvanceStatus(ctx, service.AdvanceStatusRequest{
			OrderID:    order.ID,
			DriverID:   "driver-a",
			To:         step.to,
			PickupCode: step.code,
		}); err != nil {
			t.Fatalf("advance to %s: %v", step.to, err)
		}
	}

	if got := repo.GetOrder(order.ID).Status; got != domain.OrderStatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", got)
	}

	// DELIVERED is terminal.
	if _, err := svc.AdvanceStatus(ctx, service.AdvanceStatusRequest{
		OrderID:  order.ID,
		DriverID: "driver-a",
		To:       domain.OrderStatusPending,
	}); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("expected ErrIllegalTransition on terminal order, got %v", err)
	}

	// The non-revert history sequence must walk the linear chain in order.
	want := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusAssigned,
		domain.OrderStatusEnRouteToPickup,
		domain.OrderStatusPickedUp,
		domain.OrderStatusDelivered,
	}
	history := repo.HistoryFor(order.ID)
	if len(history) != len(want) {
		t.Fatalf("expected %d history entries, got %d", len(want), len(history))
	}
	for i, entry := range history {
		if entry.Status != want[i] {
			t.Errorf("history[%d]: expected %s, got %s", i, want[i], entry.Status)
		}
		if entry.IsSystemRevert() {
			t.Errorf("history[%d]: unexpected system revert tag", i)
		}
	}
}

func TestAdvanceStatus_RejectsSkipAndRegress(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	svc := newOrderService(repo, NewMockPositionStore(), nil, nil)
	ctx := context.Background()

	repo.AddOrder(&domain.Order{
		ID:         "order-1",
		CompanyID:  "company-1",
		Status:     domain.OrderStatusAssigned,
		DriverID:   "driver-a",
		PickupCode: "1234",
	})

	// Skip a state.
	if _, err := svc.AdvanceStatus(ctx, service.AdvanceStatusRequest{
		OrderID: "order-1", DriverID: "driver-a", To: domain.OrderStatusPickedUp, PickupCode: "1234",
	}); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("skip: expected ErrIllegalTransition, got %v", err)
	}

	// Regress.
	if _, err := svc.AdvanceStatus(ctx, service.AdvanceStatusRequest{
		OrderID: "order-1", DriverID: "driver-a", To: domain.OrderStatusPending,
	}); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("regress: expected ErrIllegalTransition, got %v", err)
	}

	// Unrecognized target status.
	if _, err := svc.AdvanceStatus(ctx, service.AdvanceStatusRequest{
		OrderID: "order-1", DriverID: "driver-a", To: domain.OrderStatus("SHIPPED"),
	}); !errors.Is(err, service.ErrInvalidStatus) {
		t.Errorf("unknown: expected ErrInvalidStatus, got %v", err)
	}

	// No writes happened.
	if got := repo.GetOrder("order-1").Status; got != domain.OrderStatusAssigned {
		t.Errorf("expected status untouched, got %s", got)
	}
	if len(repo.HistoryFor("order-1")) != 0 {
		t.Error("expected no history entries from rejected transitions")
	}
}

func TestAdvanceStatus_WrongDriverForbidden(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	svc := newOrderService(repo, NewMockPositionStore(), nil, nil)

	repo.AddOrder(&domain.Order{
		ID:        "order-1",
		CompanyID: "company-1",
		Status:    domain.OrderStatusAssigned,
		DriverID:  "driver-a",
	})

	_, err := svc.AdvanceStatus(context.Background(), service.AdvanceStatusRequest{
		OrderID: "order-1", DriverID: "driver-b", To: domain.OrderStatusEnRouteToPickup,
	})
	if !errors.Is(err, service.ErrNotAssignedDriver) {
		t.Errorf("expected ErrNotAssignedDriver, got %v", err)
	}
}

func TestAdvanceStatus_PickupCodeChecks(t *testing.T) {
	t.Parallel()

	repo := NewMockOrderRepository()
	svc := newOrderService(repo, NewMockPositionStore(), nil, nil)
	ctx := context.Background()

	// Order misconfigured without a code: precondition failure.
	repo.AddOrder(&domain.Order{
		ID:        "no-code",
		CompanyID: "company-1",
		Status:    domain.OrderStatusEnRouteToPickup,
		DriverID:  "driver-a",
	})
	if _, err := svc.AdvanceStatus(ctx, service.AdvanceStatusRequest{
		OrderID: "no-code", DriverID: "driver-a", To: domain.OrderStatusPickedUp,
	}); !errors.Is(err, domain.ErrPickupCodeRequired) {
		t.Errorf("expected ErrPickupCodeRequired, got %v", err)
	}

	// Wrong code supplied by the driver: mismatch, no state change.
	repo.AddOrder(&domain.Order{
		ID:         "with-code",
		CompanyID:  "company-1",
		Status:     domain.OrderStatusEnRouteToPickup,
		DriverID:   "driver-a",
		PickupCode: "4821",
	})
	if _, err := svc.AdvanceStatus(ctx, service.AdvanceStatusRequest{
		OrderID: "with-code", DriverID: "driver-a", To: domain.OrderStatusPickedUp, PickupCode: "0000",
	}); !errors.Is(err, service.ErrPickupCodeMismatch) {
		t.Errorf("expected ErrPickupCodeMismatch, got %v", err)
	}
	if got := repo.GetOrder("with-code").Status; got != domain.OrderStatusEnRouteToPickup {
		t.Errorf("expected status untouched after mismatch, got %s", got)
	}

	// Correct code advances.
	if _, err := svc.AdvanceStatus(ctx, service.AdvanceStatusRequest{
		OrderID: "with-code", DriverID: "driver-a", To: domain.OrderStatusPickedUp, PickupCode: "4821",
	}); err != nil {
		t.Errorf("expected advance with correct code, got %v", err)
	}
}
