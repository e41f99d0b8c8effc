package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// OrderService handles order lifecycle operations. Every status mutation
// goes through domain.ValidateTransition before any write is attempted; the
// repository's conditional writes re-check the prior status at the row
// level, so not even a misbehaving caller can skip a state.
type OrderService struct {
	orderRepo   repository.OrderRepository
	historyRepo repository.HistoryRepository
	location    *LocationService
	geocoder    Geocoder
	feed        redis.FeedPublisher
	radiusKm    float64
	now         func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repository.OrderRepository,
	historyRepo repository.HistoryRepository,
	location *LocationService,
	geocoder Geocoder,
	feed redis.FeedPublisher,
	radiusKm float64,
) *OrderService {
	if radiusKm <= 0 {
		radiusKm = DefaultGeofenceRadiusKm
	}
	return &OrderService{
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
		location:    location,
		geocoder:    geocoder,
		feed:        feed,
		radiusKm:    radiusKm,
		now:         time.Now,
	}
}

// CreateOrderRequest contains the parameters for creating an order.
type CreateOrderRequest struct {
	CompanyID       string
	CreatedBy       string // dispatcher id, recorded in the audit trail
	PickupAddress   string
	PickupCoord     *domain.Coordinate // optional; geocoded from address when nil
	DeliveryAddress string
	DeliveryCoord   *domain.Coordinate
	Price           float64
}

// CreateOrder creates a new order in PENDING status with a generated pickup
// confirmation code. Geocoding is best-effort: an unresolved address leaves
// the coordinate nil and the order discoverable by every driver.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	order := &domain.Order{
		ID:              uuid.New().String(),
		CompanyID:       req.CompanyID,
		Status:          domain.OrderStatusPending,
		PickupAddress:   req.PickupAddress,
		PickupCoord:     s.resolveCoord(ctx, req.PickupCoord, req.PickupAddress),
		DeliveryAddress: req.DeliveryAddress,
		DeliveryCoord:   s.resolveCoord(ctx, req.DeliveryCoord, req.DeliveryAddress),
		Price:           req.Price,
		PickupCode:      newPickupCode(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orderRepo.Create(ctx, order, req.CreatedBy); err != nil {
		return nil, err
	}

	s.publish(ctx, order, domain.OrderEventCreated)
	return order, nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.orderRepo.GetByID(ctx, orderID)
}

// GetOrderHistory retrieves an order's audit trail, oldest first.
func (s *OrderService) GetOrderHistory(ctx context.Context, orderID string) ([]*domain.HistoryEntry, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if _, err := s.orderRepo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByOrder(ctx, orderID)
}

// ListOrders retrieves a company's orders for the dispatcher panel.
func (s *OrderService) ListOrders(ctx context.Context, companyID string) ([]*domain.Order, error) {
	if companyID == "" {
		return nil, ErrInvalidCompanyID
	}
	return s.orderRepo.ListByCompany(ctx, companyID)
}

// ListVisibleOrders returns the orders a driver may see: the driver's own
// assigned orders plus pending orders within the geofence radius of the
// driver's last known position.
func (s *OrderService) ListVisibleOrders(ctx context.Context, companyID, driverID string) ([]*domain.Order, error) {
	if companyID == "" {
		return nil, ErrInvalidCompanyID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	orders, err := s.orderRepo.ListOpenByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	pos, err := s.location.LastPosition(ctx, driverID)
	if err != nil {
		// A position lookup failure behaves like an unknown position:
		// fail closed rather than show the whole board.
		log.Printf("visible orders: position lookup for driver %s failed: %v", driverID, err)
		pos = nil
	}

	return FilterByProximity(orders, pos, driverID, s.radiusKm), nil
}

// AcceptOrder claims a PENDING order for a driver. The claim is a
// conditional write: of two racing accepts exactly one succeeds and the
// other gets ErrOrderAlreadyTaken.
func (s *OrderService) AcceptOrder(ctx context.Context, orderID, driverID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	if err := s.orderRepo.Accept(ctx, orderID, driverID, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrOrderAlreadyTaken
		}
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, order, domain.OrderEventUpdated)
	return order, nil
}

// AdvanceStatusRequest contains the parameters for advancing an order.
type AdvanceStatusRequest struct {
	OrderID    string
	DriverID   string
	To         domain.OrderStatus
	PickupCode string // required when advancing to PICKED_UP
}

// AdvanceStatus moves an order to the requested status. The transition
// validator is the single mandatory gate; on any validation failure the
// mutation is abandoned with no partial state change.
func (s *OrderService) AdvanceStatus(ctx context.Context, req AdvanceStatusRequest) (*domain.Order, error) {
	if req.OrderID == "" {
		return nil, ErrInvalidOrderID
	}
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if !domain.KnownStatus(req.To) {
		return nil, ErrInvalidStatus
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if order.DriverID != req.DriverID {
		return nil, ErrNotAssignedDriver
	}

	if err := domain.ValidateTransition(order, req.To); err != nil {
		return nil, err
	}

	if req.To == domain.OrderStatusPickedUp && req.PickupCode != order.PickupCode {
		return nil, ErrPickupCodeMismatch
	}

	now := s.now()
	if err := s.orderRepo.AdvanceStatus(ctx, order.ID, order.Status, req.To, req.DriverID, now); err != nil {
		return nil, err
	}

	order.Status = req.To
	order.UpdatedAt = now

	s.publish(ctx, order, domain.OrderEventUpdated)
	return order, nil
}

func (s *OrderService) validateCreateRequest(req CreateOrderRequest) error {
	if req.CompanyID == "" {
		return ErrInvalidCompanyID
	}
	if req.PickupAddress == "" {
		return ErrInvalidPickupAddress
	}
	if req.DeliveryAddress == "" {
		return ErrInvalidDeliveryAddress
	}
	if req.Price < 0 {
		return ErrInvalidPrice
	}
	if req.PickupCoord != nil && (!geo.ValidLatitude(req.PickupCoord.Lat) || !geo.ValidLongitude(req.PickupCoord.Lng)) {
		return ErrInvalidLocation
	}
	if req.DeliveryCoord != nil && (!geo.ValidLatitude(req.DeliveryCoord.Lat) || !geo.ValidLongitude(req.DeliveryCoord.Lng)) {
		return ErrInvalidLocation
	}
	return nil
}

// resolveCoord prefers an explicitly supplied coordinate and falls back to
// the geocoder. Resolution failure is non-fatal.
func (s *OrderService) resolveCoord(ctx context.Context, supplied *domain.Coordinate, address string) *domain.Coordinate {
	if supplied != nil {
		return supplied
	}
	if s.geocoder == nil {
		return nil
	}
	coord, err := s.geocoder.Resolve(ctx, address)
	if err != nil {
		if !errors.Is(err, ErrUnresolvedAddress) {
			log.Printf("geocode %q: %v", address, err)
		}
		return nil
	}
	return coord
}

// publish announces a change on the push channel. Failures are absorbed:
// the polling fallback covers observers that missed the signal.
func (s *OrderService) publish(ctx context.Context, order *domain.Order, kind domain.OrderEventKind) {
	if s.feed == nil {
		return
	}
	event := domain.OrderEvent{
		OrderID:   order.ID,
		CompanyID: order.CompanyID,
		Status:    order.Status,
		DriverID:  order.DriverID,
		Kind:      kind,
	}
	if err := s.feed.Publish(ctx, event); err != nil {
		log.Printf("feed publish for order %s: %v", order.ID, err)
	}
}

// newPickupCode generates the short numeric confirmation code carried by
// every order.
func newPickupCode() string {
	return fmt.Sprintf("%04d", rand.Intn(10000))
}
