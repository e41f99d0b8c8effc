package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is an in-memory implementation of
// repository.OrderRepository and repository.HistoryRepository. Its
// conditional writes reproduce the row-level compare-and-swap semantics of
// the PostgreSQL implementation, which makes it suitable for race tests.
type MockOrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	history map[string][]*domain.HistoryEntry

	// Counters for verification
	AcceptCallCount  int32
	AdvanceCallCount int32
	RevertCallCount  int32
	ListCallCount    int32

	// Error injection
	CreateError error
	ListError   error
	AcceptError error
	RevertError error
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:  make(map[string]*domain.Order),
		history: make(map[string][]*domain.HistoryEntry),
	}
}

// AddOrder adds an order without writing history (test setup helper).
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order, actor string) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	m.appendHistory(order.ID, order.Status, actor, "", order.CreatedAt)
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) ListByCompany(ctx context.Context, companyID string) ([]*domain.Order, error) {
	atomic.AddInt32(&m.ListCallCount, 1)
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Order
	for _, o := range m.orders {
		if o.CompanyID == companyID {
			copy := *o
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockOrderRepository) ListOpenByCompany(ctx context.Context, companyID string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Order
	for _, o := range m.orders {
		if o.CompanyID == companyID && o.IsOpen() {
			copy := *o
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockOrderRepository) ListStaleAssigned(ctx context.Context, olderThan time.Time) ([]*domain.Order, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Order
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusAssigned && o.UpdatedAt.Before(olderThan) {
			copy := *o
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockOrderRepository) Accept(ctx context.Context, orderID, driverID string, at time.Time) error {
	atomic.AddInt32(&m.AcceptCallCount, 1)
	if m.AcceptError != nil {
		return m.AcceptError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.OrderStatusPending {
		return repository.ErrConflict
	}
	order.Status = domain.OrderStatusAssigned
	order.DriverID = driverID
	order.UpdatedAt = at
	m.appendHistory(orderID, domain.OrderStatusAssigned, driverID, "", at)
	return nil
}

func (m *MockOrderRepository) AdvanceStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, actor string, at time.Time) error {
	atomic.AddInt32(&m.AdvanceCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != from {
		return repository.ErrConflict
	}
	order.Status = to
	order.UpdatedAt = at
	m.appendHistory(orderID, to, actor, "", at)
	return nil
}

func (m *MockOrderRepository) RevertAssignment(ctx context.Context, orderID string, at time.Time) error {
	atomic.AddInt32(&m.RevertCallCount, 1)
	if m.RevertError != nil {
		return m.RevertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.OrderStatusAssigned {
		return repository.ErrConflict
	}
	order.Status = domain.OrderStatusPending
	order.DriverID = ""
	order.UpdatedAt = at
	m.appendHistory(orderID, domain.OrderStatusPending, "", domain.NoteAssignmentTimeout, at)
	return nil
}

func (m *MockOrderRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.history[orderID]
	result := make([]*domain.HistoryEntry, len(entries))
	copy(result, entries)
	return result, nil
}

// GetOrder returns the live order for test assertions.
func (m *MockOrderRepository) GetOrder(id string) *domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}

// HistoryFor returns the recorded history for test assertions.
func (m *MockOrderRepository) HistoryFor(orderID string) []*domain.HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history[orderID]
}

// appendHistory must be called with the write lock held.
func (m *MockOrderRepository) appendHistory(orderID string, status domain.OrderStatus, actor, note string, at time.Time) {
	m.history[orderID] = append(m.history[orderID], &domain.HistoryEntry{
		OrderID:    orderID,
		Status:     status,
		Actor:      actor,
		Note:       note,
		RecordedAt: at,
	})
}

// ──────────────────────────────────────────────
// MOCK POSITION STORE
// ──────────────────────────────────────────────

// MockPositionStore is an in-memory implementation of
// redis.PositionStoreInterface.
type MockPositionStore struct {
	mu        sync.RWMutex
	positions map[string]*domain.DriverPosition

	ReportError error
	LookupError error
}

// NewMockPositionStore creates a new mock position store.
func NewMockPositionStore() *MockPositionStore {
	return &MockPositionStore{positions: make(map[string]*domain.DriverPosition)}
}

// SetPosition seeds a position (test setup helper).
func (m *MockPositionStore) SetPosition(pos *domain.DriverPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.DriverID] = pos
}

func (m *MockPositionStore) ReportPosition(ctx context.Context, driverID string, lat, lng float64, at time.Time) error {
	if m.ReportError != nil {
		return m.ReportError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[driverID] = &domain.DriverPosition{DriverID: driverID, Lat: lat, Lng: lng, RecordedAt: at}
	return nil
}

func (m *MockPositionStore) LastPosition(ctx context.Context, driverID string) (*domain.DriverPosition, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[driverID]
	if !ok {
		return nil, nil
	}
	copy := *pos
	return &copy, nil
}

func (m *MockPositionStore) NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]*domain.DriverPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.DriverPosition
	for _, p := range m.positions {
		copy := *p
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockPositionStore) RemovePosition(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, driverID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory implementation of redis.LockStoreInterface.
type MockLockStore struct {
	mu   sync.Mutex
	held bool

	AcquireCallCount int32
	AcquireError     error
	// Denied forces every acquisition attempt to fail, simulating another
	// replica holding the lock.
	Denied bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{}
}

func (m *MockLockStore) AcquireSweepLock(ctx context.Context, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Denied || m.held {
		return false, nil
	}
	m.held = true
	return true, nil
}

func (m *MockLockStore) ReleaseSweepLock(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held = false
	return nil
}

// ──────────────────────────────────────────────
// MOCK FEED
// ──────────────────────────────────────────────

// MockFeed records published events and fans them out to subscriptions.
type MockFeed struct {
	mu        sync.Mutex
	published []domain.OrderEvent
	subs      []*MockSubscription

	PublishError error
}

// NewMockFeed creates a new mock feed.
func NewMockFeed() *MockFeed {
	return &MockFeed{}
}

func (m *MockFeed) Publish(ctx context.Context, event domain.OrderEvent) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	for _, sub := range m.subs {
		sub.deliver(event)
	}
	return nil
}

// Subscribe opens a mock push subscription; it satisfies service.SubscribeFunc.
func (m *MockFeed) Subscribe(ctx context.Context, companyID string) (service.EventSubscription, error) {
	sub := &MockSubscription{events: make(chan domain.OrderEvent, 16)}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, sub)
	return sub, nil
}

// Published returns the events published so far.
func (m *MockFeed) Published() []domain.OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OrderEvent, len(m.published))
	copy(out, m.published)
	return out
}

// MockSubscription is a mock push-channel subscription.
type MockSubscription struct {
	mu     sync.Mutex
	closed bool
	events chan domain.OrderEvent
}

func (s *MockSubscription) Events() <-chan domain.OrderEvent {
	return s.events
}

func (s *MockSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *MockSubscription) deliver(event domain.OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

// ──────────────────────────────────────────────
// MOCK GEOCODER
// ──────────────────────────────────────────────

// MockGeocoder resolves addresses from a fixed table.
type MockGeocoder struct {
	mu     sync.Mutex
	points map[string]*domain.Coordinate

	ResolveCallCount int32
}

// NewMockGeocoder creates a new mock geocoder.
func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{points: make(map[string]*domain.Coordinate)}
}

// SetPoint seeds a resolvable address.
func (m *MockGeocoder) SetPoint(address string, coord *domain.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[address] = coord
}

func (m *MockGeocoder) Resolve(ctx context.Context, address string) (*domain.Coordinate, error) {
	atomic.AddInt32(&m.ResolveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	coord, ok := m.points[address]
	if !ok {
		return nil, service.ErrUnresolvedAddress
	}
	copy := *coord
	return &copy, nil
}
