package grouporder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memoryGroupRepository keeps aggregates by value so the service cannot
// mutate stored state without calling Save
type memoryGroupRepository struct {
	mu      sync.Mutex
	groups  map[uuid.UUID]grouporder.Group
	saves   int
	failErr error
}

func newMemoryGroupRepository() *memoryGroupRepository {
	return &memoryGroupRepository{groups: make(map[uuid.UUID]grouporder.Group)}
}

func cloneGroup(g *grouporder.Group) grouporder.Group {
	cp := *g
	cp.Members = append([]grouporder.Member(nil), g.Members...)
	cp.Items = append([]grouporder.Item(nil), g.Items...)
	cp.ClearDomainEvents()
	return cp
}

func (r *memoryGroupRepository) FindByID(_ context.Context, id uuid.UUID) (*grouporder.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok || g.IsDeleted() {
		return nil, grouporder.ErrGroupNotFound
	}
	cp := cloneGroup(&g)
	return &cp, nil
}

func (r *memoryGroupRepository) FindByItemID(ctx context.Context, itemID uuid.UUID) (*grouporder.Group, error) {
	r.mu.Lock()
	var found uuid.UUID
	for id, g := range r.groups {
		if g.ItemByID(itemID) != nil {
			found = id
		}
	}
	r.mu.Unlock()
	if found == uuid.Nil {
		return nil, grouporder.ErrGroupNotFound
	}
	return r.FindByID(ctx, found)
}

func (r *memoryGroupRepository) FindByUser(_ context.Context, userID uuid.UUID, _ grouporder.ListFilter) ([]grouporder.Group, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]grouporder.Group, 0)
	for _, g := range r.groups {
		if !g.IsDeleted() && g.MemberByUser(userID) != nil {
			out = append(out, cloneGroup(&g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memoryGroupRepository) FindExpirable(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for id, g := range r.groups {
		if g.IsExpired(now) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memoryGroupRepository) FindStaleCheckouts(_ context.Context, startedBefore time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for id, g := range r.groups {
		if g.Status != grouporder.GroupStatusCheckingOut || len(ids) >= limit {
			continue
		}
		if g.CheckoutStartedAt == nil || g.CheckoutStartedAt.Before(startedBefore) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memoryGroupRepository) Save(_ context.Context, g *grouporder.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	if stored, ok := r.groups[g.ID]; ok {
		if stored.Version != g.Version {
			return grouporder.ErrConcurrentModification
		}
		g.IncrementVersion()
	}
	r.saves++
	r.groups[g.ID] = cloneGroup(g)
	return nil
}

func (r *memoryGroupRepository) stored(id uuid.UUID) grouporder.Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.groups[id]
}

// recordingPublisher captures published event types in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *recordingPublisher) count(eventType string) int {
	n := 0
	for _, t := range p.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// MockCatalog is a mock implementation of grouporder.Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetCurrentPrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*grouporder.PriceQuote, error) {
	args := m.Called(ctx, productID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*grouporder.PriceQuote), args.Error(1)
}

// MockAddressBook is a mock implementation of grouporder.AddressBook
type MockAddressBook struct {
	mock.Mock
}

func (m *MockAddressBook) GetAddress(ctx context.Context, addressID, ownerUserID uuid.UUID) (*grouporder.Address, error) {
	args := m.Called(ctx, addressID, ownerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*grouporder.Address), args.Error(1)
}

// MockUserDirectory is a mock implementation of grouporder.UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetUser(ctx context.Context, id uuid.UUID) (*grouporder.UserInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*grouporder.UserInfo), args.Error(1)
}

// MockShippingCalculator is a mock implementation of grouporder.ShippingCalculator
type MockShippingCalculator struct {
	mock.Mock
}

func (m *MockShippingCalculator) CalculateFee(ctx context.Context, req grouporder.ShippingQuoteRequest) (decimal.Decimal, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockPaymentGateway is a mock implementation of grouporder.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) ValidateMethod(ctx context.Context, userID uuid.UUID, methodRef string) error {
	args := m.Called(ctx, userID, methodRef)
	return args.Error(0)
}

func (m *MockPaymentGateway) CreatePaymentIntent(ctx context.Context, req grouporder.PaymentIntentRequest) (*grouporder.PaymentIntent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*grouporder.PaymentIntent), args.Error(1)
}

func (m *MockPaymentGateway) CancelPaymentIntent(ctx context.Context, intentID string) error {
	args := m.Called(ctx, intentID)
	return args.Error(0)
}

// MockOrderWriter is a mock implementation of grouporder.OrderWriter
type MockOrderWriter struct {
	mock.Mock
}

func (m *MockOrderWriter) CreateOrder(ctx context.Context, params grouporder.OrderParams) (grouporder.OrderRef, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(grouporder.OrderRef), args.Error(1)
}

func (m *MockOrderWriter) AttachPaymentIntent(ctx context.Context, ref grouporder.OrderRef, intentID string) error {
	args := m.Called(ctx, ref, intentID)
	return args.Error(0)
}

func (m *MockOrderWriter) DiscardOrder(ctx context.Context, ref grouporder.OrderRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockOrderWriter) DiscardGroupOrders(ctx context.Context, groupID uuid.UUID) ([]grouporder.DiscardedOrder, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]grouporder.DiscardedOrder), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// fakeHub records subscriptions and the initial message handed to each
type fakeHub struct {
	mu       sync.Mutex
	initial  map[string]grouporder.RealtimeMessage
	messages []grouporder.RealtimeMessage
}

func newFakeHub() *fakeHub {
	return &fakeHub{initial: make(map[string]grouporder.RealtimeMessage)}
}

func (h *fakeHub) Publish(_ context.Context, msg grouporder.RealtimeMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return nil
}

func (h *fakeHub) Subscribe(_ uuid.UUID, subscriberID string, initial grouporder.RealtimeMessage) (<-chan grouporder.RealtimeMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initial[subscriberID] = initial
	ch := make(chan grouporder.RealtimeMessage, 1)
	ch <- initial
	return ch, nil
}

func (h *fakeHub) Unsubscribe(_ uuid.UUID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.initial, subscriberID)
}

func (h *fakeHub) SubscriberCount(_ uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.initial)
}
