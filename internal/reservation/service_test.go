package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/train-station/internal/model"
)

// memStore is an in-memory Store.  A single mutex makes each order
// commit atomic, mirroring the unique index of the SQL store.
type memStore struct {
	mu       sync.Mutex
	journeys map[uint64]Capacity
	taken    map[SeatRequest]uint64
	orders   map[uint64]*model.Order
	nextID   uint64
	writes   int
	fail     error
}

func newMemStore() *memStore {
	return &memStore{
		journeys: map[uint64]Capacity{
			1: {CargoCount: 10, SeatsPerCargo: 50},
			2: {CargoCount: 2, SeatsPerCargo: 4},
		},
		taken:  make(map[SeatRequest]uint64),
		orders: make(map[uint64]*model.Order),
	}
}

func (m *memStore) Capacities(_ context.Context, ids []uint64) (map[uint64]Capacity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	out := make(map[uint64]Capacity)
	for _, id := range ids {
		if c, ok := m.journeys[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (m *memStore) CreateOrder(_ context.Context, ownerID uint64, seats []SeatRequest) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, s := range seats {
		if _, ok := m.taken[s]; ok {
			return nil, &SeatTakenError{JourneyID: s.JourneyID, Cargo: s.Cargo, Seat: s.Seat}
		}
	}
	m.nextID++
	order := &model.Order{ID: m.nextID, OwnerID: ownerID, CreatedAt: time.Now().UTC()}
	for i, s := range seats {
		m.taken[s] = order.ID
		order.Tickets = append(order.Tickets, model.Ticket{
			ID: uint64(i + 1), OrderID: order.ID, JourneyID: s.JourneyID, Cargo: s.Cargo, Seat: s.Seat,
		})
	}
	m.orders[order.ID] = order
	m.writes++
	return order, nil
}

func (m *memStore) JourneySeats(_ context.Context, journeyID uint64) (Capacity, []model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Capacity{}, nil, m.fail
	}
	c, ok := m.journeys[journeyID]
	if !ok {
		return c, nil, ErrJourneyNotFound
	}
	var tickets []model.Ticket
	for s, oid := range m.taken {
		if s.JourneyID == journeyID {
			tickets = append(tickets, model.Ticket{OrderID: oid, JourneyID: s.JourneyID, Cargo: s.Cargo, Seat: s.Seat})
		}
	}
	return c, tickets, nil
}

func (m *memStore) DeleteOrder(_ context.Context, ownerID, orderID uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	o, ok := m.orders[orderID]
	if !ok || o.OwnerID != ownerID {
		return nil, ErrOrderNotFound
	}
	for s, oid := range m.taken {
		if oid == orderID {
			delete(m.taken, s)
		}
	}
	delete(m.orders, orderID)
	return journeyIDs(o.Tickets), nil
}

func (m *memStore) ticketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.taken)
}

// recordingCache keeps generations the way the Redis cache does: Set
// is ignored once Invalidate has moved the journey past the reader's
// generation.
type recordingCache struct {
	mu          sync.Mutex
	entries     map[uint64]*Availability
	gens        map[uint64]uint64
	invalidated []uint64
	rejected    int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[uint64]*Availability), gens: make(map[uint64]uint64)}
}

func (c *recordingCache) Get(_ context.Context, id uint64) (*Availability, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[id]
	return a, c.gens[id], ok
}

func (c *recordingCache) Set(_ context.Context, a *Availability, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[a.JourneyID] != gen {
		c.rejected++
		return
	}
	c.entries[a.JourneyID] = a
}

func (c *recordingCache) Invalidate(_ context.Context, ids ...uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.gens[id]++
		delete(c.entries, id)
	}
	c.invalidated = append(c.invalidated, ids...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	orders []*model.Order
	err    error
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, o *model.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, o)
	return p.err
}

func (p *recordingPublisher) published() []*model.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.Order(nil), p.orders...)
}

// stallingPublisher blocks every publish until its context ends.
type stallingPublisher struct {
	done chan error
}

func (p *stallingPublisher) PublishOrderPlaced(ctx context.Context, _ *model.Order) error {
	<-ctx.Done()
	p.done <- ctx.Err()
	return ctx.Err()
}

func seats(s ...SeatRequest) Request { return Request{OwnerID: 7, Tickets: s} }

func TestPlaceOrder(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)

	order, err := svc.PlaceOrder(context.Background(), seats(
		SeatRequest{JourneyID: 1, Cargo: 3, Seat: 12},
		SeatRequest{JourneyID: 1, Cargo: 3, Seat: 13},
	))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), order.OwnerID)
	require.Len(t, order.Tickets, 2)
	assert.Equal(t, 12, order.Tickets[0].Seat)
	assert.Equal(t, 13, order.Tickets[1].Seat)
	assert.Equal(t, 2, store.ticketCount())
}

func TestPlaceOrderEmpty(t *testing.T) {
	store := newMemStore()
	_, err := NewService(store).PlaceOrder(context.Background(), Request{OwnerID: 7})
	assert.ErrorIs(t, err, ErrEmptyOrder)
	assert.Zero(t, store.writes)
}

func TestPlaceOrderRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		want  error
		index int
		field string
	}{
		{
			name:  "cargo out of range",
			req:   seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 1}, SeatRequest{JourneyID: 1, Cargo: 11, Seat: 1}),
			want:  ErrInvalidCargo,
			index: 1,
			field: "cargo",
		},
		{
			name:  "seat out of range",
			req:   seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 51}),
			want:  ErrInvalidSeat,
			index: 0,
			field: "seat",
		},
		{
			name:  "seat zero",
			req:   seats(SeatRequest{JourneyID: 2, Cargo: 1, Seat: 0}),
			want:  ErrInvalidSeat,
			index: 0,
			field: "seat",
		},
		{
			name:  "unknown journey",
			req:   seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 1}, SeatRequest{JourneyID: 99, Cargo: 1, Seat: 1}),
			want:  ErrJourneyNotFound,
			index: 1,
			field: "journey",
		},
		{
			name: "same seat twice",
			req: seats(
				SeatRequest{JourneyID: 1, Cargo: 2, Seat: 5},
				SeatRequest{JourneyID: 1, Cargo: 2, Seat: 6},
				SeatRequest{JourneyID: 1, Cargo: 2, Seat: 5},
			),
			want:  ErrDuplicateSeat,
			index: 2,
			field: "seat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			_, err := NewService(store).PlaceOrder(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)

			var te *TicketError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.index, te.Index)
			assert.Equal(t, tt.field, te.Field)
			assert.Zero(t, store.writes)
			assert.Zero(t, store.ticketCount())
		})
	}
}

func TestDuplicateSeatErrorPositions(t *testing.T) {
	err := NewService(newMemStore()).Validate(context.Background(), seats(
		SeatRequest{JourneyID: 1, Cargo: 2, Seat: 5},
		SeatRequest{JourneyID: 1, Cargo: 2, Seat: 5},
	))
	var dup *DuplicateSeatError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, 0, dup.First)
	assert.Equal(t, 1, dup.Index)
}

func TestSameSeatOnDifferentJourneysIsNotDuplicate(t *testing.T) {
	_, err := NewService(newMemStore()).PlaceOrder(context.Background(), seats(
		SeatRequest{JourneyID: 1, Cargo: 1, Seat: 1},
		SeatRequest{JourneyID: 2, Cargo: 1, Seat: 1},
	))
	assert.NoError(t, err)
}

func TestPlaceOrderSeatTaken(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 1, Cargo: 3, Seat: 12}))
	require.NoError(t, err)

	_, err = svc.PlaceOrder(ctx, Request{OwnerID: 8, Tickets: []SeatRequest{{JourneyID: 1, Cargo: 3, Seat: 12}}})
	require.ErrorIs(t, err, ErrSeatTaken)
	var taken *SeatTakenError
	require.True(t, errors.As(err, &taken))
	assert.Equal(t, SeatTakenError{JourneyID: 1, Cargo: 3, Seat: 12}, *taken)
	assert.Equal(t, 1, store.ticketCount())
	assert.Equal(t, 1, store.writes)
}

func TestPlaceOrderIsAllOrNothing(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 2, Cargo: 2, Seat: 4}))
	require.NoError(t, err)

	_, err = svc.PlaceOrder(ctx, Request{OwnerID: 8, Tickets: []SeatRequest{
		{JourneyID: 2, Cargo: 1, Seat: 1},
		{JourneyID: 2, Cargo: 1, Seat: 2},
		{JourneyID: 2, Cargo: 1, Seat: 3},
		{JourneyID: 2, Cargo: 2, Seat: 4},
	}})
	require.ErrorIs(t, err, ErrSeatTaken)

	a, err := svc.Availability(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, a.FreeCount)
	assert.False(t, a.IsTaken(1, 1))
}

func TestConcurrentOrdersForOneSeatHaveOneWinner(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	const n = 32

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), Request{
				OwnerID: uint64(i + 1),
				Tickets: []SeatRequest{{JourneyID: 1, Cargo: 5, Seat: 25}},
			})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, ErrSeatTaken)
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, store.ticketCount())
}

func TestPlaceOrderStorageFailure(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection reset")

	_, err := NewService(store).PlaceOrder(context.Background(), seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 1}))
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, store.fail)
	assert.NotErrorIs(t, err, ErrSeatTaken)
}

func TestAvailability(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	a, err := svc.Availability(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 500, a.TotalSeats)
	assert.Equal(t, 500, a.FreeCount)

	_, err = svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 9}, SeatRequest{JourneyID: 1, Cargo: 1, Seat: 2}))
	require.NoError(t, err)

	a, err = svc.Availability(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 498, a.FreeCount)
	assert.Equal(t, []int{2, 9}, a.TakenSeats[1])

	_, err = svc.Availability(ctx, 99)
	assert.ErrorIs(t, err, ErrJourneyNotFound)
}

func TestAvailabilityStorageFailure(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("timeout")
	_, err := NewService(store).Availability(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestCacheIsInvalidatedOnCommitAndCancel(t *testing.T) {
	store := newMemStore()
	cache := newRecordingCache()
	svc := NewService(store, WithCache(cache))
	ctx := context.Background()

	_, err := svc.Availability(ctx, 1)
	require.NoError(t, err)
	_, _, cached := cache.Get(ctx, 1)
	require.True(t, cached)

	order, err := svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 1}))
	require.NoError(t, err)
	_, _, cached = cache.Get(ctx, 1)
	assert.False(t, cached)

	a, err := svc.Availability(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 499, a.FreeCount)

	require.NoError(t, svc.CancelOrder(ctx, 7, order.ID))
	_, _, cached = cache.Get(ctx, 1)
	assert.False(t, cached)
	assert.Equal(t, []uint64{1, 1}, cache.invalidated)

	svc.ForgetJourney(ctx, 2)
	assert.Equal(t, []uint64{1, 1, 2}, cache.invalidated)
}

func TestPublisherSeesCommittedOrders(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(newMemStore(), WithPublisher(pub))
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 1}))
	require.NoError(t, err, "publish failures do not fail the order")
	svc.Wait()
	require.Len(t, pub.published(), 1)
	assert.Same(t, order, pub.published()[0])

	_, err = svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 1}))
	require.Error(t, err)
	svc.Wait()
	assert.Len(t, pub.published(), 1)
}

func TestPlaceOrderDoesNotWaitForPublisher(t *testing.T) {
	pub := &stallingPublisher{done: make(chan error, 1)}
	svc := NewService(newMemStore(), WithPublisher(pub), WithPublishTimeout(300*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	order, err := svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 1}))
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Less(t, elapsed, 100*time.Millisecond)

	// The request ending does not cut the publish short; the timeout does.
	cancel()
	select {
	case err := <-pub.done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("publish was never bounded")
	}
	svc.Wait()
}

func TestPublishBacklogIsBounded(t *testing.T) {
	pub := &stallingPublisher{done: make(chan error, 2*maxPendingEvents)}
	svc := NewService(newMemStore(), WithPublisher(pub), WithPublishTimeout(200*time.Millisecond))
	ctx := context.Background()

	for i := 1; i <= maxPendingEvents+5; i++ {
		_, err := svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 1, Cargo: 1 + (i-1)/50, Seat: 1 + (i-1)%50}))
		require.NoError(t, err)
	}
	svc.Wait()
	assert.Len(t, pub.done, maxPendingEvents)
}

func TestAvailabilityDoesNotCacheProjectionOlderThanCommit(t *testing.T) {
	store := &racingStore{memStore: newMemStore()}
	cache := newRecordingCache()
	svc := NewService(store, WithCache(cache))
	ctx := context.Background()

	// A commit lands between the seat read and the cache write.
	store.afterRead = func() {
		_, err := svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 1, Cargo: 1, Seat: 1}))
		require.NoError(t, err)
	}
	a, err := svc.Availability(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 500, a.FreeCount, "the reader sees the state it loaded")
	assert.Equal(t, 1, cache.rejected)

	store.afterRead = nil
	a, err = svc.Availability(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 499, a.FreeCount)
	cached, _, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, 499, cached.FreeCount)
}

// racingStore runs afterRead once JourneySeats has loaded its snapshot.
type racingStore struct {
	*memStore
	afterRead func()
}

func (s *racingStore) JourneySeats(ctx context.Context, journeyID uint64) (Capacity, []model.Ticket, error) {
	c, tickets, err := s.memStore.JourneySeats(ctx, journeyID)
	if s.afterRead != nil {
		s.afterRead()
	}
	return c, tickets, err
}

func TestCancelOrder(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, seats(SeatRequest{JourneyID: 2, Cargo: 1, Seat: 1}))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.CancelOrder(ctx, 8, order.ID), ErrOrderNotFound)
	require.NoError(t, svc.CancelOrder(ctx, 7, order.ID))
	assert.Zero(t, store.ticketCount())

	_, err = svc.PlaceOrder(ctx, Request{OwnerID: 8, Tickets: []SeatRequest{{JourneyID: 2, Cargo: 1, Seat: 1}}})
	assert.NoError(t, err, "a cancelled seat can be sold again")

	assert.ErrorIs(t, svc.CancelOrder(ctx, 7, 999), ErrOrderNotFound)

	store.fail = errors.New("gone")
	assert.ErrorIs(t, svc.CancelOrder(ctx, 8, 2), ErrStorageUnavailable)
}

func TestNewServiceRequiresStore(t *testing.T) {
	assert.Panics(t, func() { NewService(nil) })
}
