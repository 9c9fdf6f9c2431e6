package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/train-station/internal/model"
)

// Store is the persistence boundary of the reservation core.
//
// Capacities returns the layout of every journey in ids that exists;
// unknown ids are absent from the map.  CreateOrder must insert the
// order and all seats as one unit and report a collision with a
// committed ticket as *SeatTakenError.  JourneySeats returns the
// layout and committed tickets of one journey from a single consistent
// read, or ErrJourneyNotFound.  DeleteOrder removes an owner's order and
// its tickets, returns the journeys that lost tickets, and reports
// ErrOrderNotFound when the owner has no such order.
type Store interface {
	Capacities(ctx context.Context, ids []uint64) (map[uint64]Capacity, error)
	CreateOrder(ctx context.Context, ownerID uint64, seats []SeatRequest) (*model.Order, error)
	JourneySeats(ctx context.Context, journeyID uint64) (Capacity, []model.Ticket, error)
	DeleteOrder(ctx context.Context, ownerID, orderID uint64) ([]uint64, error)
}

// Cache stores availability projections.  Implementations must be safe
// for concurrent use; misses and failures are reported as ok == false.
//
// Every journey has a generation that Invalidate moves forward.  Get
// reports the generation it observed, hit or miss, and Set must drop a
// projection whose generation is no longer current: it was computed
// before a commit that has since invalidated the journey.
type Cache interface {
	Get(ctx context.Context, journeyID uint64) (a *Availability, gen uint64, ok bool)
	Set(ctx context.Context, a *Availability, gen uint64)
	Invalidate(ctx context.Context, journeyIDs ...uint64)
}

// Publisher is notified after an order has been committed.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order *model.Order) error
}

const (
	defaultPublishTimeout = 5 * time.Second
	maxPendingEvents      = 64
)

// Request is an order placement: the owner and the seats wanted, in
// the order the client sent them.
type Request struct {
	OwnerID uint64
	Tickets []SeatRequest
}

// Service runs order placement and availability reads against a Store.
type Service struct {
	store  Store
	cache  Cache
	events Publisher

	publishTimeout time.Duration
	slots          chan struct{}
	pending        sync.WaitGroup
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithCache enables availability caching.
func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

// WithPublisher enables order-placed notifications.  They are sent in
// the background after the order is returned to the caller.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithPublishTimeout bounds each notification.  Non-positive values keep
// the default of five seconds.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// NewService returns a Service backed by store.  store must be non-nil.
func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("nil store passed to NewService")
	}
	s := &Service{store: store, publishTimeout: defaultPublishTimeout}
	for _, o := range opts {
		o(s)
	}
	if s.events != nil {
		s.slots = make(chan struct{}, maxPendingEvents)
	}
	return s
}

// Validate runs every check that does not write: the order is not
// empty, every journey exists, every seat fits its train and no seat
// is requested twice.  Failures are *TicketError values wrapping the
// classified error.
func (s *Service) Validate(ctx context.Context, req Request) error {
	if len(req.Tickets) == 0 {
		return ErrEmptyOrder
	}
	ids := make([]uint64, 0, len(req.Tickets))
	seenJourney := make(map[uint64]struct{}, len(req.Tickets))
	for _, t := range req.Tickets {
		if _, ok := seenJourney[t.JourneyID]; !ok {
			seenJourney[t.JourneyID] = struct{}{}
			ids = append(ids, t.JourneyID)
		}
	}
	caps, err := s.store.Capacities(ctx, ids)
	if err != nil {
		return Unavailable("load journeys", err)
	}
	for i, t := range req.Tickets {
		c, ok := caps[t.JourneyID]
		if !ok {
			return &TicketError{Index: i, Field: "journey", Err: fmt.Errorf("%w: %d", ErrJourneyNotFound, t.JourneyID)}
		}
		if err := ValidateSeat(t.Cargo, t.Seat, c); err != nil {
			field := "seat"
			if errors.Is(err, ErrInvalidCargo) {
				field = "cargo"
			}
			return &TicketError{Index: i, Field: field, Err: err}
		}
	}
	first := make(map[SeatRequest]int, len(req.Tickets))
	for i, t := range req.Tickets {
		if j, ok := first[t]; ok {
			return &TicketError{Index: i, Field: "seat", Err: &DuplicateSeatError{Seat: t, Index: i, First: j}}
		}
		first[t] = i
	}
	return nil
}

// PlaceOrder validates req and commits the order with all its tickets,
// or nothing.  A seat already sold to another order yields
// *SeatTakenError; the request is never altered to pick another seat.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*model.Order, error) {
	if err := s.Validate(ctx, req); err != nil {
		return nil, err
	}
	order, err := s.store.CreateOrder(ctx, req.OwnerID, req.Tickets)
	if err != nil {
		if errors.Is(err, ErrSeatTaken) || errors.Is(err, ErrJourneyNotFound) {
			return nil, err
		}
		return nil, Unavailable("create order", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, journeyIDs(order.Tickets)...)
	}
	s.notify(ctx, order)
	return order, nil
}

// notify publishes the order-placed event without holding up the caller.
// The order is already committed, so a slow or unreachable broker must
// not delay the answer.  At most maxPendingEvents publishes run at once;
// beyond that events are dropped and logged.
func (s *Service) notify(ctx context.Context, order *model.Order) {
	if s.events == nil {
		return
	}
	select {
	case s.slots <- struct{}{}:
	default:
		log.Printf("reservation: order %d event dropped, %d publishes pending", order.ID, cap(s.slots))
		return
	}
	s.pending.Add(1)
	go func() {
		defer func() {
			<-s.slots
			s.pending.Done()
		}()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
		defer cancel()
		if err := s.events.PublishOrderPlaced(pctx, order); err != nil {
			log.Printf("reservation: publish order %d failed: %v", order.ID, err)
		}
	}()
}

// Wait blocks until every background publish has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Availability returns the seat projection of a journey.
func (s *Service) Availability(ctx context.Context, journeyID uint64) (*Availability, error) {
	var gen uint64
	if s.cache != nil {
		a, g, ok := s.cache.Get(ctx, journeyID)
		if ok {
			return a, nil
		}
		gen = g
	}
	c, tickets, err := s.store.JourneySeats(ctx, journeyID)
	if err != nil {
		if errors.Is(err, ErrJourneyNotFound) {
			return nil, err
		}
		return nil, Unavailable("load journey seats", err)
	}
	a := ComputeAvailability(journeyID, c, tickets)
	if s.cache != nil {
		s.cache.Set(ctx, &a, gen)
	}
	return &a, nil
}

// CancelOrder deletes an owner's order together with its tickets.
func (s *Service) CancelOrder(ctx context.Context, ownerID, orderID uint64) error {
	journeys, err := s.store.DeleteOrder(ctx, ownerID, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return err
		}
		return Unavailable("delete order", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, journeys...)
	}
	return nil
}

// ForgetJourney drops any cached projection of the journey.  It is
// called after catalogue changes that remove tickets.
func (s *Service) ForgetJourney(ctx context.Context, journeyID uint64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, journeyID)
	}
}

func journeyIDs(tickets []model.Ticket) []uint64 {
	seen := make(map[uint64]struct{}, len(tickets))
	ids := make([]uint64, 0, len(tickets))
	for _, t := range tickets {
		if _, ok := seen[t.JourneyID]; ok {
			continue
		}
		seen[t.JourneyID] = struct{}{}
		ids = append(ids, t.JourneyID)
	}
	return ids
}
