package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/train-station/internal/model"
	"github.com/iliyamo/train-station/internal/reservation"
)

// OrderRepo persists orders and their tickets.  It is the reservation
// core's Store: the unique index on tickets (journey_id, cargo, seat)
// is the final guard against double booking, and every order is
// written inside one transaction.
type OrderRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the underlying sql.DB.
func (r *OrderRepo) DB() *sql.DB { return r.db }

var _ reservation.Store = (*OrderRepo)(nil)

// Capacities loads the train layout of every journey in ids.  Journeys
// that do not exist are left out of the result.
func (r *OrderRepo) Capacities(ctx context.Context, ids []uint64) (map[uint64]reservation.Capacity, error) {
	out := make(map[uint64]reservation.Capacity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	q := `SELECT j.id, t.cargo_count, t.seats_per_cargo
          FROM journeys j
          JOIN trains t ON t.id = j.train_id
          WHERE j.id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var c reservation.Capacity
		if err := rows.Scan(&id, &c.CargoCount, &c.SeatsPerCargo); err != nil {
			return nil, err
		}
		out[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOrder inserts an order and one ticket per seat in a single
// transaction.  Tickets are inserted in (journey, cargo, seat) order so
// that concurrent orders lock contested seats in the same sequence;
// the returned tickets keep the caller's order.  A unique index
// violation, or a deadlock on the contested key, rolls everything back
// and yields *reservation.SeatTakenError for that seat.
func (r *OrderRepo) CreateOrder(ctx context.Context, ownerID uint64, seats []reservation.SeatRequest) (*model.Order, error) {
	if len(seats) == 0 {
		return nil, reservation.ErrEmptyOrder
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, reservation.Unavailable("begin order transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order := &model.Order{OwnerID: ownerID, CreatedAt: r.now().Truncate(time.Second)}
	res, err := tx.ExecContext(ctx, `INSERT INTO orders (owner_id, created_at) VALUES (?, ?)`, ownerID, order.CreatedAt)
	if err != nil {
		return nil, reservation.Unavailable("insert order", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, reservation.Unavailable("insert order", err)
	}
	order.ID = uint64(id)

	sequence := make([]int, len(seats))
	for i := range sequence {
		sequence[i] = i
	}
	sort.SliceStable(sequence, func(a, b int) bool {
		return seatLess(seats[sequence[a]], seats[sequence[b]])
	})

	tickets := make([]model.Ticket, len(seats))
	const ins = `INSERT INTO tickets (order_id, journey_id, cargo, seat) VALUES (?, ?, ?, ?)`
	for _, i := range sequence {
		s := seats[i]
		res, err := tx.ExecContext(ctx, ins, order.ID, s.JourneyID, s.Cargo, s.Seat)
		if err != nil {
			switch {
			case isSeatContention(err):
				return nil, &reservation.SeatTakenError{JourneyID: s.JourneyID, Cargo: s.Cargo, Seat: s.Seat}
			case isMissingReference(err):
				return nil, &reservation.TicketError{Index: i, Field: "journey", Err: fmt.Errorf("%w: %d", reservation.ErrJourneyNotFound, s.JourneyID)}
			}
			return nil, reservation.Unavailable("insert ticket", err)
		}
		tid, err := res.LastInsertId()
		if err != nil {
			return nil, reservation.Unavailable("insert ticket", err)
		}
		tickets[i] = model.Ticket{ID: uint64(tid), OrderID: order.ID, JourneyID: s.JourneyID, Cargo: s.Cargo, Seat: s.Seat}
	}
	if err := tx.Commit(); err != nil {
		return nil, reservation.Unavailable("commit order", err)
	}
	committed = true
	order.Tickets = tickets
	return order, nil
}

// JourneySeats returns the layout and committed tickets of a journey.
// Both reads share one read-only transaction so the tickets match a
// single committed state.
func (r *OrderRepo) JourneySeats(ctx context.Context, journeyID uint64) (reservation.Capacity, []model.Ticket, error) {
	var c reservation.Capacity
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return c, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	const capQ = `SELECT t.cargo_count, t.seats_per_cargo
                  FROM journeys j
                  JOIN trains t ON t.id = j.train_id
                  WHERE j.id = ?`
	if err := tx.QueryRowContext(ctx, capQ, journeyID).Scan(&c.CargoCount, &c.SeatsPerCargo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, nil, reservation.ErrJourneyNotFound
		}
		return c, nil, err
	}
	const ticketQ = `SELECT id, order_id, journey_id, cargo, seat
                     FROM tickets
                     WHERE journey_id = ?
                     ORDER BY cargo, seat`
	rows, err := tx.QueryContext(ctx, ticketQ, journeyID)
	if err != nil {
		return c, nil, err
	}
	defer rows.Close()
	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.OrderID, &t.JourneyID, &t.Cargo, &t.Seat); err != nil {
			return c, nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return c, nil, err
	}
	if err := tx.Commit(); err != nil {
		return c, nil, err
	}
	return c, tickets, nil
}

// DeleteOrder removes an order owned by ownerID.  Tickets go with it
// through the foreign key cascade.  The journeys that lost tickets are
// returned.  reservation.ErrOrderNotFound is returned when the order
// does not exist or belongs to someone else.
func (r *OrderRepo) DeleteOrder(ctx context.Context, ownerID, orderID uint64) ([]uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var actualOwner uint64
	err = tx.QueryRowContext(ctx, `SELECT owner_id FROM orders WHERE id = ? FOR UPDATE`, orderID).Scan(&actualOwner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrOrderNotFound
		}
		return nil, err
	}
	if actualOwner != ownerID {
		return nil, reservation.ErrOrderNotFound
	}
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT journey_id FROM tickets WHERE order_id = ? ORDER BY journey_id`, orderID)
	if err != nil {
		return nil, err
	}
	journeys := make([]uint64, 0)
	for rows.Next() {
		var jid uint64
		if err := rows.Scan(&jid); err != nil {
			rows.Close()
			return nil, err
		}
		journeys = append(journeys, jid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return journeys, nil
}

// GetForOwner returns one order with its tickets.  ErrNotFound is
// returned when the order does not exist or belongs to another owner.
func (r *OrderRepo) GetForOwner(ctx context.Context, ownerID, orderID uint64) (*model.Order, error) {
	const q = `SELECT id, owner_id, created_at FROM orders WHERE id = ? AND owner_id = ?`
	var o model.Order
	if err := r.db.QueryRowContext(ctx, q, orderID, ownerID).Scan(&o.ID, &o.OwnerID, &o.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	orders := []model.Order{o}
	if err := r.attachTickets(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByOwner returns one page of an owner's orders, newest first, and
// the total number of orders the owner has.
func (r *OrderRepo) ListByOwner(ctx context.Context, ownerID uint64, limit, offset int) ([]model.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE owner_id = ?`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	orders := make([]model.Order, 0)
	if total == 0 || offset >= total {
		return orders, total, nil
	}
	const q = `SELECT id, owner_id, created_at
               FROM orders
               WHERE owner_id = ?
               ORDER BY created_at DESC, id DESC
               LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.CreatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachTickets(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attachTickets loads the tickets of all orders in one query.
func (r *OrderRepo) attachTickets(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(orders))
	ids := make([]interface{}, 0, len(orders))
	for i := range orders {
		orders[i].Tickets = []model.Ticket{}
		index[orders[i].ID] = i
		ids = append(ids, orders[i].ID)
	}
	q := `SELECT id, order_id, journey_id, cargo, seat
          FROM tickets
          WHERE order_id IN (` + placeholders(len(ids)) + `)
          ORDER BY order_id, id`
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.OrderID, &t.JourneyID, &t.Cargo, &t.Seat); err != nil {
			return err
		}
		if i, ok := index[t.OrderID]; ok {
			orders[i].Tickets = append(orders[i].Tickets, t)
		}
	}
	return rows.Err()
}

func seatLess(a, b reservation.SeatRequest) bool {
	if a.JourneyID != b.JourneyID {
		return a.JourneyID < b.JourneyID
	}
	if a.Cargo != b.Cargo {
		return a.Cargo < b.Cargo
	}
	return a.Seat < b.Seat
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
