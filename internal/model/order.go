package model

import "time"

// Order groups the tickets booked by one owner in a single transaction.
// An order is never stored without at least one ticket and its tickets
// never outlive it.
//
// Fields:
//  ID        – primary key identifier.
//  OwnerID   – user who placed the order.
//  CreatedAt – when the order was committed.
//  Tickets   – tickets booked under the order.
type Order struct {
    ID        uint64    `json:"id"`         // orders.id
    OwnerID   uint64    `json:"-"`          // orders.owner_id
    CreatedAt time.Time `json:"created_at"` // orders.created_at
    Tickets   []Ticket  `json:"tickets"`
}

// Ticket reserves one seat in one cargo on one journey.  The triple
// (JourneyID, Cargo, Seat) is unique across all tickets.
//
// Fields:
//  ID        – primary key identifier.
//  OrderID   – order owning the ticket.
//  JourneyID – journey the seat belongs to.
//  Cargo     – 1-based cargo number.
//  Seat      – 1-based seat number within the cargo.
type Ticket struct {
    ID        uint64 `json:"id"`      // tickets.id
    OrderID   uint64 `json:"-"`       // tickets.order_id
    JourneyID uint64 `json:"journey"` // tickets.journey_id
    Cargo     int    `json:"cargo"`   // tickets.cargo
    Seat      int    `json:"seat"`    // tickets.seat
}
