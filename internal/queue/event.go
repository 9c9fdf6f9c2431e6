// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/train-station/internal/model"
)

// OrderPlacedQueue is the durable queue carrying OrderPlacedEvent messages.
const OrderPlacedQueue = "order.placed"

// OrderPlacedEvent is published after an order and all of its tickets
// have been committed.  It carries enough information for downstream
// consumers to log or notify without querying the primary database.
type OrderPlacedEvent struct {
    EventID  string        `json:"event_id"`
    OrderID  uint64        `json:"order_id"`
    OwnerID  uint64        `json:"owner_id"`
    Tickets  []EventTicket `json:"tickets"`
    PlacedAt string        `json:"placed_at"`
}

// EventTicket is one seat of a placed order.
type EventTicket struct {
    TicketID  uint64 `json:"ticket_id"`
    JourneyID uint64 `json:"journey_id"`
    Cargo     int    `json:"cargo"`
    Seat      int    `json:"seat"`
}

// NewOrderPlacedEvent builds the event for a committed order.
func NewOrderPlacedEvent(o *model.Order) OrderPlacedEvent {
    ev := OrderPlacedEvent{
        EventID:  uuid.NewString(),
        OrderID:  o.ID,
        OwnerID:  o.OwnerID,
        Tickets:  make([]EventTicket, 0, len(o.Tickets)),
        PlacedAt: o.CreatedAt.UTC().Format(time.RFC3339),
    }
    for _, t := range o.Tickets {
        ev.Tickets = append(ev.Tickets, EventTicket{TicketID: t.ID, JourneyID: t.JourneyID, Cargo: t.Cargo, Seat: t.Seat})
    }
    return ev
}
